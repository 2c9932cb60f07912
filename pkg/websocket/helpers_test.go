package websocket

import (
	"io"
	"log/slog"
)

// discardLogger returns a logger that throws away everything it's
// given, for tests that need a non-nil *slog.Logger on a Conn but don't
// care about its output.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
