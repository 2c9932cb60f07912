package wsmetrics_test

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tzrikka/wsgate/pkg/websocket"
	"github.com/tzrikka/wsgate/pkg/wsmetrics"
)

func TestRecordConnection(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metrics")
	now := time.Now().UTC()

	wsmetrics.RecordConnection(slog.Default(), dir, now, "127.0.0.1:1234", "rfc6455", "accepted")

	path := filepath.Join(dir, fmt.Sprintf("wsgate_connections_%s.csv", now.Format(time.DateOnly)))
	f, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	got := string(f)
	want := now.Format(time.RFC3339) + ",127.0.0.1:1234,rfc6455,accepted\n"
	if got != want {
		t.Errorf("file content = %q, want %q", got, want)
	}
}

func TestRecordFrame(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "metrics")
	now := time.Now().UTC()

	wsmetrics.RecordFrame(slog.Default(), dir, now, "conn-1", websocket.OpcodeText, 5)
	wsmetrics.RecordFrame(slog.Default(), dir, now, "conn-1", websocket.OpcodeBinary, 1024)

	path := filepath.Join(dir, fmt.Sprintf("wsgate_frames_%s.csv", now.Format(time.DateOnly)))
	f, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	got := string(f)
	ts := now.Format(time.RFC3339)
	want := fmt.Sprintf("%s,conn-1,text,5\n%s,conn-1,binary,1024\n", ts, ts)
	if got != want {
		t.Errorf("file content = %q, want %q", got, want)
	}
}
