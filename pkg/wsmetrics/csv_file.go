// Package wsmetrics records connection and frame activity to local CSV
// files. It is a thin, dependency-light alternative to a full metrics
// backend, intended for small deployments that don't run Prometheus or
// OpenTelemetry collectors.
package wsmetrics

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/tzrikka/xdg"

	"github.com/tzrikka/wsgate/pkg/websocket"
)

const (
	// connectionsFileTemplate and framesFileTemplate name the CSV files
	// written under the caller-configured metrics directory: one line
	// per accepted/rejected connection attempt, and one line per sampled
	// data frame, respectively.
	connectionsFileTemplate = "wsgate_connections_%s.csv"
	framesFileTemplate      = "wsgate_frames_%s.csv"

	fileFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY
	filePerms = xdg.NewFilePermissions
)

var (
	muConnections sync.Mutex
	muFrames      sync.Mutex
)

// RecordConnection appends one line describing an accepted or rejected
// connection attempt: timestamp, remote address, negotiated protocol
// variant, and outcome ("accepted", "rejected", or a rejection reason),
// to a file under dir.
func RecordConnection(l *slog.Logger, dir string, t time.Time, remoteAddr, variant, outcome string) {
	muConnections.Lock()
	defer muConnections.Unlock()

	record := []string{t.Format(time.RFC3339), remoteAddr, variant, outcome}
	if err := appendToCSVFile(dir, connectionsFileTemplate, t, record); err != nil {
		l.Error("metrics error: failed to record connection", slog.Any("error", err),
			slog.String("remote_addr", remoteAddr), slog.String("outcome", outcome))
	}
}

// RecordFrame appends one line sampling a single frame's opcode and
// payload length, for a rough throughput signal, to a file under dir.
func RecordFrame(l *slog.Logger, dir string, t time.Time, connID string, op websocket.Opcode, payloadLen int) {
	muFrames.Lock()
	defer muFrames.Unlock()

	record := []string{t.Format(time.RFC3339), connID, op.String(), strconv.Itoa(payloadLen)}
	if err := appendToCSVFile(dir, framesFileTemplate, t, record); err != nil {
		l.Error("metrics error: failed to record frame", slog.Any("error", err), slog.String("conn_id", connID))
	}
}

func appendToCSVFile(dir, nameTemplate string, t time.Time, record []string) error {
	filename := filepath.Join(dir, fmt.Sprintf(nameTemplate, t.Format(time.DateOnly)))
	if err := os.MkdirAll(dir, filePerms); err != nil {
		return err
	}
	f, err := os.OpenFile(filename, fileFlags, filePerms) //gosec:disable G304 // Directory is operator-configured.
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		return err
	}

	w.Flush()
	return w.Error()
}
