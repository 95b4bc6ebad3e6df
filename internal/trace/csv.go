package trace

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// TimestampLayout is the timestamp format of the trace file
const TimestampLayout = "2006-01-02 15:04:05"

var csvHeader = []string{"version", "timestamp", "status", "user_id", "function", "message", "cause"}

// CSVTracer appends entries to a delimited file
type CSVTracer struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVTracer opens the trace file for appending and writes the header
// when the file is new
func NewCSVTracer(path string) (*CSVTracer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open trace file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to stat trace file: %w", err)
	}

	t := &CSVTracer{file: f, w: csv.NewWriter(f)}
	if info.Size() == 0 {
		if err := t.write(csvHeader); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return t, nil
}

// Trace appends one row
func (t *CSVTracer) Trace(ctx context.Context, e Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return t.write([]string{
		e.Version,
		ts.Format(TimestampLayout),
		string(e.Status),
		strconv.FormatInt(e.UserID, 10),
		e.Function,
		e.Message,
		e.Cause,
	})
}

func (t *CSVTracer) write(record []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.w.Write(record); err != nil {
		return fmt.Errorf("failed to write trace: %w", err)
	}
	t.w.Flush()
	if err := t.w.Error(); err != nil {
		return fmt.Errorf("failed to flush trace: %w", err)
	}
	return nil
}

// Close closes the trace file
func (t *CSVTracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.file.Close()
}
