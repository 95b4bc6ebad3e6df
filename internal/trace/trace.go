// Package trace keeps an audit trail of bot events next to the regular logs.
package trace

import (
	"context"
	"errors"
	"time"
)

// Status classifies a trace entry
type Status string

const (
	StatusInfo     Status = "INFO"
	StatusAdmin    Status = "ADMIN"
	StatusWarning  Status = "WARNING"
	StatusError    Status = "ERROR"
	StatusCritical Status = "CRITICAL"
	StatusSystem   Status = "SYSTEM"
)

// Entry is a single audit record
type Entry struct {
	Version   string
	Timestamp time.Time
	Status    Status
	UserID    int64
	Function  string
	Message   string
	Cause     string
}

// Tracer writes audit records to a sink
type Tracer interface {
	Trace(ctx context.Context, e Entry) error
}

// Multi fans an entry out to every sink
type Multi struct {
	sinks []Tracer
}

// NewMulti combines sinks. Nil sinks are skipped.
func NewMulti(sinks ...Tracer) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Trace writes to all sinks and joins their errors
func (m *Multi) Trace(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Trace(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Nop discards entries
type Nop struct{}

func (Nop) Trace(context.Context, Entry) error { return nil }
