package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"inspira/internal/trace"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// TraceStore is the ClickHouse sink for audit records
type TraceStore struct {
	conn clickhouse.Conn
}

// NewTraceStore creates a new ClickHouse connection
func NewTraceStore(host string, port int, database, user, password string, useTLS bool) (*TraceStore, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &TraceStore{conn: conn}, nil
}

// Initialize creates the trace table
func (s *TraceStore) Initialize(ctx context.Context) error {
	err := s.conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS trace_events (
			version String,
			timestamp DateTime,
			status LowCardinality(String),
			user_id Int64,
			function String,
			message String,
			cause String
		) ENGINE = MergeTree()
		ORDER BY (timestamp, user_id)
	`)
	if err != nil {
		return fmt.Errorf("failed to create trace_events: %w", err)
	}
	return nil
}

// Trace inserts one audit record
func (s *TraceStore) Trace(ctx context.Context, e trace.Entry) error {
	ts := e.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	err := s.conn.Exec(ctx, `INSERT INTO trace_events (version, timestamp, status, user_id, function, message, cause) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Version, ts, string(e.Status), e.UserID, e.Function, e.Message, e.Cause)
	if err != nil {
		return fmt.Errorf("failed to insert trace: %w", err)
	}
	return nil
}

// Recent returns the last N records, newest first
func (s *TraceStore) Recent(ctx context.Context, limit int) ([]trace.Entry, error) {
	rows, err := s.conn.Query(ctx, `SELECT version, timestamp, status, user_id, function, message, cause FROM trace_events ORDER BY timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query traces: %w", err)
	}
	defer rows.Close()

	var entries []trace.Entry
	for rows.Next() {
		var (
			e      trace.Entry
			status string
		)
		if err := rows.Scan(&e.Version, &e.Timestamp, &status, &e.UserID, &e.Function, &e.Message, &e.Cause); err != nil {
			return nil, fmt.Errorf("failed to scan trace: %w", err)
		}
		e.Status = trace.Status(status)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountSince returns the number of records per status newer than since
func (s *TraceStore) CountSince(ctx context.Context, since time.Time) (map[trace.Status]int, error) {
	rows, err := s.conn.Query(ctx, `SELECT status, count() FROM trace_events WHERE timestamp >= ? GROUP BY status`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count traces: %w", err)
	}
	defer rows.Close()

	counts := make(map[trace.Status]int)
	for rows.Next() {
		var (
			status string
			n      uint64
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan trace count: %w", err)
		}
		counts[trace.Status(status)] = int(n)
	}
	return counts, rows.Err()
}

// Close closes the database connection
func (s *TraceStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
