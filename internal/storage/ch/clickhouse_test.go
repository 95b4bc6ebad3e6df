package ch

import (
	"context"
	"testing"
	"time"

	"inspira/internal/trace"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clickhouseTC "github.com/testcontainers/testcontainers-go/modules/clickhouse"
)

// setupTestStore creates a test ClickHouse instance using testcontainers
func setupTestStore(t *testing.T) (*TraceStore, func()) {
	if testing.Short() {
		t.Skip("skipping ClickHouse container test in short mode")
	}
	ctx := context.Background()

	clickhouseContainer, err := clickhouseTC.Run(ctx,
		"clickhouse/clickhouse-server:24.3.3.102-alpine",
		clickhouseTC.WithUsername("default"),
		clickhouseTC.WithPassword(""),
		clickhouseTC.WithDatabase("default"),
	)
	require.NoError(t, err, "Failed to start ClickHouse container")

	host, err := clickhouseContainer.Host(ctx)
	require.NoError(t, err)

	port, err := clickhouseContainer.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	store, err := NewTraceStore(host, port.Int(), "default", "default", "", false)
	require.NoError(t, err, "Failed to connect to ClickHouse")

	require.NoError(t, store.Initialize(ctx), "Failed to create tables")

	cleanup := func() {
		store.Close()
		clickhouseContainer.Terminate(ctx)
	}

	return store, cleanup
}

func TestTraceStore_TraceAndRecent(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Trace(ctx, trace.Entry{
		Version: "1.0.0", Timestamp: base, Status: trace.StatusInfo,
		UserID: 1, Function: "start", Message: "registered",
	}))
	require.NoError(t, store.Trace(ctx, trace.Entry{
		Version: "1.0.0", Timestamp: base.Add(time.Minute), Status: trace.StatusError,
		UserID: 2, Function: "status", Message: "store failure", Cause: "timeout",
	}))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[0].UserID)
	assert.Equal(t, trace.StatusError, entries[0].Status)
	assert.Equal(t, "timeout", entries[0].Cause)
	assert.Equal(t, "start", entries[1].Function)

	entries, err = store.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTraceStore_CountSince(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	ctx := context.Background()
	base := time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

	for i, status := range []trace.Status{trace.StatusError, trace.StatusError, trace.StatusInfo, trace.StatusAdmin} {
		require.NoError(t, store.Trace(ctx, trace.Entry{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Status:    status,
			UserID:    int64(i),
		}))
	}

	counts, err := store.CountSince(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, counts[trace.StatusError])
	assert.Equal(t, 1, counts[trace.StatusInfo])
	assert.Equal(t, 1, counts[trace.StatusAdmin])
}

func TestTraceStore_InitializeIsRepeatable(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	assert.NoError(t, store.Initialize(context.Background()))
}
