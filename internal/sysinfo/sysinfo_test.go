package sysinfo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollect(t *testing.T) {
	if testing.Short() {
		t.Skip("samples cpu usage")
	}
	s, err := Collect(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, s.MemTotal)
	assert.NotZero(t, s.DiskTotal)
}

func TestSnapshot_Format(t *testing.T) {
	s := Snapshot{
		Hostname:    "studio",
		Uptime:      26*time.Hour + 90*time.Second,
		CPUPercent:  12.34,
		CPUCores:    4,
		MemTotal:    8 << 30,
		MemUsed:     2 << 30,
		MemPercent:  25,
		DiskTotal:   100 << 30,
		DiskUsed:    512 << 20,
		DiskPercent: 0.5,
	}
	out := s.Format()
	assert.Contains(t, out, "<b>studio</b>")
	assert.Contains(t, out, "Uptime: 26h1m0s")
	assert.Contains(t, out, "CPU: 12.3% (4 cores)")
	assert.Contains(t, out, "RAM: 2.0 GiB / 8.0 GiB (25.0%)")
	assert.Contains(t, out, "Disk: 512.0 MiB / 100.0 GiB (0.5%)")
}

func TestHumanBytes(t *testing.T) {
	assert.Equal(t, "512 B", humanBytes(512))
	assert.Equal(t, "1.5 KiB", humanBytes(1536))
}
