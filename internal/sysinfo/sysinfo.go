// Package sysinfo reports host resource usage for the admin panel.
package sysinfo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
)

// Snapshot is a point in time view of the host
type Snapshot struct {
	Hostname    string
	Uptime      time.Duration
	CPUPercent  float64
	CPUCores    int
	MemTotal    uint64
	MemUsed     uint64
	MemPercent  float64
	DiskTotal   uint64
	DiskUsed    uint64
	DiskPercent float64
}

// Collect samples CPU, memory and the root disk
func Collect(ctx context.Context) (Snapshot, error) {
	var s Snapshot

	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to read host info: %w", err)
	}
	s.Hostname = info.Hostname
	s.Uptime = time.Duration(info.Uptime) * time.Second

	percents, err := cpu.PercentWithContext(ctx, 200*time.Millisecond, false)
	if err != nil {
		return s, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percents) > 0 {
		s.CPUPercent = percents[0]
	}
	if cores, err := cpu.CountsWithContext(ctx, true); err == nil {
		s.CPUCores = cores
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return s, fmt.Errorf("failed to read memory usage: %w", err)
	}
	s.MemTotal, s.MemUsed, s.MemPercent = vm.Total, vm.Used, vm.UsedPercent

	du, err := disk.UsageWithContext(ctx, "/")
	if err != nil {
		return s, fmt.Errorf("failed to read disk usage: %w", err)
	}
	s.DiskTotal, s.DiskUsed, s.DiskPercent = du.Total, du.Used, du.UsedPercent

	return s, nil
}

// Format renders the snapshot as an HTML message
func (s Snapshot) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>%s</b>\n", s.Hostname)
	fmt.Fprintf(&b, "Uptime: %s\n\n", s.Uptime.Truncate(time.Minute))
	fmt.Fprintf(&b, "CPU: %.1f%% (%d cores)\n", s.CPUPercent, s.CPUCores)
	fmt.Fprintf(&b, "RAM: %s / %s (%.1f%%)\n", humanBytes(s.MemUsed), humanBytes(s.MemTotal), s.MemPercent)
	fmt.Fprintf(&b, "Disk: %s / %s (%.1f%%)", humanBytes(s.DiskUsed), humanBytes(s.DiskTotal), s.DiskPercent)
	return b.String()
}

func humanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
