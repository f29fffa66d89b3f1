package metrics

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/process"
)

// MemoryStats combines Go runtime heap figures with host and process
// memory as reported by the OS.
type MemoryStats struct {
	HeapAlloc       uint64  `json:"heapUsed"`
	HeapSys         uint64  `json:"heapTotal"`
	Sys             uint64  `json:"sys"`
	RSS             uint64  `json:"rss"`
	HostTotal       uint64  `json:"hostTotal"`
	HostUsed        uint64  `json:"hostUsed"`
	HostUsedPercent float64 `json:"hostUsedPercent"`
}

// UsageRatio is heap in use over heap obtained from the OS, in [0, 1].
// It is 0 when the heap size is unknown.
func (m MemoryStats) UsageRatio() float64 {
	if m.HeapSys == 0 {
		return 0
	}
	return float64(m.HeapAlloc) / float64(m.HeapSys)
}

type CPUStats struct {
	ProcessPercent float64 `json:"processPercent"`
	HostPercent    float64 `json:"hostPercent"`
	NumCPU         int     `json:"numCpu"`
}

// SystemStats is the process-local section of a snapshot.
type SystemStats struct {
	Memory     MemoryStats `json:"memory"`
	CPU        CPUStats    `json:"cpu"`
	Uptime     float64     `json:"uptime"` // seconds
	PID        int         `json:"pid"`
	Version    string      `json:"version"`
	Platform   string      `json:"platform"`
	Arch       string      `json:"arch"`
	Goroutines int         `json:"goroutines"`
}

// SystemSource reads process resource usage.
type SystemSource interface {
	System(ctx context.Context) (SystemStats, error)
}

// RuntimeSource reads the Go runtime and, through gopsutil, the host and
// process counters. OS-level failures leave the affected fields zero; only
// a done context fails the read.
type RuntimeSource struct {
	started time.Time
	proc    *process.Process
	logger  *slog.Logger
}

// NewRuntimeSource creates a RuntimeSource for the current process.
func NewRuntimeSource(logger *slog.Logger) *RuntimeSource {
	proc, err := process.NewProcess(int32(os.Getpid())) //nolint:gosec // pids fit in int32
	if err != nil {
		logger.Warn("metrics: process stats unavailable", "error", err)
		proc = nil
	}
	return &RuntimeSource{started: time.Now(), proc: proc, logger: logger}
}

// System implements SystemSource.
func (s *RuntimeSource) System(ctx context.Context) (SystemStats, error) {
	if err := ctx.Err(); err != nil {
		return SystemStats{}, err
	}

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := SystemStats{
		Memory: MemoryStats{
			HeapAlloc: ms.HeapAlloc,
			HeapSys:   ms.HeapSys,
			Sys:       ms.Sys,
		},
		CPU:        CPUStats{NumCPU: runtime.NumCPU()},
		Uptime:     time.Since(s.started).Seconds(),
		PID:        os.Getpid(),
		Version:    runtime.Version(),
		Platform:   runtime.GOOS,
		Arch:       runtime.GOARCH,
		Goroutines: runtime.NumGoroutine(),
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		s.logger.Debug("metrics: host memory unavailable", "error", err)
	} else {
		stats.Memory.HostTotal = vm.Total
		stats.Memory.HostUsed = vm.Used
		stats.Memory.HostUsedPercent = vm.UsedPercent
	}

	// A zero interval compares against the previous call, so it never sleeps.
	if pct, err := cpu.PercentWithContext(ctx, 0, false); err != nil {
		s.logger.Debug("metrics: host cpu unavailable", "error", err)
	} else if len(pct) > 0 {
		stats.CPU.HostPercent = pct[0]
	}

	if s.proc != nil {
		if info, err := s.proc.MemoryInfoWithContext(ctx); err != nil {
			s.logger.Debug("metrics: process memory unavailable", "error", err)
		} else {
			stats.Memory.RSS = info.RSS
		}
		if pct, err := s.proc.CPUPercentWithContext(ctx); err != nil {
			s.logger.Debug("metrics: process cpu unavailable", "error", err)
		} else {
			stats.CPU.ProcessPercent = pct
		}
	}

	return stats, nil
}
