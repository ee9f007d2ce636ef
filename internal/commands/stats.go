package commands

import (
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// SystemStats is the host and runtime section of the status view.
type SystemStats struct {
	Hostname      string
	Platform      string
	CPUUsage      float64
	MemoryPercent float64
	ProcessRSS    uint64
	GoRoutines    int
	HeapAlloc     uint64
	BotUptime     time.Duration
}

type HostStats struct {
	started time.Time
}

func NewHostStats() *HostStats {
	return &HostStats{started: time.Now()}
}

// Gather never blocks on CPU sampling; the usage is measured since the previous call.
func (h *HostStats) Gather() SystemStats {
	stats := SystemStats{
		GoRoutines: runtime.NumGoroutine(),
		BotUptime:  time.Since(h.started),
	}

	if info, err := host.Info(); err == nil {
		stats.Hostname = info.Hostname
		stats.Platform = info.Platform + " " + info.KernelArch
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		stats.CPUUsage = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats.MemoryPercent = vm.UsedPercent
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			stats.ProcessRSS = mi.RSS
		}
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	stats.HeapAlloc = m.HeapAlloc
	return stats
}
