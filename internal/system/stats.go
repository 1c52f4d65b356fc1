package system

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a snapshot of resource usage for the run report.
type Stats struct {
	WallSeconds   float64 `yaml:"wallSeconds"`
	CPUPercent    float64 `yaml:"cpuPercent"`
	RSSBytes      uint64  `yaml:"rssBytes"`
	SystemMemUsed float64 `yaml:"systemMemUsedPercent"`
	EffectiveFPS  float64 `yaml:"effectiveFps"`
}

// CollectStats reads process and host counters. Counters that cannot be read
// are left at zero.
func CollectStats(start time.Time, frames int) Stats {
	st := Stats{WallSeconds: time.Since(start).Seconds()}
	if st.WallSeconds > 0 {
		st.EffectiveFPS = float64(frames) / st.WallSeconds
	}

	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			st.RSSBytes = mi.RSS
		}
		if cpu, err := p.CPUPercent(); err == nil {
			st.CPUPercent = cpu
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		st.SystemMemUsed = vm.UsedPercent
	}
	return st
}
