package monitor

import (
	"context"
	"runtime"
	"time"

	"github.com/qist/tpserve/logger"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStats 系统资源快照
type SystemStats struct {
	CPUUsage      float64
	MemoryUsed    uint64
	MemoryPercent float64
	Goroutines    int
	LastUpdate    time.Time
}

func SystemSnapshot() SystemStats {
	s := SystemStats{
		Goroutines: runtime.NumGoroutine(),
		LastUpdate: time.Now(),
	}

	// CPU 使用率
	if cpuPercent, err := cpu.Percent(0, false); err == nil && len(cpuPercent) > 0 {
		s.CPUUsage = cpuPercent[0]
	}

	// 内存使用
	if vmem, err := mem.VirtualMemory(); err == nil && vmem != nil {
		s.MemoryUsed = vmem.Used
		s.MemoryPercent = vmem.UsedPercent
	}
	return s
}

// RunStatsReporter 定时打印工作池与系统统计，直到 ctx 取消
func RunStatsReporter(ctx context.Context, interval time.Duration, src StatsSource, startTime time.Time) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reportOnce(src, startTime)
		}
	}
}

func reportOnce(src StatsSource, startTime time.Time) {
	ps := src.Stats()
	sys := SystemSnapshot()
	logger.LogPrintf("📊 workers=%d busy=%d pending=%d submitted=%d completed=%d panicked=%d cpu=%.1f%% mem=%.1f%% goroutines=%d uptime=%s",
		ps.Workers, ps.Busy, ps.Pending, ps.Submitted, ps.Completed, ps.Panicked,
		sys.CPUUsage, sys.MemoryPercent, sys.Goroutines, time.Since(startTime).Round(time.Second))
}
