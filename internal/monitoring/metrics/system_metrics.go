package metrics

import (
	"runtime"
	"sync"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/theblitlabs/parity-ml/pkg/logger"
)

// SystemMetrics is a point-in-time view of host resource usage.
type SystemMetrics struct {
	MemoryUsed  int64     `json:"memory_used_bytes"`
	MemoryTotal int64     `json:"memory_total_bytes"`
	CPUPercent  float64   `json:"cpu_percent"`
	Goroutines  int       `json:"goroutines"`
	CollectedAt time.Time `json:"collected_at"`
}

// SystemMetricsCollector samples host memory and CPU, caching the result for
// collectInterval so health checks stay cheap.
type SystemMetricsCollector struct {
	mu              sync.Mutex
	cached          SystemMetrics
	collectInterval time.Duration
}

// NewSystemMetricsCollector creates a new system metrics collector
func NewSystemMetricsCollector(collectInterval time.Duration) *SystemMetricsCollector {
	if collectInterval == 0 {
		collectInterval = 5 * time.Second
	}

	return &SystemMetricsCollector{
		collectInterval: collectInterval,
	}
}

// GetSystemMetrics returns the cached sample, refreshing it when stale.
func (c *SystemMetricsCollector) GetSystemMetrics() SystemMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	if time.Since(c.cached.CollectedAt) > c.collectInterval {
		c.collectMetrics()
	}
	return c.cached
}

// collectMetrics updates the cached metrics with fresh data
func (c *SystemMetricsCollector) collectMetrics() {
	log := logger.WithComponent("metrics")

	memInfo, err := mem.VirtualMemory()
	if err != nil {
		log.Error().Err(err).Msg("Failed to get memory info")
		c.cached.MemoryUsed = 0
		c.cached.MemoryTotal = 0
	} else {
		c.cached.MemoryUsed = int64(memInfo.Used)
		c.cached.MemoryTotal = int64(memInfo.Total)
	}

	// A zero interval compares against the previous call instead of blocking.
	cpuPercent, err := cpu.Percent(0, false)
	if err != nil {
		log.Error().Err(err).Msg("Failed to get CPU info")
		c.cached.CPUPercent = 0.0
	} else if len(cpuPercent) > 0 {
		c.cached.CPUPercent = cpuPercent[0]
	}

	c.cached.Goroutines = runtime.NumGoroutine()
	c.cached.CollectedAt = time.Now()

	log.Debug().
		Int64("memory_bytes", c.cached.MemoryUsed).
		Float64("cpu_percent", c.cached.CPUPercent).
		Str("os", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Msg("System metrics collected")
}
