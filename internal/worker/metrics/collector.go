package metrics

import (
	"context"
	"fmt"
	"math"
	"time"

	"Orchestrator/internal/backend/models"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Collector снимает загрузку CPU и памяти хоста для heartbeat
type Collector struct {
	sampleWindow time.Duration
}

func NewCollector(sampleWindow time.Duration) *Collector {
	if sampleWindow <= 0 {
		sampleWindow = 500 * time.Millisecond
	}
	return &Collector{sampleWindow: sampleWindow}
}

func (c *Collector) Usage(ctx context.Context) (models.HeartbeatRequest, error) {
	cpuPercent, err := cpu.PercentWithContext(ctx, c.sampleWindow, false)
	if err != nil {
		return models.HeartbeatRequest{}, fmt.Errorf("get cpu percent: %w", err)
	}

	memInfo, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return models.HeartbeatRequest{}, fmt.Errorf("get memory usage: %w", err)
	}

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	return models.HeartbeatRequest{
		CPUUsage:    round(cpuPct),
		MemoryUsage: round(memInfo.UsedPercent),
	}, nil
}

func round(v float64) float64 {
	return math.Round(v*10) / 10
}
