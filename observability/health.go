package observability

import (
	"context"
	"runtime"
	"time"
)

// RuntimeStats captures Go process health at a point in time.
type RuntimeStats struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemorySysMB   float64 `json:"memory_sys_mb"`
	GCCount       uint32  `json:"gc_count"`
}

// CollectRuntimeStats reads current Go runtime stats (~10µs overhead).
func CollectRuntimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeStats{
		Goroutines:    runtime.NumGoroutine(),
		MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
		MemorySysMB:   float64(mem.Sys) / 1024 / 1024,
		GCCount:       mem.NumGC,
	}
}

// HealthStatus is the payload served by the HTTP health endpoint.
type HealthStatus struct {
	Status        string       `json:"status"` // "ok" or "degraded"
	UptimeSeconds int64        `json:"uptime_seconds"`
	Runtime       RuntimeStats `json:"runtime"`
	LastRun       *Run         `json:"last_run,omitempty"`
}

// Health reports process and journal health. The last run is attached on a
// best-effort basis; an unreachable database degrades the status instead of
// failing the probe.
func (j *Journal) Health(ctx context.Context, startedAt time.Time) *HealthStatus {
	st := &HealthStatus{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(startedAt).Seconds()),
		Runtime:       CollectRuntimeStats(),
	}
	if err := j.db.PingContext(ctx); err != nil {
		st.Status = "degraded"
		return st
	}
	if runs, err := j.Runs(ctx, &RunFilter{Limit: 1}); err == nil && len(runs) > 0 {
		st.LastRun = runs[0]
	}
	return st
}
