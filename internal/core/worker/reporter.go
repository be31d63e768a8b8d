package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/renderguard/renderguard/internal/guard/recovery"
	"github.com/renderguard/renderguard/internal/render/scheduler"
)

// Guard exposes error accounting to the reporter.
type Guard interface {
	Snapshot(n int) recovery.Snapshot
}

// Renderer exposes render accounting to the reporter.
type Renderer interface {
	Stats() scheduler.Stats
}

// Readiness exposes the gate state to the reporter.
type Readiness interface {
	IsReady() bool
}

// Reporter periodically logs a state summary so operators can follow
// degradation in log streams without polling the status endpoint.
type Reporter struct {
	interval time.Duration
	guard    Guard
	renderer Renderer
	gate     Readiness
	log      *slog.Logger
}

// NewReporter creates a reporter. A non-positive interval disables it.
func NewReporter(interval time.Duration, guard Guard, renderer Renderer, gate Readiness, log *slog.Logger) *Reporter {
	if log == nil {
		log = slog.Default()
	}
	return &Reporter{
		interval: interval,
		guard:    guard,
		renderer: renderer,
		gate:     gate,
		log:      log,
	}
}

// Start runs the reporting loop until ctx is cancelled.
func (r *Reporter) Start(ctx context.Context) {
	if r.interval <= 0 {
		return
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.report()
		}
	}
}

func (r *Reporter) report() {
	snap := r.guard.Snapshot(1)
	stats := r.renderer.Stats()

	level := slog.LevelDebug
	if snap.Critical || snap.BreakerTripped {
		level = slog.LevelWarn
	}

	r.log.Log(context.Background(), level, "State report",
		"critical", snap.Critical,
		"breaker_tripped", snap.BreakerTripped,
		"total_errors", snap.TotalErrors,
		"engine_ready", r.gate.IsReady(),
		"rendered", stats.Rendered,
		"failed", stats.Failed,
		"coalesced", stats.Coalesced,
		"pending", stats.Pending,
	)
}
