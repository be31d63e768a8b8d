// Package scheduler issues typeset requests against content regions
// with bounded retry and per-region serialization.
//
// The engine keeps per-node bookkeeping that overlapping calls on the
// same content corrupt, so at most one render is in flight per region;
// a duplicate request marks the region dirty and a single follow-up
// render runs once the active one settles. Rendering problems
// never propagate to callers: a failed render leaves degraded content
// on screen, which beats blocking the show.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/renderguard/renderguard/internal/core/domain"
	"github.com/renderguard/renderguard/internal/guard/metrics"
	"github.com/renderguard/renderguard/internal/render/engine"
	"github.com/renderguard/renderguard/internal/render/readiness"
)

// errRegionGone aborts retries for regions torn down mid-render.
var errRegionGone = errors.New("region no longer exists")

// Config controls retry behavior.
type Config struct {
	// MaxAttempts bounds engine calls per render request. Urgent
	// callers may configure up to 10; the default favors fast settling.
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 250 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
	}
}

// Stats is a point-in-time view of render accounting.
type Stats struct {
	Rendered  int `json:"rendered"`
	Failed    int `json:"failed"`
	Coalesced int `json:"coalesced"`
	Abandoned int `json:"abandoned"`
	Pending   int `json:"pending"`
	InFlight  int `json:"in_flight"`
}

// Scheduler is the sole authorized caller of the typesetting engine.
type Scheduler struct {
	cfg      Config
	engine   engine.Engine
	gate     *readiness.Gate
	resolver domain.RegionResolver
	log      *slog.Logger

	mu       sync.Mutex
	pending  map[string]domain.Region // awaiting readiness
	inflight map[string]struct{}      // active render per region
	dirty    map[string]domain.Region // re-requested while in flight
	stats    Stats
}

// New creates a scheduler and hooks it to the readiness gate: regions
// queued before readiness are dispatched exactly once when the gate
// fires. resolver may be nil, in which case all regions are presumed
// to exist.
func New(cfg Config, eng engine.Engine, gate *readiness.Gate, resolver domain.RegionResolver, log *slog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Scheduler{
		cfg:      cfg,
		engine:   eng,
		gate:     gate,
		resolver: resolver,
		log:      log,
		pending:  make(map[string]domain.Region),
		inflight: make(map[string]struct{}),
		dirty:    make(map[string]domain.Region),
	}
	gate.OnReady(s.flushPending)
	return s
}

// Render settles every region and never reports an error to the
// caller. Regions requested before engine readiness are queued and
// dispatched when the gate fires; this call does not wait for them.
// Regions with a render already in flight are folded into it: the
// region is marked dirty and one follow-up render runs after the
// active one settles, so content rewritten mid-render is not lost.
// Everything else renders concurrently; Render returns once those
// settle (success, exhausted retries, or region gone).
func (s *Scheduler) Render(ctx context.Context, regions ...domain.Region) {
	var wg sync.WaitGroup
	for _, region := range regions {
		s.mu.Lock()
		if _, active := s.inflight[region.ID]; active {
			s.dirty[region.ID] = region
			s.stats.Coalesced++
			s.mu.Unlock()
			s.log.Debug("Render already in flight, folding into it", "region", region.ID)
			continue
		}
		if !s.gate.IsReady() {
			s.pending[region.ID] = region
			metrics.PendingRegions.Set(float64(len(s.pending)))
			s.mu.Unlock()
			continue
		}
		s.inflight[region.ID] = struct{}{}
		s.mu.Unlock()

		wg.Add(1)
		go func(r domain.Region) {
			defer wg.Done()
			s.renderRegion(ctx, r)
		}(region)
	}
	wg.Wait()
}

// flushPending moves queued regions into flight. Runs once, on the
// readiness transition.
func (s *Scheduler) flushPending() {
	s.mu.Lock()
	regions := make([]domain.Region, 0, len(s.pending))
	for _, r := range s.pending {
		regions = append(regions, r)
		s.inflight[r.ID] = struct{}{}
	}
	s.pending = make(map[string]domain.Region)
	metrics.PendingRegions.Set(0)
	s.mu.Unlock()

	if len(regions) == 0 {
		return
	}
	s.log.Info("Engine ready, dispatching queued renders", "regions", len(regions))
	for _, r := range regions {
		go s.renderRegion(context.Background(), r)
	}
}

// renderRegion performs one render with bounded retry. The caller must
// already hold the in-flight slot for the region.
func (s *Scheduler) renderRegion(ctx context.Context, region domain.Region) {
	defer func() {
		s.mu.Lock()
		delete(s.inflight, region.ID)
		// A region re-requested while in flight gets one follow-up
		// render; the slot transfers before the mutex is released so
		// the region is never observed as neither pending nor active.
		next, rerun := s.dirty[region.ID]
		if rerun {
			delete(s.dirty, region.ID)
			s.inflight[region.ID] = struct{}{}
		}
		s.mu.Unlock()
		if rerun {
			go s.renderRegion(context.Background(), next)
		}
	}()

	attempts := 0
	op := func() error {
		// Checked just before every engine call: a region torn down by
		// a screen transition is abandoned, not retried.
		if s.resolver != nil && !s.resolver.Exists(region.ID) {
			return backoff.Permanent(errRegionGone)
		}
		attempts++
		return s.engine.Typeset(ctx, region)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.cfg.InitialBackoff
	b.MaxInterval = s.cfg.MaxBackoff
	b.MaxElapsedTime = 0 // bounded by attempts, not wall clock

	err := backoff.Retry(op,
		backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.cfg.MaxAttempts-1)), ctx))

	if attempts > 0 {
		metrics.RenderAttempts.Observe(float64(attempts))
	}

	switch {
	case errors.Is(err, errRegionGone):
		s.recordOutcome("abandoned")
		s.log.Debug("Region gone before render, abandoned", "region", region.ID)
	case err != nil:
		s.recordOutcome("failed")
		s.log.Warn("Render failed, leaving degraded content",
			"region", region.ID, "attempts", attempts, "error", err)
	default:
		s.recordOutcome("rendered")
	}
}

func (s *Scheduler) recordOutcome(outcome string) {
	metrics.RendersTotal.WithLabelValues(outcome).Inc()
	s.mu.Lock()
	defer s.mu.Unlock()
	switch outcome {
	case "rendered":
		s.stats.Rendered++
	case "failed":
		s.stats.Failed++
	case "abandoned":
		s.stats.Abandoned++
	}
}

// Stats returns current render accounting.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := s.stats
	stats.Pending = len(s.pending)
	stats.InFlight = len(s.inflight)
	return stats
}
