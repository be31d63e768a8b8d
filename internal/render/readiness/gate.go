// Package readiness tracks when the external typesetting engine
// becomes usable. The transition is one-way: a gate moves from unknown
// to ready exactly once per process lifetime and never reverts.
package readiness

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/renderguard/renderguard/internal/guard/metrics"
)

// Config controls the polling fallback.
type Config struct {
	// PollInterval is how often the engine availability flag is probed
	// when no one-shot notification has arrived.
	PollInterval time.Duration
	// Timeout stops polling regardless of outcome. A gate that never
	// becomes ready leaves renders queued; callers degrade instead of
	// hanging.
	Timeout time.Duration
}

// DefaultConfig returns the polling defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval: 250 * time.Millisecond,
		Timeout:      10 * time.Second,
	}
}

// Prober exposes the engine's availability flag.
type Prober interface {
	Available() bool
}

// Gate resolves exactly once, satisfied by Signal or by polling,
// whichever fires first.
type Gate struct {
	cfg Config
	log *slog.Logger

	mu        sync.Mutex
	isReady   bool
	ready     chan struct{} // closed on transition
	callbacks []func()

	stopPoll chan struct{}
	stopOnce sync.Once
}

// New creates an unresolved gate.
func New(cfg Config, log *slog.Logger) *Gate {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Gate{
		cfg:      cfg,
		log:      log,
		ready:    make(chan struct{}),
		stopPoll: make(chan struct{}),
	}
}

// Signal marks the engine ready. The first call wins; later calls and
// concurrent poll hits are no-ops, which is what makes registering both
// the one-shot notification and the polling fallback safe.
func (g *Gate) Signal() {
	g.mu.Lock()
	if g.isReady {
		g.mu.Unlock()
		return
	}
	g.isReady = true
	callbacks := g.callbacks
	g.callbacks = nil
	close(g.ready)
	g.mu.Unlock()

	metrics.EngineReady.Set(1)
	g.log.Info("Typesetting engine ready")

	// Fire in registration order, exactly once each; the registry was
	// already cleared above so re-entrant OnReady calls are safe.
	for _, fn := range callbacks {
		fn()
	}
	g.stopPolling()
}

// IsReady reports whether the gate has resolved.
func (g *Gate) IsReady() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.isReady
}

// OnReady registers fn to run on the ready transition. If the gate has
// already resolved, fn runs immediately.
func (g *Gate) OnReady(fn func()) {
	g.mu.Lock()
	if !g.isReady {
		g.callbacks = append(g.callbacks, fn)
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	fn()
}

// Wait blocks until the gate resolves or ctx is done.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watch polls the engine availability flag until the gate resolves or
// the safety timeout elapses. It returns immediately; polling runs in
// its own goroutine.
func (g *Gate) Watch(p Prober) {
	go func() {
		ticker := time.NewTicker(g.cfg.PollInterval)
		defer ticker.Stop()
		deadline := time.NewTimer(g.cfg.Timeout)
		defer deadline.Stop()

		for {
			select {
			case <-ticker.C:
				if p.Available() {
					g.Signal()
					return
				}
			case <-deadline.C:
				g.log.Warn("Engine readiness timeout, polling stopped",
					"timeout", g.cfg.Timeout)
				return
			case <-g.stopPoll:
				return
			}
		}
	}()
}

// Stop cancels the polling fallback without resolving the gate.
func (g *Gate) Stop() {
	g.stopPolling()
}

func (g *Gate) stopPolling() {
	g.stopOnce.Do(func() {
		close(g.stopPoll)
	})
}
