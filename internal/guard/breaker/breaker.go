// Package breaker suppresses error accounting during failure cascades.
//
// A single screen transition going wrong can raise dozens of unrelated
// errors within a few hundred milliseconds. Handling each one
// individually would exhaust the error budget and disable the UI over
// what is really one incident, so the breaker trips on a burst and
// treats everything that follows as recovered until a cool-down passes.
package breaker

import (
	"log/slog"
	"sync"
	"time"
)

// Config controls cascade detection.
type Config struct {
	// Threshold is the number of errors inside Window that trips the breaker.
	Threshold int
	// Window is the sliding time window for cascade detection.
	Window time.Duration
	// Cooldown is how long the breaker stays tripped before auto-reset.
	Cooldown time.Duration
}

// DefaultConfig mirrors the tolerances of a busy quiz screen:
// five errors within one second is a cascade, five seconds to recover.
func DefaultConfig() Config {
	return Config{
		Threshold: 5,
		Window:    time.Second,
		Cooldown:  5 * time.Second,
	}
}

// Breaker tracks recent error timestamps in a sliding window.
type Breaker struct {
	mu         sync.Mutex
	cfg        Config
	window     []time.Time
	tripped    bool
	resetTimer *time.Timer
}

// New creates a breaker. Zero or negative config fields fall back to defaults.
func New(cfg Config) *Breaker {
	def := DefaultConfig()
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	return &Breaker{cfg: cfg}
}

// RecordAndCheck appends now to the window, prunes entries older than
// the window duration, and trips the breaker if the pruned count reaches
// the threshold. It returns the tripped state after recording, so the
// call that detects the cascade already reports tripped.
func (b *Breaker) RecordAndCheck(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.window = append(b.window, now)
	b.prune(now)

	if !b.tripped && len(b.window) >= b.cfg.Threshold {
		b.trip()
	}
	return b.tripped
}

// Tripped reports whether the breaker is currently tripped.
func (b *Breaker) Tripped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped
}

// Reset clears the trip, the window, and any scheduled auto-reset.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clear()
}

func (b *Breaker) trip() {
	b.tripped = true
	slog.Warn("Error cascade detected, suspending recovery",
		"count", len(b.window),
		"window", b.cfg.Window,
		"cooldown", b.cfg.Cooldown)

	// Cancellable handle: Reset stops it so a manual reset is not
	// followed by a stale timer clearing state a second time.
	b.resetTimer = time.AfterFunc(b.cfg.Cooldown, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.clear()
		slog.Info("Circuit breaker cooldown elapsed, resuming recovery")
	})
}

// clear resets state; caller must hold b.mu.
func (b *Breaker) clear() {
	b.tripped = false
	b.window = b.window[:0]
	if b.resetTimer != nil {
		b.resetTimer.Stop()
		b.resetTimer = nil
	}
}

// prune drops window entries older than the cascade window; caller must
// hold b.mu. Entries outside the window are never consulted again.
func (b *Breaker) prune(now time.Time) {
	cutoff := now.Add(-b.cfg.Window)
	kept := b.window[:0]
	for _, t := range b.window {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.window = kept
}
