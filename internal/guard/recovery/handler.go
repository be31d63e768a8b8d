// Package recovery routes classified errors to type-specific recovery
// strategies and enforces the global error budget.
package recovery

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/renderguard/renderguard/internal/core/domain"
	"github.com/renderguard/renderguard/internal/guard/breaker"
	"github.com/renderguard/renderguard/internal/guard/classify"
	"github.com/renderguard/renderguard/internal/guard/metrics"
)

// Config controls error accounting.
type Config struct {
	// MaxErrors is the global budget; exceeding it freezes recovery.
	MaxErrors int
	// HighChurnMultiplier raises the effective budget for errors from
	// rapid-refresh paths (e.g. live preview updates).
	HighChurnMultiplier int
	// JournalCapacity bounds the rolling error log.
	JournalCapacity int
	// Tolerance grants per-type allowances for classified non-critical
	// errors. While a type's pool lasts, its benign errors are not
	// counted; once exhausted they count like any other error. A nil
	// map gets the defaults; an empty non-nil map disables all pools.
	Tolerance map[domain.ContextType]int
}

// DefaultConfig returns the accounting defaults.
func DefaultConfig() Config {
	return Config{
		MaxErrors:           50,
		HighChurnMultiplier: 3,
		JournalCapacity:     100,
		Tolerance: map[domain.ContextType]int{
			domain.ContextDOM:         25,
			domain.ContextNetwork:     10,
			domain.ContextTranslation: 10,
		},
	}
}

// Handler is the recovery dispatcher. It owns all mutable error
// accounting state; collaborators receive it by handle, never through
// package globals.
type Handler struct {
	mu         sync.Mutex
	cfg        Config
	breaker    *breaker.Breaker
	classifier *classify.Classifier
	strategies Strategy
	journal    *Journal
	log        *slog.Logger

	total     int
	tally     map[domain.ContextType]int
	tolerance map[domain.ContextType]int
	critical  bool

	now func() time.Time
}

// NewHandler creates a dispatcher. strategies may be nil, in which case
// every counted error is treated as unrecoverable.
func NewHandler(cfg Config, brk *breaker.Breaker, classifier *classify.Classifier, strategies Strategy, log *slog.Logger) *Handler {
	def := DefaultConfig()
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = def.MaxErrors
	}
	if cfg.HighChurnMultiplier <= 0 {
		cfg.HighChurnMultiplier = def.HighChurnMultiplier
	}
	if cfg.JournalCapacity <= 0 {
		cfg.JournalCapacity = def.JournalCapacity
	}
	if cfg.Tolerance == nil {
		cfg.Tolerance = def.Tolerance
	}
	if log == nil {
		log = slog.Default()
	}

	h := &Handler{
		cfg:        cfg,
		breaker:    brk,
		classifier: classifier,
		strategies: strategies,
		journal:    NewJournal(cfg.JournalCapacity),
		log:        log,
		tally:      make(map[domain.ContextType]int),
		tolerance:  make(map[domain.ContextType]int),
		now:        time.Now,
	}
	for t, n := range cfg.Tolerance {
		h.tolerance[t.Normalize()] = n
	}
	return h
}

// Handle classifies, counts, and attempts recovery for err. It returns
// true when the error was contained (the caller may proceed with its
// fallback) and false when the error must surface.
func (h *Handler) Handle(err error, ctx domain.ErrorContext) bool {
	if err == nil {
		return true
	}
	ctx.Type = ctx.Type.Normalize()

	h.mu.Lock()
	defer h.mu.Unlock()

	// Terminal state: no further recovery attempts until an explicit reset.
	if h.critical {
		return false
	}

	// Cascade suppression. Everything during the cooldown is treated as
	// recovered without counting.
	if h.breaker.Tripped() {
		metrics.ErrorsSkipped.WithLabelValues("cascade").Inc()
		return true
	}

	// Benign races consume the per-type tolerance pool instead of the
	// global budget, and stay out of the cascade window entirely: a
	// steady rate of tolerated races on a busy screen must not trip the
	// breaker. An exhausted pool means the "benign" rate itself is
	// abnormal, so further ones count like any other error.
	if h.classifier != nil && h.classifier.NonCritical(err, ctx) {
		if h.tolerance[ctx.Type] > 0 {
			h.tolerance[ctx.Type]--
			h.journal.Append(domain.NewErrorRecord(err, ctx, domain.SeverityWarning))
			metrics.ErrorsSkipped.WithLabelValues("tolerated").Inc()
			return true
		}
	}

	// Only errors that are about to be counted feed the breaker window.
	// The error that trips it is itself suppressed uncounted.
	if h.breaker.RecordAndCheck(h.now()) {
		metrics.BreakerTrips.Inc()
		metrics.ErrorsSkipped.WithLabelValues("cascade").Inc()
		return true
	}

	h.total++
	h.tally[ctx.Type]++
	h.journal.Append(domain.NewErrorRecord(err, ctx, domain.SeverityError))
	metrics.ErrorsCounted.WithLabelValues(string(ctx.Type)).Inc()

	limit := h.cfg.MaxErrors
	if ctx.HighChurn {
		limit *= h.cfg.HighChurnMultiplier
	}
	if h.total > limit {
		h.critical = true
		metrics.CriticalState.Set(1)
		h.log.Error("Error budget exhausted, freezing recovery",
			"total", h.total, "limit", limit, "context", ctx.Type, "operation", ctx.Operation)
		return false
	}

	if h.strategies == nil {
		return false
	}
	recovered := h.strategies.Recover(err, ctx)
	outcome := "recovered"
	if !recovered {
		outcome = "failed"
	}
	metrics.Recoveries.WithLabelValues(string(ctx.Type), outcome).Inc()
	return recovered
}

// SafeExecute runs op and contains any failure through Handle. A nil
// return means either success or contained failure; callers that need a
// value use SafeValue and get their fallback in the contained case.
func (h *Handler) SafeExecute(op func() error, ctx domain.ErrorContext) error {
	if h.Critical() {
		// Short-circuit: no recovery is attempted while critical.
		return nil
	}
	err := op()
	if err == nil {
		return nil
	}
	if h.Handle(err, ctx) {
		return nil
	}
	if h.Critical() {
		return fmt.Errorf("recovery frozen, manual reset required: %w", err)
	}
	return err
}

// SafeValue runs op and returns its result, or fallback when the
// failure was contained.
func SafeValue[T any](h *Handler, op func() (T, error), ctx domain.ErrorContext, fallback T) (T, error) {
	if h.Critical() {
		return fallback, nil
	}
	v, err := op()
	if err == nil {
		return v, nil
	}
	if h.Handle(err, ctx) {
		return fallback, nil
	}
	if h.Critical() {
		return fallback, fmt.Errorf("recovery frozen, manual reset required: %w", err)
	}
	return fallback, err
}

// Critical reports whether the error budget has been exhausted.
func (h *Handler) Critical() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.critical
}

// TotalErrors returns the global counted-error total.
func (h *Handler) TotalErrors() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.total
}

// Reset is the operator recovery affordance: it zeroes all counters,
// restores tolerance pools, clears the critical state, clears the
// journal, and releases any breaker trip.
func (h *Handler) Reset() {
	h.mu.Lock()
	h.total = 0
	h.tally = make(map[domain.ContextType]int)
	for t, n := range h.cfg.Tolerance {
		h.tolerance[t.Normalize()] = n
	}
	h.critical = false
	h.journal.Reset()
	h.mu.Unlock()

	h.breaker.Reset()
	metrics.CriticalState.Set(0)
	h.log.Info("Error accounting reset")
}

// Snapshot is a point-in-time view of the accounting state.
type Snapshot struct {
	Critical       bool                       `json:"critical"`
	BreakerTripped bool                       `json:"breaker_tripped"`
	TotalErrors    int                        `json:"total_errors"`
	Tally          map[domain.ContextType]int `json:"tally"`
	RecentErrors   []domain.ErrorRecord       `json:"recent_errors"`
}

// Snapshot returns the current accounting state with the n most recent
// journal entries.
func (h *Handler) Snapshot(n int) Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()

	tally := make(map[domain.ContextType]int, len(h.tally))
	for t, c := range h.tally {
		tally[t] = c
	}
	return Snapshot{
		Critical:       h.critical,
		BreakerTripped: h.breaker.Tripped(),
		TotalErrors:    h.total,
		Tally:          tally,
		RecentErrors:   h.journal.Tail(n),
	}
}
