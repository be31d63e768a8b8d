package recovery

import (
	"errors"
	"testing"
	"time"

	"github.com/renderguard/renderguard/internal/core/domain"
	"github.com/renderguard/renderguard/internal/guard/breaker"
	"github.com/renderguard/renderguard/internal/guard/classify"
)

// =============================================================================
// Helpers
// =============================================================================

// stubStrategy records dispatches and returns a fixed result.
type stubStrategy struct {
	calls  int
	last   domain.ErrorContext
	result bool
}

func (s *stubStrategy) Recover(err error, ctx domain.ErrorContext) bool {
	s.calls++
	s.last = ctx
	return s.result
}

// fakeClock hands out timestamps a fixed step apart so breaker behavior
// is deterministic regardless of test host speed.
type fakeClock struct {
	t    time.Time
	step time.Duration
}

func (c *fakeClock) now() time.Time {
	c.t = c.t.Add(c.step)
	return c.t
}

func newTestHandler(cfg Config, strategy Strategy, step time.Duration) *Handler {
	brk := breaker.New(breaker.Config{Threshold: 5, Window: time.Second, Cooldown: time.Minute})
	h := NewHandler(cfg, brk, classify.New(), strategy, nil)
	h.now = (&fakeClock{t: time.Now(), step: step}).now
	return h
}

// =============================================================================
// Cascade suppression
// =============================================================================

func TestHandle_CascadeSuppression(t *testing.T) {
	strategy := &stubStrategy{result: true}
	// 100ms between errors: 6 errors land within the 1s window.
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 100*time.Millisecond)

	errDOM := errors.New("board update exploded")
	for i := 0; i < 6; i++ {
		if !h.Handle(errDOM, domain.ErrorContext{Type: domain.ContextDOM, Operation: "board_update"}) {
			t.Fatalf("error %d should be contained", i+1)
		}
	}

	// Errors 1-4 counted normally; 5 tripped the breaker, 6 was suppressed.
	if got := h.TotalErrors(); got != 4 {
		t.Fatalf("expected 4 counted errors, got %d", got)
	}

	// While tripped, any context is auto-recovered without counting.
	before := h.TotalErrors()
	recovered := h.Handle(errors.New("score desync"),
		domain.ErrorContext{Type: domain.ContextGameLogic, Operation: "question_display"})
	if !recovered {
		t.Fatal("errors during a trip must report recovered")
	}
	if h.TotalErrors() != before {
		t.Fatal("errors during a trip must not be counted")
	}
	if strategy.last.Type == domain.ContextGameLogic {
		t.Fatal("no strategy should run while the breaker is tripped")
	}
}

// =============================================================================
// Budget and critical state
// =============================================================================

func TestHandle_BudgetExhaustionSetsCritical(t *testing.T) {
	strategy := &stubStrategy{result: true}
	// 2s between errors: always outside the cascade window.
	h := newTestHandler(Config{MaxErrors: 5}, strategy, 2*time.Second)

	errNet := errors.New("lobby sync failed")
	ctx := domain.ErrorContext{Type: domain.ContextNetwork, Operation: "lobby_sync"}

	for i := 0; i < 5; i++ {
		if !h.Handle(errNet, ctx) {
			t.Fatalf("error %d within budget should be contained", i+1)
		}
	}
	if h.Critical() {
		t.Fatal("critical before budget exceeded")
	}

	if h.Handle(errNet, ctx) {
		t.Fatal("budget-exceeding error must not report recovered")
	}
	if !h.Critical() {
		t.Fatal("expected critical state after 6th error with maxErrors=5")
	}

	// Critical state persists across subsequent calls.
	if h.Handle(errNet, ctx) {
		t.Fatal("recovery must stay frozen while critical")
	}
	if !h.Critical() {
		t.Fatal("critical state must persist until reset")
	}
}

func TestHandle_HighChurnBudget(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 2, HighChurnMultiplier: 3}, strategy, 2*time.Second)

	ctx := domain.ErrorContext{Type: domain.ContextDOM, Operation: "preview_update", HighChurn: true}
	errPreview := errors.New("preview pane exploded")

	// Effective budget is 2*3=6 for high-churn contexts.
	for i := 0; i < 6; i++ {
		if !h.Handle(errPreview, ctx) {
			t.Fatalf("high-churn error %d should be contained", i+1)
		}
	}
	if h.Handle(errPreview, ctx) {
		t.Fatal("7th high-churn error should exceed the raised budget")
	}
	if !h.Critical() {
		t.Fatal("expected critical state")
	}
}

// =============================================================================
// Tolerance pools
// =============================================================================

func TestHandle_ToleranceConsumedBeforeCounting(t *testing.T) {
	strategy := &stubStrategy{result: true}
	cfg := Config{
		MaxErrors: 50,
		Tolerance: map[domain.ContextType]int{domain.ContextDOM: 2},
	}
	h := newTestHandler(cfg, strategy, 2*time.Second)

	benign := errors.New("null is not an object")
	ctx := domain.ErrorContext{Type: domain.ContextDOM, Operation: "answer_reveal"}

	h.Handle(benign, ctx)
	h.Handle(benign, ctx)
	if got := h.TotalErrors(); got != 0 {
		t.Fatalf("tolerated errors must not be counted, got %d", got)
	}

	// Pool exhausted: the same benign error now counts.
	h.Handle(benign, ctx)
	if got := h.TotalErrors(); got != 1 {
		t.Fatalf("expected 1 counted error after tolerance exhaustion, got %d", got)
	}
}

func TestHandle_ToleratedErrorsDoNotTripBreaker(t *testing.T) {
	strategy := &stubStrategy{result: true}
	cfg := Config{
		MaxErrors: 50,
		Tolerance: map[domain.ContextType]int{domain.ContextDOM: 100},
	}
	// 100ms between errors: a burst well inside the breaker's 1s window,
	// enough to trip its threshold of 5 if these were recorded.
	h := newTestHandler(cfg, strategy, 100*time.Millisecond)

	benign := errors.New("null is not an object")
	ctx := domain.ErrorContext{Type: domain.ContextDOM, Operation: "board_update"}
	for i := 0; i < 8; i++ {
		if !h.Handle(benign, ctx) {
			t.Fatalf("benign error %d should be contained", i+1)
		}
	}

	snap := h.Snapshot(0)
	if snap.BreakerTripped {
		t.Fatal("a burst of tolerated benign errors must not trip the breaker")
	}
	if snap.TotalErrors != 0 {
		t.Fatalf("tolerated errors must not be counted, got %d", snap.TotalErrors)
	}

	// The accounting path is fully intact: a genuine error still counts
	// and dispatches instead of being auto-recovered by a phantom trip.
	h.Handle(errors.New("score desync"),
		domain.ErrorContext{Type: domain.ContextGameLogic, Operation: "question_display"})
	if h.TotalErrors() != 1 {
		t.Fatal("genuine error after the benign burst must be counted")
	}
	if strategy.calls != 1 {
		t.Fatalf("expected 1 strategy dispatch, got %d", strategy.calls)
	}
}

func TestHandle_ExhaustedToleranceFeedsBreaker(t *testing.T) {
	strategy := &stubStrategy{result: true}
	cfg := Config{
		MaxErrors: 50,
		Tolerance: map[domain.ContextType]int{domain.ContextDOM: 2},
	}
	h := newTestHandler(cfg, strategy, 100*time.Millisecond)

	benign := errors.New("null is not an object")
	ctx := domain.ErrorContext{Type: domain.ContextDOM, Operation: "board_update"}

	// 2 tolerated, then 5 counted ones land inside the window: the 5th
	// counted error trips.
	for i := 0; i < 7; i++ {
		h.Handle(benign, ctx)
	}
	snap := h.Snapshot(0)
	if !snap.BreakerTripped {
		t.Fatal("benign errors past the tolerance pool must feed the breaker")
	}
	if snap.TotalErrors != 4 {
		t.Fatalf("expected 4 counted errors before the trip, got %d", snap.TotalErrors)
	}
}

func TestHandle_BenignErrorWithoutAllowanceCounts(t *testing.T) {
	strategy := &stubStrategy{result: true}
	cfg := Config{
		MaxErrors: 50,
		Tolerance: map[domain.ContextType]int{domain.ContextDOM: 5},
	}
	h := newTestHandler(cfg, strategy, 2*time.Second)

	benign := errors.New("request aborted")
	h.Handle(benign, domain.ErrorContext{Type: domain.ContextSocket})
	if got := h.TotalErrors(); got != 1 {
		t.Fatalf("benign error of a type without allowance should count, got %d", got)
	}
}

func TestHandle_EmptyToleranceDisablesPools(t *testing.T) {
	strategy := &stubStrategy{result: true}
	cfg := Config{
		MaxErrors: 50,
		Tolerance: map[domain.ContextType]int{},
	}
	h := newTestHandler(cfg, strategy, 2*time.Second)

	h.Handle(errors.New("null is not an object"), domain.ErrorContext{Type: domain.ContextDOM})
	if got := h.TotalErrors(); got != 1 {
		t.Fatalf("with pools disabled even benign errors must count, got %d", got)
	}
}

// =============================================================================
// Strategy dispatch and unrecognized types
// =============================================================================

func TestHandle_DispatchesToStrategy(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 2*time.Second)

	h.Handle(errors.New("desync"), domain.ErrorContext{Type: domain.ContextGameLogic})
	if strategy.calls != 1 {
		t.Fatalf("expected 1 strategy dispatch, got %d", strategy.calls)
	}
}

func TestHandle_UnrecognizedTypeNormalized(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 2*time.Second)

	h.Handle(errors.New("mystery"), domain.ErrorContext{Type: "quantum_flux"})
	if strategy.last.Type != domain.ContextOther {
		t.Fatalf("expected normalization to %s, got %s", domain.ContextOther, strategy.last.Type)
	}

	snap := h.Snapshot(10)
	if snap.Tally[domain.ContextOther] != 1 {
		t.Fatalf("expected tally under %s, got %+v", domain.ContextOther, snap.Tally)
	}
}

func TestHandle_StrategyFailurePropagates(t *testing.T) {
	strategy := &stubStrategy{result: false}
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 2*time.Second)

	if h.Handle(errors.New("desync"), domain.ErrorContext{Type: domain.ContextGameLogic}) {
		t.Fatal("strategy failure must report not recovered")
	}
	if h.Critical() {
		t.Fatal("a single strategy failure must not set critical state")
	}
}

// =============================================================================
// SafeExecute / SafeValue
// =============================================================================

func TestSafeExecute_ContainsFailure(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 2*time.Second)

	err := h.SafeExecute(func() error {
		return errors.New("flaky write")
	}, domain.ErrorContext{Type: domain.ContextDOM})
	if err != nil {
		t.Fatalf("contained failure should return nil, got %v", err)
	}
}

func TestSafeExecute_ShortCircuitsWhileCritical(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 1}, strategy, 2*time.Second)

	boom := errors.New("boom")
	ctx := domain.ErrorContext{Type: domain.ContextGameLogic}
	h.Handle(boom, ctx)
	h.Handle(boom, ctx) // exceeds budget, sets critical

	ran := false
	err := h.SafeExecute(func() error {
		ran = true
		return nil
	}, ctx)
	if err != nil {
		t.Fatalf("short-circuit should return nil, got %v", err)
	}
	if ran {
		t.Fatal("operation must not run while critical")
	}
}

func TestSafeValue_FallbackOnContainedFailure(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 2*time.Second)

	got, err := SafeValue(h, func() (string, error) {
		return "", errors.New("lookup failed")
	}, domain.ErrorContext{Type: domain.ContextTranslation}, "quiz.question.title")
	if err != nil {
		t.Fatalf("contained failure should return nil error, got %v", err)
	}
	if got != "quiz.question.title" {
		t.Fatalf("expected literal key fallback, got %q", got)
	}
}

func TestSafeValue_ResultOnSuccess(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 2*time.Second)

	got, err := SafeValue(h, func() (int, error) {
		return 42, nil
	}, domain.ErrorContext{Type: domain.ContextGameLogic}, 0)
	if err != nil || got != 42 {
		t.Fatalf("expected (42, nil), got (%d, %v)", got, err)
	}
}

// =============================================================================
// Reset
// =============================================================================

func TestReset_RestoresEverything(t *testing.T) {
	strategy := &stubStrategy{result: true}
	cfg := Config{
		MaxErrors: 2,
		Tolerance: map[domain.ContextType]int{domain.ContextDOM: 1},
	}
	h := newTestHandler(cfg, strategy, 2*time.Second)

	boom := errors.New("boom")
	ctx := domain.ErrorContext{Type: domain.ContextGameLogic}
	h.Handle(boom, ctx)
	h.Handle(boom, ctx)
	h.Handle(boom, ctx) // critical now
	if !h.Critical() {
		t.Fatal("setup: expected critical")
	}

	h.Reset()

	if h.Critical() {
		t.Fatal("Reset must clear critical state")
	}
	if h.TotalErrors() != 0 {
		t.Fatal("Reset must zero the global counter")
	}
	snap := h.Snapshot(10)
	if len(snap.Tally) != 0 {
		t.Fatalf("Reset must clear the tally, got %+v", snap.Tally)
	}
	if len(snap.RecentErrors) != 0 {
		t.Fatal("Reset must clear the journal")
	}

	// Tolerance pools are restored too.
	h.Handle(errors.New("null is not an object"), domain.ErrorContext{Type: domain.ContextDOM})
	if h.TotalErrors() != 0 {
		t.Fatal("tolerance pool should be refilled after reset")
	}
}

// =============================================================================
// Snapshot
// =============================================================================

func TestSnapshot_ReflectsState(t *testing.T) {
	strategy := &stubStrategy{result: true}
	h := newTestHandler(Config{MaxErrors: 50}, strategy, 2*time.Second)

	h.Handle(errors.New("a"), domain.ErrorContext{Type: domain.ContextNetwork, Operation: "poll"})
	h.Handle(errors.New("b"), domain.ErrorContext{Type: domain.ContextNetwork, Operation: "poll"})
	h.Handle(errors.New("c"), domain.ErrorContext{Type: domain.ContextSocket, Operation: "vote"})

	snap := h.Snapshot(2)
	if snap.TotalErrors != 3 {
		t.Errorf("expected 3 total errors, got %d", snap.TotalErrors)
	}
	if snap.Tally[domain.ContextNetwork] != 2 || snap.Tally[domain.ContextSocket] != 1 {
		t.Errorf("unexpected tally: %+v", snap.Tally)
	}
	if len(snap.RecentErrors) != 2 {
		t.Fatalf("expected journal tail of 2, got %d", len(snap.RecentErrors))
	}
	if snap.RecentErrors[1].Message != "c" {
		t.Errorf("expected newest record last, got %q", snap.RecentErrors[1].Message)
	}
}
