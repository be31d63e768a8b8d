package recovery

import (
	"log/slog"

	"github.com/renderguard/renderguard/internal/core/domain"
)

// Strategy attempts to produce a safe fallback for an error in one
// context type. Recover returns false only when no safe fallback
// exists, in which case the caller must surface the error.
type Strategy interface {
	Recover(err error, ctx domain.ErrorContext) bool
}

// Notifier surfaces a soft, transient warning to the player. Transient
// issues must stay non-blocking: no modal, no interruption of play.
type Notifier interface {
	Warn(message string)
}

// RegionResetter restores a content region to a known-good placeholder.
type RegionResetter interface {
	ResetRegion(id string) error
}

// ReconnectScheduler schedules a transport reconnect attempt. It must
// be safe to call repeatedly; overlapping calls coalesce.
type ReconnectScheduler interface {
	ScheduleReconnect()
}

// Strategies bundles the per-type recovery strategies consulted by the
// Handler. Nil collaborators degrade each strategy to its weakest safe
// behavior rather than panicking.
type Strategies struct {
	Notifier    Notifier
	Resetter    RegionResetter
	Reconnector ReconnectScheduler
	Log         *slog.Logger
}

// NewStrategies wires the fixed strategy table. log may be nil.
func NewStrategies(notifier Notifier, resetter RegionResetter, reconnector ReconnectScheduler, log *slog.Logger) *Strategies {
	if log == nil {
		log = slog.Default()
	}
	return &Strategies{
		Notifier:    notifier,
		Resetter:    resetter,
		Reconnector: reconnector,
		Log:         log,
	}
}

// Recover dispatches err to the strategy for its context type. The
// switch is exhaustive over the closed ContextType set; unrecognized
// tags were already normalized to ContextOther.
func (s *Strategies) Recover(err error, ctx domain.ErrorContext) bool {
	switch ctx.Type.Normalize() {
	case domain.ContextDOM:
		return s.recoverDOM(err, ctx)
	case domain.ContextNetwork:
		return s.recoverNetwork(err, ctx)
	case domain.ContextGameLogic:
		return s.recoverGameLogic(err, ctx)
	case domain.ContextTranslation:
		return s.recoverTranslation(err, ctx)
	case domain.ContextSocket:
		return s.recoverSocket(err, ctx)
	default:
		return s.recoverDefault(err, ctx)
	}
}

// recoverDOM tolerates the failure. DOM mutation errors on a live
// screen almost always mean the target was already re-rendered; the
// next refresh writes correct content anyway.
func (s *Strategies) recoverDOM(err error, ctx domain.ErrorContext) bool {
	s.Log.Debug("DOM operation failed, tolerating", "operation", ctx.Operation, "error", err)
	return true
}

func (s *Strategies) recoverNetwork(err error, ctx domain.ErrorContext) bool {
	s.Log.Warn("Network operation failed", "operation", ctx.Operation, "error", err)
	if s.Notifier != nil {
		s.Notifier.Warn("Connection hiccup, retrying in the background")
	}
	return true
}

// recoverGameLogic resets the affected region to a known-good
// placeholder. Without a resetter there is no safe fallback.
func (s *Strategies) recoverGameLogic(err error, ctx domain.ErrorContext) bool {
	if s.Resetter == nil || ctx.Region == "" {
		s.Log.Error("Game logic error with no resettable region", "operation", ctx.Operation, "error", err)
		return false
	}
	if resetErr := s.Resetter.ResetRegion(ctx.Region); resetErr != nil {
		s.Log.Error("Region reset failed", "region", ctx.Region, "error", resetErr)
		return false
	}
	s.Log.Warn("Reset region after game logic error", "region", ctx.Region, "operation", ctx.Operation, "error", err)
	return true
}

// recoverTranslation falls back to the literal key. Callers pass the
// key as the SafeExecute fallback value, so recovery here is just
// accepting the degradation.
func (s *Strategies) recoverTranslation(err error, ctx domain.ErrorContext) bool {
	s.Log.Debug("Translation lookup failed, falling back to key", "operation", ctx.Operation, "error", err)
	return true
}

func (s *Strategies) recoverSocket(err error, ctx domain.ErrorContext) bool {
	s.Log.Warn("Socket event failed", "operation", ctx.Operation, "error", err)
	if s.Reconnector == nil {
		return false
	}
	s.Reconnector.ScheduleReconnect()
	return true
}

func (s *Strategies) recoverDefault(err error, ctx domain.ErrorContext) bool {
	s.Log.Warn("Unclassified error, continuing", "operation", ctx.Operation, "error", err)
	return true
}
