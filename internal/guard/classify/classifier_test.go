package classify

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/renderguard/renderguard/internal/core/domain"
)

func TestNonCritical_Patterns(t *testing.T) {
	c := New()

	tests := []struct {
		name        string
		err         error
		nonCritical bool
	}{
		{
			name:        "dom null race",
			err:         errors.New("TypeError: Cannot read properties of null (reading 'innerHTML')"),
			nonCritical: true,
		},
		{
			name:        "detached node",
			err:         errors.New("the node was not found in the tree"),
			nonCritical: true,
		},
		{
			name:        "aborted request",
			err:         errors.New("request aborted by screen change"),
			nonCritical: true,
		},
		{
			name:        "closed connection",
			err:         errors.New("write tcp: use of closed network connection"),
			nonCritical: true,
		},
		{
			name:        "engine bootstrap race",
			err:         errors.New("engine not ready (503)"),
			nonCritical: true,
		},
		{
			name:        "genuine failure",
			err:         errors.New("score table corrupt"),
			nonCritical: false,
		},
		{
			name:        "wrapped benign error",
			err:         fmt.Errorf("update question: %w", errors.New("null is not an object")),
			nonCritical: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.NonCritical(tt.err, domain.ErrorContext{Type: domain.ContextDOM})
			if got != tt.nonCritical {
				t.Errorf("NonCritical(%q) = %v, want %v", tt.err, got, tt.nonCritical)
			}
		})
	}
}

func TestNonCritical_Cancellation(t *testing.T) {
	c := New()

	err := fmt.Errorf("fetch scores: %w", context.Canceled)
	if !c.NonCritical(err, domain.ErrorContext{Type: domain.ContextGameLogic}) {
		t.Error("cancellation should always be non-critical")
	}
}

func TestNonCritical_NetworkDeadline(t *testing.T) {
	c := New()
	err := fmt.Errorf("probe: %w", context.DeadlineExceeded)

	if !c.NonCritical(err, domain.ErrorContext{Type: domain.ContextNetwork}) {
		t.Error("network deadline should be non-critical")
	}
	if c.NonCritical(err, domain.ErrorContext{Type: domain.ContextGameLogic}) {
		t.Error("game logic deadline should be counted")
	}
}

func TestNonCritical_ExtraPatterns(t *testing.T) {
	c := New("flaky widget")

	if !c.NonCritical(errors.New("Flaky widget exploded again"), domain.ErrorContext{Type: domain.ContextOther}) {
		t.Error("configured extra pattern should match")
	}
}
