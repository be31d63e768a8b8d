// Package classify decides whether a raised error is a known-benign
// failure that should not be counted against the error budget.
//
// Screens that rewrite content many times per second produce a steady
// background rate of harmless races: a node is detached between lookup
// and mutation, an in-flight request is aborted by a screen change, the
// typesetting engine is probed before it finished booting. Counting all
// of them would trip the circuit breaker on perfectly healthy sessions.
package classify

import (
	"context"
	"errors"
	"strings"

	"github.com/renderguard/renderguard/internal/core/domain"
)

// defaultPatterns is the catalog of known-benign error messages,
// matched case-insensitively as substrings.
var defaultPatterns = []string{
	// Transient DOM-null races during concurrent re-render
	"cannot read properties of null",
	"null is not an object",
	"node was not found",
	"not a child of this node",
	"removed from the document",
	"element is detached",

	// Aborted network calls (screen changed mid-request)
	"request aborted",
	"operation was aborted",
	"connection reset by peer",
	"use of closed network connection",

	// Timing-sensitive typesetting-readiness checks
	"engine not ready",
	"typeset queue not initialized",
	"startup promise pending",
}

// Classifier is a pure predicate over errors; it holds no mutable state.
type Classifier struct {
	patterns []string
}

// New returns a classifier using the default benign-pattern catalog
// plus any extra patterns from configuration.
func New(extra ...string) *Classifier {
	patterns := make([]string, 0, len(defaultPatterns)+len(extra))
	patterns = append(patterns, defaultPatterns...)
	for _, p := range extra {
		if p = strings.ToLower(strings.TrimSpace(p)); p != "" {
			patterns = append(patterns, p)
		}
	}
	return &Classifier{patterns: patterns}
}

// NonCritical reports whether err matches the benign catalog.
// Cancellation is always benign: it means the surrounding operation was
// superseded, not that anything is wrong.
func (c *Classifier) NonCritical(err error, ctx domain.ErrorContext) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range c.patterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	// Readiness probes race with engine bootstrap on every page reload;
	// deadline overruns there are expected, not failures.
	if ctx.Type == domain.ContextNetwork && errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return false
}
