// Package engine adapts the external typesetting engine.
//
// This package contains:
//   - Engine interface: core abstraction over the engine
//   - HTTPEngine: adapter for an HTTP typesetting sidecar
//   - GRPCEngine: adapter over a gRPC connection with generated clients
//
// The engine initializes on its own schedule; callers must hold calls
// until the readiness gate resolves.
package engine

import (
	"context"
	"time"

	"github.com/renderguard/renderguard/internal/core/domain"
)

// Engine is the external typesetting engine as an opaque collaborator.
type Engine interface {
	// Typeset renders notation inside the region. The engine keeps
	// per-node bookkeeping; callers must never issue overlapping calls
	// for the same region.
	Typeset(ctx context.Context, region domain.Region) error

	// Available reports whether the engine finished initializing.
	Available() bool
}

// Stats holds call accounting for an engine adapter.
type Stats struct {
	Requests       int           `json:"requests"`
	Failures       int           `json:"failures"`
	AverageLatency time.Duration `json:"average_latency"`
}
