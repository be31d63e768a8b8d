// Package control assembles the error-containment and rendering
// components into one application with a managed lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/renderguard/renderguard/internal/core/config"
	"github.com/renderguard/renderguard/internal/core/domain"
	"github.com/renderguard/renderguard/internal/core/worker"
	"github.com/renderguard/renderguard/internal/guard/breaker"
	"github.com/renderguard/renderguard/internal/guard/classify"
	"github.com/renderguard/renderguard/internal/guard/recovery"
	"github.com/renderguard/renderguard/internal/render/engine"
	"github.com/renderguard/renderguard/internal/render/readiness"
	"github.com/renderguard/renderguard/internal/render/scheduler"
	"github.com/renderguard/renderguard/internal/status"
	"github.com/renderguard/renderguard/internal/transport/socket"
)

// Options carries the collaborators only the embedding UI/game layer
// can provide. All fields are optional except Invoker when a gRPC
// engine endpoint is configured.
type Options struct {
	// Notifier surfaces soft warnings to the player.
	Notifier recovery.Notifier
	// Resetter restores a region to a known-good placeholder.
	Resetter recovery.RegionResetter
	// Resolver answers whether a region still exists at dispatch time.
	Resolver domain.RegionResolver
	// Invoker wraps the generated gRPC typeset call.
	Invoker engine.TypesetInvoker
}

// App owns every component instance; state is reached through these
// handles, never through package globals.
type App struct {
	cfg config.AppConfig
	log *slog.Logger

	engine      engine.Engine
	breaker     *breaker.Breaker
	handler     *recovery.Handler
	gate        *readiness.Gate
	scheduler   *scheduler.Scheduler
	reconnector *socket.Reconnector
	server      *status.Server
	reporter    *worker.Reporter
}

// New creates an App with all dependencies initialized.
func New(cfg *config.AppConfig, opts Options) (*App, error) {
	log := slog.Default()

	// 1. Engine adapter
	var eng engine.Engine
	var engineStats func() engine.Stats
	switch {
	case cfg.Engine.GRPCEndpoint != "":
		if opts.Invoker == nil {
			return nil, fmt.Errorf("grpc engine endpoint configured without a typeset invoker")
		}
		grpcEng, err := engine.NewGRPCEngine(context.Background(), cfg.Engine.GRPCEndpoint, opts.Invoker)
		if err != nil {
			return nil, fmt.Errorf("failed to init grpc engine: %w", err)
		}
		eng = grpcEng
		log.Info("Using gRPC typesetting engine", "endpoint", cfg.Engine.GRPCEndpoint)
	case cfg.Engine.Endpoint != "":
		httpEng := engine.NewHTTPEngine(cfg.Engine.Endpoint, ms(cfg.Engine.TimeoutMs))
		eng = httpEng
		engineStats = httpEng.Stats
		log.Info("Using HTTP typesetting engine", "endpoint", cfg.Engine.Endpoint)
	default:
		return nil, fmt.Errorf("no typesetting engine endpoint configured")
	}

	// 2. Guard chain: classifier -> breaker -> dispatcher
	brk := breaker.New(cfg.Guard.Breaker())
	classifier := classify.New(cfg.Guard.BenignPatterns...)

	var reconnector *socket.Reconnector
	var reconnectSched recovery.ReconnectScheduler
	if cfg.Socket.URL != "" {
		reconnector = socket.New(cfg.Socket.Reconnector(), nil, log)
		reconnectSched = reconnector
	}

	strategies := recovery.NewStrategies(opts.Notifier, opts.Resetter, reconnectSched, log)
	handler := recovery.NewHandler(cfg.Guard.Recovery(), brk, classifier, strategies, log)

	// 3. Rendering chain: gate -> scheduler
	gate := readiness.New(cfg.Render.Gate(), log)
	sched := scheduler.New(cfg.Render.Scheduler(), eng, gate, opts.Resolver, log)

	// 4. Status surface
	server := status.NewServer(handler, sched, gate, engineStats, cfg.Server.Port)
	reporter := worker.NewReporter(ms(cfg.Server.ReportIntervalMs), handler, sched, gate, log)

	return &App{
		cfg:         *cfg,
		log:         log,
		engine:      eng,
		breaker:     brk,
		handler:     handler,
		gate:        gate,
		scheduler:   sched,
		reconnector: reconnector,
		server:      server,
		reporter:    reporter,
	}, nil
}

// Start begins readiness polling and serves the status endpoints.
func (a *App) Start(ctx context.Context) error {
	a.gate.Watch(a.engine)
	go a.reporter.Start(ctx)

	go func() {
		a.log.Info("Status server listening", "addr", a.server.Addr())
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Status server stopped", "error", err)
		}
	}()
	return nil
}

// Stop shuts down the status server and stops readiness polling.
func (a *App) Stop(ctx context.Context) error {
	a.gate.Stop()
	if err := a.server.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop status server: %w", err)
	}
	if closer, ok := a.engine.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			a.log.Warn("Engine close failed", "error", err)
		}
	}
	return nil
}

// Guard returns the recovery dispatcher handle for UI code paths.
func (a *App) Guard() *recovery.Handler {
	return a.handler
}

// Renderer returns the render scheduler handle.
func (a *App) Renderer() *scheduler.Scheduler {
	return a.scheduler
}

// SignalEngineReady is the external one-shot readiness notification
// from the engine bootstrap sequence.
func (a *App) SignalEngineReady() {
	a.gate.Signal()
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}
