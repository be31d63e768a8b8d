// Package socket schedules reconnect attempts for the game's realtime
// channel. The recovery dispatcher invokes it when a socket-event
// handler fails; the wire protocol itself belongs to the game layer.
package socket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// Config controls dial retry behavior.
type Config struct {
	URL            string
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	DialTimeout    time.Duration
}

// DefaultConfig provides sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
		DialTimeout:    10 * time.Second,
	}
}

// Reconnector re-establishes the websocket connection with backoff.
// At most one reconnect attempt is pending at a time; ScheduleReconnect
// calls while one is running coalesce.
type Reconnector struct {
	cfg    Config
	dialer *websocket.Dialer
	onConn func(*websocket.Conn)
	log    *slog.Logger

	mu      sync.Mutex
	pending bool
}

// New creates a reconnector. onConn receives each successfully dialed
// connection; ownership transfers to the callback.
func New(cfg Config, onConn func(*websocket.Conn), log *slog.Logger) *Reconnector {
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
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = def.DialTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Reconnector{
		cfg: cfg,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.DialTimeout,
		},
		onConn: onConn,
		log:    log,
	}
}

// ScheduleReconnect starts a reconnect attempt unless one is already
// pending. It returns immediately; dialing runs in its own goroutine.
func (r *Reconnector) ScheduleReconnect() {
	r.mu.Lock()
	if r.pending {
		r.mu.Unlock()
		r.log.Debug("Reconnect already pending, coalescing")
		return
	}
	r.pending = true
	r.mu.Unlock()

	go r.reconnect()
}

// Pending reports whether a reconnect attempt is in progress.
func (r *Reconnector) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

func (r *Reconnector) reconnect() {
	defer func() {
		r.mu.Lock()
		r.pending = false
		r.mu.Unlock()
	}()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.cfg.InitialBackoff
	b.MaxInterval = r.cfg.MaxBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		ctx, cancel := context.WithTimeout(context.Background(), r.cfg.DialTimeout)
		defer cancel()

		conn, _, dialErr := r.dialer.DialContext(ctx, r.cfg.URL, nil)
		if dialErr != nil {
			r.log.Warn("Reconnect attempt failed", "attempt", attempt, "error", dialErr)
			return dialErr
		}
		if r.onConn != nil {
			r.onConn(conn)
		} else {
			_ = conn.Close()
		}
		return nil
	}, backoff.WithMaxRetries(b, uint64(r.cfg.MaxAttempts-1)))

	if err != nil {
		r.log.Error("Reconnect failed, giving up until next socket error",
			"attempts", attempt, "error", err)
		return
	}
	r.log.Info("Socket reconnected", "attempts", attempt)
}
