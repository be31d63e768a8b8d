package config

import (
	"time"

	"github.com/renderguard/renderguard/internal/core/domain"
	"github.com/renderguard/renderguard/internal/guard/breaker"
	"github.com/renderguard/renderguard/internal/guard/recovery"
	"github.com/renderguard/renderguard/internal/render/readiness"
	"github.com/renderguard/renderguard/internal/render/scheduler"
	"github.com/renderguard/renderguard/internal/transport/socket"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Engine  EngineConfig  `yaml:"engine"`
	Guard   GuardConfig   `yaml:"guard"`
	Render  RenderConfig  `yaml:"render"`
	Socket  SocketConfig  `yaml:"socket"`
}

// ServerConfig holds status server settings. A non-positive report
// interval disables periodic state logging.
type ServerConfig struct {
	Port             int `yaml:"port"`
	ReportIntervalMs int `yaml:"report_interval_ms"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// EngineConfig holds typesetting engine endpoints. Endpoint selects the
// HTTP sidecar; GRPCEndpoint takes precedence when set and a typeset
// invoker is wired by the embedding application.
type EngineConfig struct {
	Endpoint     string `yaml:"endpoint"`
	GRPCEndpoint string `yaml:"grpc_endpoint"`
	TimeoutMs    int    `yaml:"timeout_ms"`
}

// GuardConfig holds error accounting settings. Durations are
// milliseconds; zero values fall back to component defaults.
type GuardConfig struct {
	CascadeThreshold    int            `yaml:"cascade_threshold"`
	CascadeWindowMs     int            `yaml:"cascade_window_ms"`
	CooldownMs          int            `yaml:"cooldown_ms"`
	MaxErrors           int            `yaml:"max_errors"`
	HighChurnMultiplier int            `yaml:"high_churn_multiplier"`
	JournalCapacity     int            `yaml:"journal_capacity"`
	Tolerance           map[string]int `yaml:"tolerance"`
	BenignPatterns      []string       `yaml:"benign_patterns"`
}

// RenderConfig holds render scheduling settings.
type RenderConfig struct {
	MaxAttempts             int `yaml:"max_attempts"`
	BackoffMs               int `yaml:"backoff_ms"`
	MaxBackoffMs            int `yaml:"max_backoff_ms"`
	ReadinessPollIntervalMs int `yaml:"readiness_poll_interval_ms"`
	ReadinessTimeoutMs      int `yaml:"readiness_timeout_ms"`
}

// SocketConfig holds reconnect settings for the realtime channel.
// An empty URL disables the reconnector.
type SocketConfig struct {
	URL          string `yaml:"url"`
	MaxAttempts  int    `yaml:"max_attempts"`
	BackoffMs    int    `yaml:"backoff_ms"`
	MaxBackoffMs int    `yaml:"max_backoff_ms"`
}

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// Breaker converts to the circuit breaker config.
func (c GuardConfig) Breaker() breaker.Config {
	return breaker.Config{
		Threshold: c.CascadeThreshold,
		Window:    ms(c.CascadeWindowMs),
		Cooldown:  ms(c.CooldownMs),
	}
}

// Recovery converts to the dispatcher config.
func (c GuardConfig) Recovery() recovery.Config {
	cfg := recovery.Config{
		MaxErrors:           c.MaxErrors,
		HighChurnMultiplier: c.HighChurnMultiplier,
		JournalCapacity:     c.JournalCapacity,
	}
	// A nil map means "use defaults"; an explicitly empty mapping in the
	// YAML stays empty and disables the pools, so preserve the distinction.
	if c.Tolerance != nil {
		cfg.Tolerance = make(map[domain.ContextType]int, len(c.Tolerance))
		for t, n := range c.Tolerance {
			cfg.Tolerance[domain.ContextType(t).Normalize()] = n
		}
	}
	return cfg
}

// Gate converts to the readiness gate config.
func (c RenderConfig) Gate() readiness.Config {
	return readiness.Config{
		PollInterval: ms(c.ReadinessPollIntervalMs),
		Timeout:      ms(c.ReadinessTimeoutMs),
	}
}

// Scheduler converts to the render scheduler config.
func (c RenderConfig) Scheduler() scheduler.Config {
	return scheduler.Config{
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: ms(c.BackoffMs),
		MaxBackoff:     ms(c.MaxBackoffMs),
	}
}

// Reconnector converts to the socket reconnector config.
func (c SocketConfig) Reconnector() socket.Config {
	return socket.Config{
		URL:            c.URL,
		MaxAttempts:    c.MaxAttempts,
		InitialBackoff: ms(c.BackoffMs),
		MaxBackoff:     ms(c.MaxBackoffMs),
	}
}
