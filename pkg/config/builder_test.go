package config

import (
	"time"

	"mercator-hq/toolgate/pkg/limits/ratelimit"
)

// ConfigBuilder provides a fluent API for building Config instances in tests.
// It starts with default values and allows selective overrides.
type ConfigBuilder struct {
	cfg Config
}

// NewTestConfig creates a new ConfigBuilder with every default applied.
// The resulting configuration is valid and can be used immediately.
func NewTestConfig() *ConfigBuilder {
	return &ConfigBuilder{cfg: *Default()}
}

// Build returns the built Config instance.
func (b *ConfigBuilder) Build() *Config {
	return &b.cfg
}

// WithListenAddress sets the server listen address.
func (b *ConfigBuilder) WithListenAddress(addr string) *ConfigBuilder {
	b.cfg.Server.ListenAddress = addr
	return b
}

// WithSessionGlobal replaces the session-global limit.
func (b *ConfigBuilder) WithSessionGlobal(limit ratelimit.RateLimit) *ConfigBuilder {
	b.cfg.Limits.SessionGlobal = limit
	return b
}

// WithCategory sets a category limit.
func (b *ConfigBuilder) WithCategory(name string, limit ratelimit.RateLimit) *ConfigBuilder {
	categories := make(map[string]ratelimit.RateLimit, len(b.cfg.Limits.Categories)+1)
	for k, v := range b.cfg.Limits.Categories {
		categories[k] = v
	}
	categories[name] = limit
	b.cfg.Limits.Categories = categories
	return b
}

// WithCleanupSchedule sets the session cleanup schedule.
func (b *ConfigBuilder) WithCleanupSchedule(schedule string) *ConfigBuilder {
	b.cfg.Sessions.CleanupSchedule = schedule
	return b
}

// WithEnforcement sets the enforcement action and queue timeout.
func (b *ConfigBuilder) WithEnforcement(action string, timeout time.Duration) *ConfigBuilder {
	b.cfg.Enforcement.Action = action
	b.cfg.Enforcement.QueueTimeout = timeout
	return b
}

// WithJournal enables the journal on the given backend.
func (b *ConfigBuilder) WithJournal(backend string) *ConfigBuilder {
	b.cfg.Journal.Enabled = true
	b.cfg.Journal.Backend = backend
	return b
}

// WithLogging sets the logging level and format.
func (b *ConfigBuilder) WithLogging(level, format string) *ConfigBuilder {
	b.cfg.Telemetry.Logging.Level = level
	b.cfg.Telemetry.Logging.Format = format
	return b
}

// WithTracing enables tracing on the given exporter.
func (b *ConfigBuilder) WithTracing(exporter string) *ConfigBuilder {
	b.cfg.Telemetry.Tracing.Enabled = true
	b.cfg.Telemetry.Tracing.Exporter = exporter
	return b
}
