package config

import (
	"time"

	"mercator-hq/toolgate/pkg/limits"
)

// Config is the root configuration structure for toolgate.
// It contains the limits table plus the sections for the admin server,
// session maintenance, enforcement policy, violation journal, and telemetry.
type Config struct {
	// Server contains admin HTTP server configuration.
	Server ServerConfig `yaml:"server"`

	// Limits is the four-dimension limits table. An empty table means
	// limits.DefaultLimits().
	Limits limits.Limits `yaml:"limits"`

	// Sessions controls idle session expiry.
	Sessions SessionsConfig `yaml:"sessions"`

	// Enforcement selects what happens to a denied tool call.
	Enforcement EnforcementConfig `yaml:"enforcement"`

	// Journal configures the violation journal.
	Journal JournalConfig `yaml:"journal"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Watch reloads the limits table when the configuration file changes.
	// Default: false
	Watch bool `yaml:"watch"`
}

// ServerConfig contains admin HTTP server configuration.
type ServerConfig struct {
	// ListenAddress is the address the admin API binds to.
	// Default: "127.0.0.1:8090"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 10s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 60s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 15s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// TLS serves the admin API over HTTPS.
	TLS TLSConfig `yaml:"tls"`

	// Auth requires an API key on admin routes.
	Auth AuthConfig `yaml:"auth"`
}

// TLSConfig contains admin server TLS configuration.
type TLSConfig struct {
	// Enabled controls whether the admin server speaks HTTPS.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the path to the PEM certificate.
	// Required when Enabled is true.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM private key.
	// Required when Enabled is true.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the minimum TLS version to accept.
	// Options: "1.2", "1.3"
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// CipherSuites restricts TLS 1.2 cipher suites.
	// If empty, Go's default secure cipher suites are used.
	CipherSuites []string `yaml:"cipher_suites"`

	// ReloadInterval is how often certificate files are checked for changes.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"cert_reload_interval"`

	// ClientCAFile enables mutual TLS, verifying client certificates
	// against this CA bundle.
	ClientCAFile string `yaml:"client_ca_file"`

	// ClientAuth controls client certificate handling when ClientCAFile is set.
	// Options: "require", "request", "verify_if_given"
	// Default: "require"
	ClientAuth string `yaml:"client_auth"`
}

// AuthConfig contains admin API authentication configuration.
type AuthConfig struct {
	// Enabled requires a valid API key on every non-exempt route.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Keys are the accepted API keys.
	Keys []APIKeyConfig `yaml:"keys"`

	// ExemptPaths are served without a key.
	// Default: ["/health", "/health/live", "/version"]
	ExemptPaths []string `yaml:"exempt_paths"`
}

// APIKeyConfig is one admin API key.
type APIKeyConfig struct {
	// Name identifies the key holder in logs.
	Name string `yaml:"name"`

	// Key is the key itself, or a secret reference such as
	// "env:TOOLGATE_OPS_KEY" or "file:/run/secrets/ops".
	Key string `yaml:"key"`

	// Disabled rejects the key without removing it.
	// Default: false
	Disabled bool `yaml:"disabled"`
}

// SessionsConfig controls session expiry.
type SessionsConfig struct {
	// MaxAge is how long a session may stay idle before cleanup removes it.
	// Default: 1h
	MaxAge time.Duration `yaml:"max_age"`

	// CleanupSchedule is a cron expression for the background sweep.
	// Empty disables the sweep; cleanup then runs only on demand.
	// Example: "*/5 * * * *" or "@every 10m"
	CleanupSchedule string `yaml:"cleanup_schedule"`
}

// EnforcementConfig selects the deny policy applied by the tool middleware.
type EnforcementConfig struct {
	// Action is one of "block", "alert", "queue".
	// Default: "block"
	Action string `yaml:"action"`

	// QueueDepth is the maximum number of calls waiting in queue mode.
	// Default: 100
	QueueDepth int `yaml:"queue_depth"`

	// QueueTimeout is how long a queued call waits before giving up.
	// Default: 30s
	QueueTimeout time.Duration `yaml:"queue_timeout"`
}

// JournalConfig configures the violation journal.
type JournalConfig struct {
	// Enabled records every deny in the journal.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "memory"
	Backend string `yaml:"backend"`

	// MaxEntries caps the memory backend.
	// Default: 10000
	MaxEntries int `yaml:"max_entries"`

	// Buffer is the number of violations queued for the journal writer.
	// A deny that finds the queue full is dropped and counted.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Retention is how long violations are kept. Pruning runs with the
	// session cleanup schedule. Zero keeps everything.
	// Default: 168h (7 days)
	Retention time.Duration `yaml:"retention"`
}

// SQLiteConfig contains SQLite journal settings.
type SQLiteConfig struct {
	// Path is the database file path.
	// Default: "data/violations.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait for a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	// Logging contains logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains metrics collection configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level to emit.
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	Level string `yaml:"level"`

	// Format controls the log output format.
	// Options: "json", "text"
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in log entries.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactIPs masks client IP addresses in log output.
	// Default: false
	RedactIPs bool `yaml:"redact_ips"`
}

// MetricsConfig contains metrics collection configuration.
type MetricsConfig struct {
	// Enabled exposes Prometheus metrics on the admin server.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the Prometheus metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing configuration.
type TracingConfig struct {
	// Enabled turns on span export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Exporter selects the span exporter.
	// Options: "otlp", "stdout"
	// Default: "otlp"
	Exporter string `yaml:"exporter"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// Timeout bounds each export.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`

	// Sampler is the sampling strategy.
	// Options: "always", "never", "ratio"
	// Default: "always"
	Sampler string `yaml:"sampler"`

	// SampleRatio is the fraction of traces kept by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is reported as the service.name resource attribute.
	// Default: "toolgate"
	ServiceName string `yaml:"service_name"`
}
