package config

import (
	"time"

	"mercator-hq/toolgate/pkg/limits"
)

// Default values for configuration fields.
const (
	// Server defaults
	DefaultListenAddress   = "127.0.0.1:8090"
	DefaultReadTimeout     = 10 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	// TLS defaults
	DefaultTLSMinVersion      = "1.3"
	DefaultCertReloadInterval = 5 * time.Minute
	DefaultTLSClientAuth      = "require"

	// Auth defaults
	MinAPIKeyLength = 16

	// Session defaults
	DefaultSessionMaxAge = time.Hour

	// Enforcement defaults
	DefaultEnforcementAction = "block"
	DefaultQueueDepth        = 100
	DefaultQueueTimeout      = 30 * time.Second

	// Journal defaults
	DefaultJournalBackend     = "memory"
	DefaultJournalMaxEntries  = 10000
	DefaultJournalBuffer      = 1000
	DefaultJournalSQLitePath  = "data/violations.db"
	DefaultJournalBusyTimeout = 5 * time.Second
	DefaultJournalRetention   = 7 * 24 * time.Hour

	// Telemetry defaults
	DefaultLogLevel    = "info"
	DefaultLogFormat   = "json"
	DefaultMetricsPath = "/metrics"

	// Tracing defaults
	DefaultTracingExporter    = "otlp"
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingTimeout     = 10 * time.Second
	DefaultTracingSampler     = "always"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "toolgate"
)

// DefaultAuthExemptPaths returns the routes served without an API key.
func DefaultAuthExemptPaths() []string {
	return []string{"/health", "/health/live", "/version"}
}

// ApplyDefaults fills every unset field with its default. An empty limits
// table is replaced with limits.DefaultLimits().
func ApplyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = DefaultListenAddress
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.IdleTimeout == 0 {
		cfg.Server.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Server.TLS.MinVersion == "" {
		cfg.Server.TLS.MinVersion = DefaultTLSMinVersion
	}
	if cfg.Server.TLS.ReloadInterval == 0 {
		cfg.Server.TLS.ReloadInterval = DefaultCertReloadInterval
	}
	if cfg.Server.TLS.ClientAuth == "" {
		cfg.Server.TLS.ClientAuth = DefaultTLSClientAuth
	}
	if cfg.Server.Auth.ExemptPaths == nil {
		cfg.Server.Auth.ExemptPaths = DefaultAuthExemptPaths()
	}

	applyLimitsDefaults(&cfg.Limits)

	// Session defaults
	if cfg.Sessions.MaxAge == 0 {
		cfg.Sessions.MaxAge = DefaultSessionMaxAge
	}

	// Enforcement defaults
	if cfg.Enforcement.Action == "" {
		cfg.Enforcement.Action = DefaultEnforcementAction
	}
	if cfg.Enforcement.QueueDepth == 0 {
		cfg.Enforcement.QueueDepth = DefaultQueueDepth
	}
	if cfg.Enforcement.QueueTimeout == 0 {
		cfg.Enforcement.QueueTimeout = DefaultQueueTimeout
	}

	// Journal defaults
	if cfg.Journal.Backend == "" {
		cfg.Journal.Backend = DefaultJournalBackend
	}
	if cfg.Journal.MaxEntries == 0 {
		cfg.Journal.MaxEntries = DefaultJournalMaxEntries
	}
	if cfg.Journal.Buffer == 0 {
		cfg.Journal.Buffer = DefaultJournalBuffer
	}
	if cfg.Journal.SQLite.Path == "" {
		cfg.Journal.SQLite.Path = DefaultJournalSQLitePath
	}
	if cfg.Journal.SQLite.BusyTimeout == 0 {
		cfg.Journal.SQLite.BusyTimeout = DefaultJournalBusyTimeout
	}
	if cfg.Journal.Retention == 0 {
		cfg.Journal.Retention = DefaultJournalRetention
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Tracing.Exporter == "" {
		cfg.Telemetry.Tracing.Exporter = DefaultTracingExporter
	}
	if cfg.Telemetry.Tracing.Endpoint == "" {
		cfg.Telemetry.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Telemetry.Tracing.Timeout == 0 {
		cfg.Telemetry.Tracing.Timeout = DefaultTracingTimeout
	}
	if cfg.Telemetry.Tracing.Sampler == "" {
		cfg.Telemetry.Tracing.Sampler = DefaultTracingSampler
	}
	if cfg.Telemetry.Tracing.SampleRatio == 0 {
		cfg.Telemetry.Tracing.SampleRatio = DefaultTracingSampleRatio
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
}

// applyLimitsDefaults fills in the built-in table. A partially written
// table keeps what it sets; missing dimensions come from the defaults.
func applyLimitsDefaults(l *limits.Limits) {
	def := limits.DefaultLimits()

	if l.SessionGlobal.IsZero() {
		l.SessionGlobal = def.SessionGlobal
	}
	if l.IPBased.IsZero() {
		l.IPBased = def.IPBased
	}
	if len(l.Tools) == 0 {
		l.Tools = def.Tools
		if l.DefaultTool == "" {
			l.DefaultTool = def.DefaultTool
		}
	}
	if l.DefaultTool == "" {
		l.DefaultTool = def.DefaultTool
	}
	if l.Categories == nil {
		l.Categories = def.Categories
	}
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
