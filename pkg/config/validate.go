package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/robfig/cron/v3"

	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/enforcement"
	"mercator-hq/toolgate/pkg/security/secrets"
	securitytls "mercator-hq/toolgate/pkg/security/tls"
	"mercator-hq/toolgate/pkg/telemetry/tracing"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "server.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
// It implements the error interface and provides access to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// HasField reports whether any error refers to field.
func (e ValidationError) HasField(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. It returns nil if the configuration is valid.
// All validation errors are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateLimits(&cfg.Limits)...)
	errs = append(errs, validateSessions(&cfg.Sessions)...)
	errs = append(errs, validateEnforcement(&cfg.Enforcement)...)
	errs = append(errs, validateJournal(&cfg.Journal)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateServer(cfg *ServerConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: "listen address is required",
		})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{
			Field:   "server.listen_address",
			Message: fmt.Sprintf("invalid listen address %q: %v", cfg.ListenAddress, err),
		})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.read_timeout", Message: "read timeout must be positive"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.write_timeout", Message: "write timeout must be positive"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.idle_timeout", Message: "idle timeout must be positive"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{Field: "server.shutdown_timeout", Message: "shutdown timeout must be positive"})
	}

	errs = append(errs, validateTLS(&cfg.TLS)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)

	return errs
}

func validateTLS(cfg *TLSConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if err := cfg.SecurityConfig().Validate(); err != nil {
		errs = append(errs, FieldError{Field: "server.tls", Message: err.Error()})
	}
	if cfg.ReloadInterval < 0 {
		errs = append(errs, FieldError{Field: "server.tls.cert_reload_interval", Message: "reload interval must be positive"})
	}
	return errs
}

// SecurityConfig converts the file settings to the TLS package's Config.
func (c *TLSConfig) SecurityConfig() *securitytls.Config {
	return &securitytls.Config{
		Enabled:      c.Enabled,
		CertFile:     c.CertFile,
		KeyFile:      c.KeyFile,
		MinVersion:   c.MinVersion,
		CipherSuites: c.CipherSuites,
		ClientCAFile: c.ClientCAFile,
		ClientAuth:   c.ClientAuth,
	}
}

func validateAuth(cfg *AuthConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError
	if len(cfg.Keys) == 0 {
		errs = append(errs, FieldError{
			Field:   "server.auth.keys",
			Message: "at least one API key is required when auth is enabled",
		})
	}

	resolver := secrets.DefaultResolver()
	seen := make(map[string]bool, len(cfg.Keys))
	for i, k := range cfg.Keys {
		field := fmt.Sprintf("server.auth.keys[%d]", i)
		if k.Name == "" {
			errs = append(errs, FieldError{Field: field + ".name", Message: "key name is required"})
		} else if seen[k.Name] {
			errs = append(errs, FieldError{Field: field + ".name", Message: fmt.Sprintf("duplicate key name %q", k.Name)})
		}
		seen[k.Name] = true

		switch {
		case k.Key == "":
			errs = append(errs, FieldError{Field: field + ".key", Message: "key is required"})
		case !resolver.IsReference(k.Key) && len(k.Key) < MinAPIKeyLength:
			errs = append(errs, FieldError{
				Field:   field + ".key",
				Message: fmt.Sprintf("key must be at least %d characters", MinAPIKeyLength),
			})
		}
	}

	for _, p := range cfg.ExemptPaths {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, FieldError{
				Field:   "server.auth.exempt_paths",
				Message: fmt.Sprintf("exempt path %q must start with /", p),
			})
		}
	}

	return errs
}

// validateLimits maps the limits table's own validation onto field errors.
func validateLimits(l *limits.Limits) []FieldError {
	err := l.Validate()
	if err == nil {
		return nil
	}

	var errs []FieldError
	for _, e := range flatten(err) {
		var cfgErr *limits.ConfigError
		if errors.As(e, &cfgErr) {
			errs = append(errs, FieldError{Field: "limits." + cfgErr.Path, Message: cfgErr.Err.Error()})
			continue
		}
		errs = append(errs, FieldError{Field: "limits", Message: e.Error()})
	}
	return errs
}

func flatten(err error) []error {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		if _, isCfg := err.(*limits.ConfigError); !isCfg {
			return joined.Unwrap()
		}
	}
	return []error{err}
}

func validateSessions(cfg *SessionsConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxAge < 0 {
		errs = append(errs, FieldError{
			Field:   "sessions.max_age",
			Message: "max age must be non-negative",
		})
	}

	if cfg.CleanupSchedule != "" {
		if _, err := cron.ParseStandard(cfg.CleanupSchedule); err != nil {
			errs = append(errs, FieldError{
				Field:   "sessions.cleanup_schedule",
				Message: fmt.Sprintf("invalid cron expression %q: %v", cfg.CleanupSchedule, err),
			})
		}
	}

	return errs
}

func validateEnforcement(cfg *EnforcementConfig) []FieldError {
	var errs []FieldError

	if _, err := enforcement.ParseAction(cfg.Action); err != nil {
		errs = append(errs, FieldError{
			Field:   "enforcement.action",
			Message: fmt.Sprintf("invalid action %q: must be 'block', 'queue', or 'alert'", cfg.Action),
		})
	}
	if cfg.QueueDepth < 0 {
		errs = append(errs, FieldError{
			Field:   "enforcement.queue_depth",
			Message: "queue depth must be non-negative",
		})
	}
	if cfg.QueueTimeout < 0 {
		errs = append(errs, FieldError{
			Field:   "enforcement.queue_timeout",
			Message: "queue timeout must be positive",
		})
	}

	return errs
}

func validateJournal(cfg *JournalConfig) []FieldError {
	var errs []FieldError

	validBackends := map[string]bool{"memory": true, "sqlite": true}
	if cfg.Backend == "" {
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: "backend is required",
		})
	} else if !validBackends[cfg.Backend] {
		errs = append(errs, FieldError{
			Field:   "journal.backend",
			Message: fmt.Sprintf("invalid backend %q: must be 'memory' or 'sqlite'", cfg.Backend),
		})
	}

	switch cfg.Backend {
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.path",
				Message: "SQLite path is required when backend is 'sqlite'",
			})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{
				Field:   "journal.sqlite.busy_timeout",
				Message: "busy timeout must be positive",
			})
		}
	case "memory":
		if cfg.MaxEntries < 0 {
			errs = append(errs, FieldError{
				Field:   "journal.max_entries",
				Message: "max entries must be non-negative",
			})
		}
	}

	if cfg.Buffer < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.buffer",
			Message: "buffer must be non-negative",
		})
	}

	if cfg.Retention < 0 {
		errs = append(errs, FieldError{
			Field:   "journal.retention",
			Message: "retention must be non-negative",
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.Logging.Level == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: "logging level is required",
		})
	} else if !validLevels[cfg.Logging.Level] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("invalid logging level %q: must be 'debug', 'info', 'warn', or 'error'", cfg.Logging.Level),
		})
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if cfg.Logging.Format == "" {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: "logging format is required",
		})
	} else if !validFormats[cfg.Logging.Format] {
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("invalid logging format %q: must be 'json' or 'text'", cfg.Logging.Format),
		})
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Path == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path is required when metrics are enabled",
			})
		} else if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			errs = append(errs, FieldError{
				Field:   "telemetry.metrics.path",
				Message: "metrics path must start with /",
			})
		}
	}

	errs = append(errs, validateTracing(&cfg.Tracing)...)

	return errs
}

func validateTracing(cfg *TracingConfig) []FieldError {
	if !cfg.Enabled {
		return nil
	}

	var errs []FieldError

	switch cfg.Exporter {
	case tracing.ExporterOTLP:
		if cfg.Endpoint == "" {
			errs = append(errs, FieldError{
				Field:   "telemetry.tracing.endpoint",
				Message: "endpoint is required for the otlp exporter",
			})
		}
	case tracing.ExporterStdout:
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.exporter",
			Message: fmt.Sprintf("invalid exporter %q: must be 'otlp' or 'stdout'", cfg.Exporter),
		})
	}

	if cfg.Timeout < 0 {
		errs = append(errs, FieldError{
			Field:   "telemetry.tracing.timeout",
			Message: "timeout must be non-negative",
		})
	}

	if err := tracing.ValidateSampler(cfg.Sampler, cfg.SampleRatio); err != nil {
		field := "telemetry.tracing.sampler"
		if cfg.Sampler == tracing.SamplerRatio {
			field = "telemetry.tracing.sample_ratio"
		}
		errs = append(errs, FieldError{Field: field, Message: err.Error()})
	}

	return errs
}
