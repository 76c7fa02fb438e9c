package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "TOOLGATE_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML and applies defaults. It does not validate.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention TOOLGATE_SECTION_FIELD (e.g., TOOLGATE_SERVER_LISTEN_ADDRESS).
// Environment variables always take precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// DefaultWithEnvOverrides returns the built-in configuration with
// environment overrides applied. It is used when no configuration file
// exists.
func DefaultWithEnvOverrides() (*Config, error) {
	cfg := Default()
	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Unparseable numeric, boolean, or duration values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Server overrides
	envString("SERVER_LISTEN_ADDRESS", &cfg.Server.ListenAddress)
	envDuration("SERVER_READ_TIMEOUT", &cfg.Server.ReadTimeout)
	envDuration("SERVER_WRITE_TIMEOUT", &cfg.Server.WriteTimeout)
	envDuration("SERVER_IDLE_TIMEOUT", &cfg.Server.IdleTimeout)
	envDuration("SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	envBool("SERVER_TLS_ENABLED", &cfg.Server.TLS.Enabled)
	envString("SERVER_TLS_CERT_FILE", &cfg.Server.TLS.CertFile)
	envString("SERVER_TLS_KEY_FILE", &cfg.Server.TLS.KeyFile)
	envBool("SERVER_AUTH_ENABLED", &cfg.Server.Auth.Enabled)

	// Session overrides
	envDuration("SESSIONS_MAX_AGE", &cfg.Sessions.MaxAge)
	envString("SESSIONS_CLEANUP_SCHEDULE", &cfg.Sessions.CleanupSchedule)

	// Enforcement overrides
	envString("ENFORCEMENT_ACTION", &cfg.Enforcement.Action)
	envInt("ENFORCEMENT_QUEUE_DEPTH", &cfg.Enforcement.QueueDepth)
	envDuration("ENFORCEMENT_QUEUE_TIMEOUT", &cfg.Enforcement.QueueTimeout)

	// Journal overrides
	envBool("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	envString("JOURNAL_BACKEND", &cfg.Journal.Backend)
	envInt("JOURNAL_MAX_ENTRIES", &cfg.Journal.MaxEntries)
	envInt("JOURNAL_BUFFER", &cfg.Journal.Buffer)
	envString("JOURNAL_SQLITE_PATH", &cfg.Journal.SQLite.Path)
	envDuration("JOURNAL_RETENTION", &cfg.Journal.Retention)

	// Telemetry overrides
	envString("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envString("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("TELEMETRY_LOGGING_REDACT_IPS", &cfg.Telemetry.Logging.RedactIPs)
	envBool("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envString("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	envBool("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	envString("TELEMETRY_TRACING_EXPORTER", &cfg.Telemetry.Tracing.Exporter)
	envString("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	envString("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)

	envBool("WATCH", &cfg.Watch)
}

func envString(name string, dst *string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func envInt(name string, dst *int) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			*dst = i
		}
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDuration(name string, dst *time.Duration) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}
