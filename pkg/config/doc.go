// Package config provides configuration management for toolgate.
//
// This package handles loading, validating, and watching configuration from
// YAML files with environment variable overrides.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("toolgate.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("toolgate.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention TOOLGATE_SECTION_FIELD.
// For example:
//
//   - TOOLGATE_SERVER_LISTEN_ADDRESS overrides server.listen_address
//   - TOOLGATE_SESSIONS_MAX_AGE overrides sessions.max_age
//   - TOOLGATE_ENFORCEMENT_ACTION overrides enforcement.action
//   - TOOLGATE_TELEMETRY_TRACING_ENDPOINT overrides telemetry.tracing.endpoint
//
// The limits table itself is file-only.
//
// # Configuration Precedence
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Limits
//
// The limits section mirrors limits.Limits:
//
//	limits:
//	  session_global: {requests: 100, window_seconds: 60, burst_allowance: 20}
//	  tools:
//	    - name: ai_features
//	      patterns: ["natural_language", "ai_", "nl_"]
//	      limit: {requests: 5, window_seconds: 60}
//	    - name: general
//	      limit: {requests: 50, window_seconds: 60}
//	  default_tool: general
//	  categories:
//	    heavy_computation: {requests: 3, window_seconds: 60}
//	  ip_based: {requests: 200, window_seconds: 60, burst_allowance: 50}
//
// Dimensions left out fall back to limits.DefaultLimits(). An explicit empty
// categories map disables the category dimension.
//
// # Hot Reload
//
// Watcher observes the configuration file and hands each valid new
// configuration to a callback, typically one that calls
// (*limits.Manager).SetLimits. Invalid files are logged and ignored.
package config
