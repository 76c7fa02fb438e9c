package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/toolgate/pkg/cli"
	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/telemetry/logging"
)

var (
	// Global flags
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "toolgate",
	Short: "Toolgate - multi-tier rate limiting for tool invocations",
	Long: `Toolgate admits or rejects tool invocations against four independent limits:
  - session_global: a token bucket per session
  - tool_specific:  a sliding window per session and tool rule
  - category_based: a sliding window per session and tool category
  - ip_based:       a token bucket per client IP

A request is admitted only if every applicable limit admits it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and exits with a code derived from the
// returned error.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "toolgate.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log level (debug, info, warn, error)")
}

// loadConfig loads the configuration file with environment overrides. When
// the file is missing and --config was not given explicitly, the built-in
// defaults are used instead.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)

	if _, statErr := os.Stat(cfgFile); errors.Is(statErr, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		cfg, err = config.DefaultWithEnvOverrides()
	} else {
		cfg, err = config.LoadConfigWithEnvOverrides(cfgFile)
	}
	if err != nil {
		return nil, err
	}

	if logLevel != "" {
		cfg.Telemetry.Logging.Level = logLevel
	}
	return cfg, nil
}

// configFileInUse reports whether loadConfig read cfgFile.
func configFileInUse() bool {
	_, err := os.Stat(cfgFile)
	return err == nil
}

// newLogger builds the process logger from the telemetry section and makes
// it the slog default.
func newLogger(cfg *config.Config) (*slog.Logger, error) {
	logger, err := logging.New(logging.Config{
		Level:     cfg.Telemetry.Logging.Level,
		Format:    cfg.Telemetry.Logging.Format,
		AddSource: cfg.Telemetry.Logging.AddSource,
		RedactIPs: cfg.Telemetry.Logging.RedactIPs,
	})
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)
	return logger, nil
}
