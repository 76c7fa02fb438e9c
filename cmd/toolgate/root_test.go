package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"mercator-hq/toolgate/pkg/config"
)

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{}
	cmd.Flags().String("config", "", "")
	return cmd
}

func TestLoadConfig_MissingDefaultFileUsesDefaults(t *testing.T) {
	useConfigFile(t, filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := loadConfig(newFlagCommand())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.ListenAddress != config.DefaultListenAddress {
		t.Errorf("Expected default listen address, got %q", cfg.Server.ListenAddress)
	}
}

func TestLoadConfig_MissingExplicitFileFails(t *testing.T) {
	useConfigFile(t, filepath.Join(t.TempDir(), "absent.yaml"))

	cmd := newFlagCommand()
	if err := cmd.Flags().Set("config", cfgFile); err != nil {
		t.Fatalf("failed to set flag: %v", err)
	}

	if _, err := loadConfig(cmd); err == nil {
		t.Error("Expected error for explicitly named missing file")
	}
}

func TestLoadConfig_LogLevelOverride(t *testing.T) {
	useConfigFile(t, writeConfig(t, "telemetry:\n  logging:\n    level: info\n"))

	orig := logLevel
	logLevel = "debug"
	defer func() { logLevel = orig }()

	cfg, err := loadConfig(newFlagCommand())
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("Expected debug level, got %q", cfg.Telemetry.Logging.Level)
	}
}
