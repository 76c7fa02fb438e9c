package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"mercator-hq/toolgate/pkg/cli"
)

func runValidateTo(t *testing.T, format string) (string, error) {
	t.Helper()

	orig := validateFlags
	validateFlags.format = format
	t.Cleanup(func() { validateFlags = orig })

	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)

	err := runValidate(cmd, nil)
	return buf.String(), err
}

func TestValidate_ValidFile(t *testing.T) {
	useConfigFile(t, writeConfig(t, `
limits:
  session_global:
    requests: 50
    window_seconds: 60
`))

	output, err := runValidateTo(t, "text")
	if err != nil {
		t.Fatalf("Expected valid config, got %v", err)
	}
	if !strings.Contains(output, "is valid") {
		t.Errorf("Expected valid banner, got %q", output)
	}
	if !strings.Contains(output, "session_global: 50 requests per 60 seconds") {
		t.Errorf("Expected effective session limit, got %q", output)
	}
	if !strings.Contains(output, "heavy_computation") {
		t.Errorf("Expected default categories filled in, got %q", output)
	}
}

func TestValidate_InvalidFile(t *testing.T) {
	useConfigFile(t, writeConfig(t, `
server:
  listen_address: "nope"
enforcement:
  action: downgrade
`))

	output, err := runValidateTo(t, "text")
	if err == nil {
		t.Fatal("Expected error for invalid config")
	}
	if cli.ExitCode(err) != cli.ExitConfig {
		t.Errorf("Expected config exit code, got %d", cli.ExitCode(err))
	}
	for _, field := range []string{"server.listen_address", "enforcement.action"} {
		if !strings.Contains(output, field) {
			t.Errorf("Expected %s reported, got %q", field, output)
		}
	}
}

func TestValidate_JSON(t *testing.T) {
	useConfigFile(t, writeConfig(t, "enforcement:\n  action: downgrade\n"))

	output, _ := runValidateTo(t, "json")

	var report validateReport
	if err := json.Unmarshal([]byte(output), &report); err != nil {
		t.Fatalf("Expected JSON output: %v\n%s", err, output)
	}
	if report.Valid {
		t.Error("Expected invalid report")
	}
	if len(report.Errors) != 1 || report.Errors[0].Field != "enforcement.action" {
		t.Errorf("Expected one enforcement.action error, got %+v", report.Errors)
	}
}
