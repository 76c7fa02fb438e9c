package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	"mercator-hq/toolgate/pkg/cli"
	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/limits"
)

var validateFlags struct {
	envOverrides bool
	format       string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load a configuration file, apply defaults, and check every field.

All problems are reported together, one per field. The effective limits
table is printed when the file is valid.

Examples:
  # Validate the default config file
  toolgate validate

  # Validate a specific file, including TOOLGATE_* environment overrides
  toolgate validate --config prod.yaml --env

  # Machine-readable output
  toolgate validate --format json`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.envOverrides, "env", false, "apply TOOLGATE_* environment overrides before validating")
	validateCmd.Flags().StringVar(&validateFlags.format, "format", "text", "output format: text, json")
}

// validateReport is the result of the validate command.
type validateReport struct {
	Path   string             `json:"path"`
	Valid  bool               `json:"valid"`
	Errors []*cli.ConfigError `json:"errors,omitempty"`
	Limits *limits.Limits     `json:"limits,omitempty"`
}

// RenderText prints the report for humans.
func (r *validateReport) RenderText(w io.Writer) error {
	if !r.Valid {
		fmt.Fprintf(w, "✗ %s is invalid (%d errors)\n", r.Path, len(r.Errors))
		for _, e := range r.Errors {
			if e.Field == "" {
				fmt.Fprintf(w, "  - %s\n", e.Message)
				continue
			}
			fmt.Fprintf(w, "  - %s: %s\n", e.Field, e.Message)
		}
		return nil
	}

	l := r.Limits
	fmt.Fprintf(w, "✓ %s is valid\n\n", r.Path)
	fmt.Fprintf(w, "session_global: %s\n", l.SessionGlobal)
	fmt.Fprintf(w, "ip_based:       %s\n", l.IPBased)
	fmt.Fprintf(w, "tools (default %q):\n", l.DefaultTool)
	for _, rule := range l.Tools {
		fmt.Fprintf(w, "  %-18s %s %v\n", rule.Name, rule.Limit, rule.Patterns)
	}

	names := make([]string, 0, len(l.Categories))
	for name := range l.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	fmt.Fprintln(w, "categories:")
	for _, name := range names {
		fmt.Fprintf(w, "  %-18s %s\n", name, l.Categories[name])
	}
	return nil
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(validateFlags.format)
	if err != nil {
		return err
	}

	load := config.LoadConfig
	if validateFlags.envOverrides {
		load = config.LoadConfigWithEnvOverrides
	}

	report := &validateReport{Path: cfgFile}
	cfg, loadErr := load(cfgFile)
	if loadErr != nil {
		report.Errors = cli.ConfigErrors(loadErr)
	} else {
		report.Valid = true
		report.Limits = &cfg.Limits
	}

	if err := cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report); err != nil {
		return err
	}

	if loadErr != nil {
		return cli.NewConfigError("", fmt.Sprintf("%s is invalid", cfgFile))
	}
	return nil
}
