package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/toolgate/pkg/cli"
	"mercator-hq/toolgate/pkg/limits/export"
	"mercator-hq/toolgate/pkg/limits/storage"
)

var violationsFlags struct {
	format    string
	output    string
	sessionID string
	dimension string
	since     string
	limit     int
	pretty    bool
}

var violationsCmd = &cobra.Command{
	Use:   "violations",
	Short: "Export the violation journal",
	Long: `Export rejected admission checks from the SQLite violation journal.

The journal must be enabled with the sqlite backend; the memory backend
lives only inside a running server (use GET /v1/violations/export there).

--since accepts an RFC 3339 timestamp or a duration counted back from now.

Examples:
  # Everything from the last day as CSV
  toolgate violations --format csv --since 24h --output violations.csv

  # One session's tool-limit rejections as JSON
  toolgate violations --session s-42 --dimension tool_specific --pretty`,
	RunE: runViolations,
}

func init() {
	rootCmd.AddCommand(violationsCmd)

	violationsCmd.Flags().StringVar(&violationsFlags.format, "format", export.FormatJSON, "export format: json, csv")
	violationsCmd.Flags().StringVarP(&violationsFlags.output, "output", "o", "", "output file (default stdout)")
	violationsCmd.Flags().StringVar(&violationsFlags.sessionID, "session", "", "only this session")
	violationsCmd.Flags().StringVar(&violationsFlags.dimension, "dimension", "", "only this dimension (session_global, tool_specific, category_based, ip_based)")
	violationsCmd.Flags().StringVar(&violationsFlags.since, "since", "", "only entries at or after this time")
	violationsCmd.Flags().IntVar(&violationsFlags.limit, "limit", 0, "maximum entries (0 for all)")
	violationsCmd.Flags().BoolVar(&violationsFlags.pretty, "pretty", false, "indent JSON output")
}

func runViolations(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if !cfg.Journal.Enabled || cfg.Journal.Backend != "sqlite" {
		return cli.NewConfigError("journal", "violation export needs an enabled sqlite journal")
	}

	exporter, err := export.New(violationsFlags.format, violationsFlags.pretty)
	if err != nil {
		return cli.NewConfigError("format", err.Error())
	}

	filter := storage.Filter{
		SessionID: violationsFlags.sessionID,
		Dimension: violationsFlags.dimension,
		Limit:     violationsFlags.limit,
	}
	if violationsFlags.since != "" {
		since, err := parseSince(violationsFlags.since, time.Now())
		if err != nil {
			return cli.NewConfigError("since", err.Error())
		}
		filter.Since = since
	}

	journal, err := openJournal(&cfg.Journal)
	if err != nil {
		return cli.NewCommandError("violations", err)
	}
	defer journal.Close()

	violations, err := journal.List(cmd.Context(), filter)
	if err != nil {
		return cli.NewCommandError("violations", err)
	}

	var out io.Writer = cmd.OutOrStdout()
	if violationsFlags.output != "" {
		f, err := os.Create(violationsFlags.output)
		if err != nil {
			return cli.NewCommandError("violations", err)
		}
		defer f.Close()
		out = f
	}

	if err := exporter.Export(cmd.Context(), violations, out); err != nil {
		return cli.NewCommandError("violations", err)
	}
	if violationsFlags.output != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "✓ Exported %d violations to %s\n", len(violations), violationsFlags.output)
	}
	return nil
}

// parseSince accepts an RFC 3339 timestamp or a duration before now.
func parseSince(raw string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return time.Time{}, fmt.Errorf("invalid since %q: use RFC 3339 or a duration such as 24h", raw)
	}
	return now.Add(-d), nil
}
