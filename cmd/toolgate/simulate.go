package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/toolgate/pkg/cli"
	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/dispatch"
	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/enforcement"
	"mercator-hq/toolgate/pkg/limits/storage"
)

var simulateFlags struct {
	sessions    int
	calls       int
	tools       []string
	category    string
	ips         int
	interval    time.Duration
	concurrency int
	action      string
	format      string
	progress    bool
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive synthetic sessions through the limiter",
	Long: `Run synthetic tool calls through the rate-limit middleware and report
what was admitted and which dimension denied the rest.

Each session gets a random ID and issues --calls calls, cycling through the
--tool list. Sessions share --ips client addresses round-robin. The limits
table and enforcement action come from the configuration.

Examples:
  # 10 sessions of 20 calls against the default limits
  toolgate simulate

  # Exercise the tool and IP dimensions
  toolgate simulate --sessions 50 --calls 10 --tool nl_query --ips 2

  # Queue denied calls instead of rejecting them
  toolgate simulate --action queue --interval 100ms --format json`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().IntVar(&simulateFlags.sessions, "sessions", 10, "number of sessions")
	simulateCmd.Flags().IntVar(&simulateFlags.calls, "calls", 20, "calls per session")
	simulateCmd.Flags().StringSliceVar(&simulateFlags.tools, "tool", []string{"nl_query", "read_file", "list_tables"}, "tool names to cycle through")
	simulateCmd.Flags().StringVar(&simulateFlags.category, "category", "", "tool category for every call (default general)")
	simulateCmd.Flags().IntVar(&simulateFlags.ips, "ips", 1, "distinct client IPs shared by the sessions (0 disables the IP dimension)")
	simulateCmd.Flags().DurationVar(&simulateFlags.interval, "interval", 0, "pause between calls of one session")
	simulateCmd.Flags().IntVar(&simulateFlags.concurrency, "concurrency", 8, "sessions running at once")
	simulateCmd.Flags().StringVar(&simulateFlags.action, "action", "", "override enforcement action (block, alert, queue)")
	simulateCmd.Flags().StringVar(&simulateFlags.format, "format", "text", "output format: text, json")
	simulateCmd.Flags().BoolVar(&simulateFlags.progress, "progress", true, "show a progress bar on stderr")
}

// simulationPlan describes the synthetic load.
type simulationPlan struct {
	Sessions    int
	Calls       int
	Tools       []string
	Category    string
	IPs         int
	Interval    time.Duration
	Concurrency int
}

func (p simulationPlan) validate() error {
	switch {
	case p.Sessions <= 0:
		return cli.NewConfigError("sessions", "must be positive")
	case p.Calls <= 0:
		return cli.NewConfigError("calls", "must be positive")
	case len(p.Tools) == 0:
		return cli.NewConfigError("tool", "at least one tool is required")
	case p.IPs < 0:
		return cli.NewConfigError("ips", "must be non-negative")
	case p.Concurrency <= 0:
		return cli.NewConfigError("concurrency", "must be positive")
	}
	return nil
}

// ipFor returns the address used by session n, or "" with no IPs.
func (p simulationPlan) ipFor(n int) string {
	if p.IPs == 0 {
		return ""
	}
	return fmt.Sprintf("192.0.2.%d", n%p.IPs+1)
}

// simulationReport is the result of the simulate command.
type simulationReport struct {
	Action     enforcement.Action       `json:"action"`
	Sessions   int                      `json:"sessions"`
	Calls      int                      `json:"calls"`
	Allowed    int                      `json:"allowed"`
	Denied     int                      `json:"denied"`
	DeniedBy   map[limits.Dimension]int `json:"denied_by"`
	Violations int                      `json:"violations_journaled"`
	Elapsed    string                   `json:"elapsed"`
	Stats      limits.SystemStats       `json:"stats"`
	Busiest    []limits.SessionInfo     `json:"busiest_sessions"`
}

// RenderText prints the report for humans.
func (r *simulationReport) RenderText(w io.Writer) error {
	fmt.Fprintf(w, "Simulated %d calls across %d sessions in %s (action: %s)\n\n", r.Calls, r.Sessions, r.Elapsed, r.Action)
	fmt.Fprintf(w, "allowed:  %d\n", r.Allowed)
	fmt.Fprintf(w, "denied:   %d\n", r.Denied)
	for _, dim := range limits.Dimensions {
		if n := r.DeniedBy[dim]; n > 0 {
			fmt.Fprintf(w, "  %-16s %d\n", dim, n)
		}
	}
	fmt.Fprintf(w, "journal:  %d violations\n\n", r.Violations)

	fmt.Fprintf(w, "active sessions:    %d\n", r.Stats.ActiveSessions)
	fmt.Fprintf(w, "token buckets:      %d\n", r.Stats.TotalBuckets)
	fmt.Fprintf(w, "sliding windows:    %d\n", r.Stats.TotalWindows)
	fmt.Fprintf(w, "tracked timestamps: %d\n", r.Stats.TrackedTimestamps)

	if len(r.Busiest) > 0 {
		fmt.Fprintln(w, "\nmost denied sessions:")
		for _, s := range r.Busiest {
			fmt.Fprintf(w, "  %s  requests=%d violations=%d\n", s.SessionID, s.TotalRequests, s.Violations)
		}
	}
	return nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(simulateFlags.format)
	if err != nil {
		return err
	}

	plan := simulationPlan{
		Sessions:    simulateFlags.sessions,
		Calls:       simulateFlags.calls,
		Tools:       simulateFlags.tools,
		Category:    simulateFlags.category,
		IPs:         simulateFlags.ips,
		Interval:    simulateFlags.interval,
		Concurrency: simulateFlags.concurrency,
	}
	if err := plan.validate(); err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if simulateFlags.action != "" {
		cfg.Enforcement.Action = simulateFlags.action
	}

	// Violations are always journaled in memory so the report can count them.
	cfg.Journal = config.JournalConfig{
		Enabled:    true,
		Backend:    "memory",
		MaxEntries: plan.Sessions * plan.Calls,
		Buffer:     plan.Sessions * plan.Calls,
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	st, err := buildStack(cfg, logger)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}
	defer st.Close()

	enforcer, err := newEnforcer(&cfg.Enforcement, logger)
	if err != nil {
		return err
	}

	var progress cli.ProgressReporter
	if simulateFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr())
	}

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	report, err := simulate(ctx, st, enforcer, plan, progress, logger)
	if err != nil {
		return cli.NewCommandError("simulate", err)
	}

	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), report)
}

func newEnforcer(cfg *config.EnforcementConfig, logger *slog.Logger) (*enforcement.Enforcer, error) {
	action, err := enforcement.ParseAction(cfg.Action)
	if err != nil {
		return nil, cli.NewConfigError("enforcement.action", err.Error())
	}
	return enforcement.NewEnforcer(enforcement.Config{
		DefaultAction: action,
		QueueDepth:    cfg.QueueDepth,
		QueueTimeout:  cfg.QueueTimeout,
		Logger:        logger,
	}), nil
}

// simulate runs plan through the dispatch middleware and summarizes the
// outcome. progress may be nil.
func simulate(ctx context.Context, st *stack, enforcer *enforcement.Enforcer, plan simulationPlan, progress cli.ProgressReporter, logger *slog.Logger) (*simulationReport, error) {
	tool := func(ctx context.Context, call *dispatch.ToolCall) (*dispatch.ToolResult, error) {
		return &dispatch.ToolResult{Content: "ok"}, nil
	}
	handler := dispatch.Chain(tool,
		dispatch.RateLimit(st.manager,
			dispatch.WithEnforcer(enforcer),
			dispatch.WithLogger(logger),
			dispatch.WithTracer(st.tracer),
		),
	)

	report := &simulationReport{
		Action:   enforcer.GetConfig().DefaultAction,
		Sessions: plan.Sessions,
		Calls:    plan.Sessions * plan.Calls,
		DeniedBy: make(map[limits.Dimension]int),
	}
	var mu sync.Mutex

	if progress != nil {
		progress.Start(int64(report.Calls))
	}
	started := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(plan.Concurrency)
	for n := 0; n < plan.Sessions; n++ {
		sessionID := uuid.NewString()
		ip := plan.ipFor(n)

		g.Go(func() error {
			for i := 0; i < plan.Calls; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}

				_, err := handler(gctx, &dispatch.ToolCall{
					SessionID: sessionID,
					ToolName:  plan.Tools[i%len(plan.Tools)],
					Category:  plan.Category,
					IPAddress: ip,
				})

				rlErr, denied := dispatch.AsRateLimitError(err)
				if err != nil && !denied {
					return err
				}

				mu.Lock()
				if denied {
					report.Denied++
					report.DeniedBy[rlErr.Dimension()]++
				} else {
					report.Allowed++
				}
				mu.Unlock()

				if progress != nil {
					progress.Record(!denied)
				}

				if plan.Interval > 0 {
					select {
					case <-gctx.Done():
						return gctx.Err()
					case <-time.After(plan.Interval):
					}
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if progress != nil {
			progress.Error(err)
		}
		return nil, err
	}
	if progress != nil {
		progress.Finish()
	}

	report.Elapsed = time.Since(started).Round(time.Millisecond).String()
	report.Stats = st.manager.SystemStats()
	report.Busiest = busiestSessions(st.manager.Sessions(), 5)

	if st.journal != nil {
		if err := st.manager.Flush(ctx); err != nil {
			return nil, fmt.Errorf("failed to flush violations: %w", err)
		}
		count, err := st.journal.Count(ctx, storage.Filter{})
		if err != nil {
			return nil, fmt.Errorf("failed to count violations: %w", err)
		}
		report.Violations = count
	}

	return report, nil
}

// busiestSessions returns up to n sessions with violations, most first.
func busiestSessions(sessions []limits.SessionInfo, n int) []limits.SessionInfo {
	out := make([]limits.SessionInfo, 0, len(sessions))
	for _, s := range sessions {
		if s.Violations > 0 {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Violations != out[j].Violations {
			return out[i].Violations > out[j].Violations
		}
		return out[i].SessionID < out[j].SessionID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
