package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/toolgate/pkg/cli"
	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/cleanup"
	"mercator-hq/toolgate/pkg/security/auth"
	"mercator-hq/toolgate/pkg/security/secrets"
	"mercator-hq/toolgate/pkg/server"
)

var serveFlags struct {
	listenAddress string
	dryRun        bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the toolgate admin server",
	Long: `Start the admin HTTP server with the specified configuration.

The server exposes admission checks, session statistics, cleanup, the
violation journal, health, and Prometheus metrics. When a cleanup schedule
is configured, idle sessions are expired in the background. When watch is
enabled, edits to the configuration file reload the limits table.

Examples:
  # Start with default limits
  toolgate serve

  # Start with a configuration file
  toolgate serve --config /etc/toolgate/toolgate.yaml

  # Override listen address
  toolgate serve --listen 0.0.0.0:8090

  # Validate config and build the limiter without starting the server
  toolgate serve --dry-run`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override listen address")
	serveCmd.Flags().BoolVar(&serveFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if serveFlags.listenAddress != "" {
		cfg.Server.ListenAddress = serveFlags.listenAddress
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	st, err := buildStack(cfg, logger)
	if err != nil {
		return cli.NewCommandError("serve", err)
	}
	defer st.Close()

	if serveFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	printBanner(cmd.OutOrStdout(), cfg)

	ctx, stop := cli.SetupSignalHandler(cmd.Context())
	defer stop()

	if err := serve(ctx, cfg, st, logger); err != nil {
		return cli.NewCommandError("serve", err)
	}

	logger.Info("toolgate stopped")
	return nil
}

// serve runs the admin server, the cleanup scheduler, and the config
// watcher until ctx is done.
func serve(ctx context.Context, cfg *config.Config, st *stack, logger *slog.Logger) error {
	scheduler := cleanup.NewScheduler(st.manager, cleanup.Config{
		Schedule:         cfg.Sessions.CleanupSchedule,
		MaxAge:           cfg.Sessions.MaxAge,
		Journal:          st.journal,
		JournalRetention: cfg.Journal.Retention,
		Logger:           logger,
	})
	if err := scheduler.Start(ctx); err != nil {
		return fmt.Errorf("failed to start cleanup scheduler: %w", err)
	}
	defer scheduler.Stop()

	tlsConfig, reloader, err := newTLS(ctx, &cfg.Server.TLS, logger)
	if err != nil {
		return err
	}
	validator, authMiddleware, err := newAuth(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := server.New(&cfg.Server, server.Options{
		Manager:       st.manager,
		Journal:       st.journal,
		Gatherer:      st.gatherer(),
		MetricsPath:   cfg.Telemetry.Metrics.Path,
		SessionMaxAge: cfg.Sessions.MaxAge,
		Tracer:        st.tracer,
		TLS:           tlsConfig,
		Auth:          authMiddleware,
		Version:       Version,
		Logger:        logger,
	})
	if reloader != nil {
		srv.Health().RegisterCheck("tls_certificate", certificateCheck(reloader))
	}

	var watcher *config.Watcher
	if cfg.Watch && configFileInUse() {
		watcher, err = config.NewWatcher(cfgFile,
			config.WithWatcherLogger(logger),
			config.WithEnvOverrides(),
		)
		if err != nil {
			return fmt.Errorf("failed to watch config: %w", err)
		}
		defer watcher.Stop()
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	if watcher != nil {
		g.Go(func() error {
			return watcher.Watch(ctx, func(next *config.Config) error {
				if err := reloadAPIKeys(ctx, validator, next); err != nil {
					return err
				}
				return reloadLimits(st.manager, next)
			})
		})
	}

	return g.Wait()
}

// reloadLimits installs the limits table of next unless it matches the
// active one, so edits elsewhere in the file keep limiter state.
func reloadLimits(manager *limits.Manager, next *config.Config) error {
	if manager.Limits().Equal(next.Limits) {
		return nil
	}
	return manager.SetLimits(next.Limits)
}

// reloadAPIKeys swaps in the keys of next. Enabling or disabling auth
// takes a restart.
func reloadAPIKeys(ctx context.Context, validator *auth.APIKeyValidator, next *config.Config) error {
	if validator == nil || !next.Server.Auth.Enabled {
		return nil
	}
	keys, err := resolveAPIKeys(ctx, &next.Server.Auth, secrets.DefaultResolver())
	if err != nil {
		return err
	}
	validator.SetKeys(keys)
	return nil
}

func printBanner(w io.Writer, cfg *config.Config) {
	fmt.Fprintf(w, "Toolgate %s\n", Version)
	fmt.Fprintf(w, "✓ Limits loaded (%d tool rules, %d categories)\n", len(cfg.Limits.Tools), len(cfg.Limits.Categories))
	if cfg.Journal.Enabled {
		fmt.Fprintf(w, "✓ Violation journal (%s)\n", cfg.Journal.Backend)
	}
	if cfg.Sessions.CleanupSchedule != "" {
		fmt.Fprintf(w, "✓ Session cleanup (%s, max age %s)\n", cfg.Sessions.CleanupSchedule, cfg.Sessions.MaxAge)
	}
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Fprintf(w, "✓ Metrics at %s\n", cfg.Telemetry.Metrics.Path)
	}
	if cfg.Telemetry.Tracing.Enabled {
		fmt.Fprintf(w, "✓ Tracing (%s)\n", cfg.Telemetry.Tracing.Exporter)
	}
	if cfg.Server.Auth.Enabled {
		fmt.Fprintf(w, "✓ API key auth (%d keys)\n", len(cfg.Server.Auth.Keys))
	}
	scheme := "http"
	if cfg.Server.TLS.Enabled {
		scheme = "https"
		fmt.Fprintf(w, "✓ TLS (min version %s)\n", cfg.Server.TLS.MinVersion)
	}
	fmt.Fprintf(w, "✓ Listening on %s://%s\n", scheme, cfg.Server.ListenAddress)
}
