package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"mercator-hq/toolgate/pkg/config"
	"mercator-hq/toolgate/pkg/limits"
	"mercator-hq/toolgate/pkg/limits/storage"
	"mercator-hq/toolgate/pkg/telemetry/tracing"
)

const tracerShutdownTimeout = 5 * time.Second

// stack is the limiter and its collaborators, built from one Config.
type stack struct {
	manager *limits.Manager

	// journal is nil when the journal is disabled.
	journal storage.Backend

	// registry is nil when metrics are disabled.
	registry *prometheus.Registry

	tracer *tracing.Tracer
}

func buildStack(cfg *config.Config, logger *slog.Logger) (*stack, error) {
	journal, err := openJournal(&cfg.Journal)
	if err != nil {
		return nil, err
	}

	var (
		registry *prometheus.Registry
		metrics  *limits.Metrics
	)
	if cfg.Telemetry.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics = limits.NewMetrics(registry)
	}

	managerCfg := limits.Config{
		Limits:  cfg.Limits,
		Logger:  logger,
		Metrics: metrics,
	}
	if journal != nil {
		managerCfg.Journal = journal
		managerCfg.JournalBuffer = cfg.Journal.Buffer
	}

	manager, err := limits.NewManager(managerCfg)
	if err != nil {
		if journal != nil {
			journal.Close()
		}
		return nil, fmt.Errorf("failed to create limiter: %w", err)
	}

	tracer, err := newTracer(&cfg.Telemetry.Tracing)
	if err != nil {
		manager.Close()
		return nil, err
	}

	return &stack{manager: manager, journal: journal, registry: registry, tracer: tracer}, nil
}

func newTracer(cfg *config.TracingConfig) (*tracing.Tracer, error) {
	tracer, err := tracing.New(tracing.Config{
		Enabled:        cfg.Enabled,
		Exporter:       cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		Insecure:       cfg.Insecure,
		Timeout:        cfg.Timeout,
		Sampler:        cfg.Sampler,
		SampleRatio:    cfg.SampleRatio,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	return tracer, nil
}

// gatherer returns the metrics gatherer, or nil when metrics are disabled.
func (s *stack) gatherer() prometheus.Gatherer {
	if s.registry == nil {
		return nil
	}
	return s.registry
}

// Close flushes pending spans, then releases the limiter and its journal.
func (s *stack) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), tracerShutdownTimeout)
	defer cancel()

	return errors.Join(s.tracer.Shutdown(ctx), s.manager.Close())
}

// openJournal returns nil, nil when the journal is disabled.
func openJournal(cfg *config.JournalConfig) (storage.Backend, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Backend {
	case "memory":
		return storage.NewMemoryBackendWithConfig(storage.MemoryBackendConfig{
			MaxEntries: cfg.MaxEntries,
		}), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create journal directory: %w", err)
			}
		}
		backend, err := storage.NewSQLiteBackendWithConfig(storage.SQLiteBackendConfig{
			DBPath:      cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite journal: %w", err)
		}
		return backend, nil
	default:
		return nil, errors.New("unsupported journal backend: " + cfg.Backend)
	}
}
