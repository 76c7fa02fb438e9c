package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"mercator-hq/toolgate/pkg/limits/storage"
)

// Sweeper removes idle sessions. *limits.Manager implements it.
type Sweeper interface {
	CleanupExpiredSessions(maxAge time.Duration) int
}

// Config configures the cleanup scheduler.
type Config struct {
	// Schedule is a standard cron expression or descriptor such as
	// "@every 5m". Empty disables scheduling; RunOnce still works.
	Schedule string

	// MaxAge is the idle time after which a session expires.
	// Default: 1 hour
	MaxAge time.Duration

	// Journal is pruned of violations older than JournalRetention. Optional.
	Journal storage.Backend

	// JournalRetention is how long violations are kept. Zero keeps them
	// forever.
	JournalRetention time.Duration

	// Logger defaults to slog.Default.
	Logger *slog.Logger

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Report summarizes one cleanup run.
type Report struct {
	SessionsRemoved  int `json:"sessions_removed"`
	ViolationsPruned int `json:"violations_pruned"`
}

// Scheduler runs session expiry and journal retention on a cron schedule.
type Scheduler struct {
	sweeper Sweeper
	config  Config
	cron    *cron.Cron
	mu      sync.Mutex
	logger  *slog.Logger
	running bool
}

// NewScheduler creates a cleanup scheduler for sweeper.
func NewScheduler(sweeper Sweeper, config Config) *Scheduler {
	if config.MaxAge == 0 {
		config.MaxAge = time.Hour
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}

	return &Scheduler{
		sweeper: sweeper,
		config:  config,
		cron:    cron.New(),
		logger:  config.Logger.With("component", "limits.cleanup"),
	}
}

// Start schedules cleanup runs. It returns immediately; the scheduler stops
// when ctx is done or Stop is called.
//
// Common expressions:
//   - "@every 5m"    - Every five minutes
//   - "*/15 * * * *" - Every 15 minutes
//   - "0 * * * *"    - Hourly
//
// If Schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.config.Schedule == "" {
		s.logger.Info("cleanup schedule not configured, skipping scheduler")
		return nil
	}
	if s.running {
		return fmt.Errorf("cleanup scheduler already running")
	}

	if _, err := cron.ParseStandard(s.config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.config.Schedule, err)
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, func() {
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("cleanup scheduler started",
		"schedule", s.config.Schedule,
		"max_age", s.config.MaxAge,
		"journal_retention", s.config.JournalRetention,
	)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// RunOnce expires idle sessions and prunes the journal once.
func (s *Scheduler) RunOnce(ctx context.Context) Report {
	var report Report

	report.SessionsRemoved = s.sweeper.CleanupExpiredSessions(s.config.MaxAge)

	if s.config.Journal != nil && s.config.JournalRetention > 0 {
		cutoff := s.config.Clock().Add(-s.config.JournalRetention)
		pruned, err := s.config.Journal.Cleanup(ctx, cutoff)
		if err != nil {
			s.logger.Error("journal pruning failed", "error", err)
		}
		report.ViolationsPruned = pruned
	}

	if report.SessionsRemoved > 0 || report.ViolationsPruned > 0 {
		s.logger.Info("cleanup completed",
			"sessions_removed", report.SessionsRemoved,
			"violations_pruned", report.ViolationsPruned,
		)
	} else {
		s.logger.Debug("cleanup completed, nothing removed")
	}

	return report
}

// Stop stops the scheduler and waits for a running cleanup to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("cleanup scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled cleanup time, or nil if none.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}

	next := entries[0].Next
	return &next
}
