package health

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCheckTimeout bounds a single component check.
const DefaultCheckTimeout = 5 * time.Second

// Component and overall statuses.
const (
	StatusOK        = "ok"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// CheckFunc returns nil when the component is healthy.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status     string  `json:"status"`
	Message    string  `json:"message,omitempty"`
	DurationMS float64 `json:"duration_ms"`
}

// Status is the aggregated health report.
type Status struct {
	// Status is "ok" when every check passed and "degraded" otherwise.
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Healthy reports whether every check passed.
func (s Status) Healthy() bool {
	return s.Status == StatusOK
}

// Checker runs named component checks.
type Checker struct {
	mu           sync.RWMutex
	checks       map[string]CheckFunc
	checkTimeout time.Duration
}

// New creates a checker. A non-positive timeout means DefaultCheckTimeout.
func New(checkTimeout time.Duration) *Checker {
	if checkTimeout <= 0 {
		checkTimeout = DefaultCheckTimeout
	}
	return &Checker{
		checks:       make(map[string]CheckFunc),
		checkTimeout: checkTimeout,
	}
}

// RegisterCheck adds or replaces the check for name.
func (c *Checker) RegisterCheck(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
}

// UnregisterCheck removes the check for name.
func (c *Checker) UnregisterCheck(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.checks, name)
}

// ListChecks returns the registered check names, sorted.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Liveness reports ok while the process can answer at all.
func (c *Checker) Liveness() Status {
	return Status{Status: StatusOK, Timestamp: time.Now().UTC()}
}

// Readiness runs every check concurrently, each under its own timeout.
func (c *Checker) Readiness(ctx context.Context) Status {
	c.mu.RLock()
	checks := make(map[string]CheckFunc, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(checks))
		g       errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			result := c.run(ctx, check)
			mu.Lock()
			results[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := StatusOK
	for _, r := range results {
		if r.Status != StatusOK {
			status = StatusDegraded
		}
	}
	return Status{Status: status, Checks: results, Timestamp: time.Now().UTC()}
}

func (c *Checker) run(ctx context.Context, check CheckFunc) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.checkTimeout)
	defer cancel()

	start := time.Now()
	errChan := make(chan error, 1)
	go func() { errChan <- check(ctx) }()

	var err error
	select {
	case err = <-errChan:
	case <-ctx.Done():
		err = ErrCheckTimeout
	}

	result := CheckResult{
		Status:     StatusOK,
		DurationMS: float64(time.Since(start).Microseconds()) / 1000,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = err.Error()
	}
	return result
}
