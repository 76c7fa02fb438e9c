package limits

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mercator-hq/toolgate/pkg/limits/ratelimit"
	"mercator-hq/toolgate/pkg/limits/storage"
	"mercator-hq/toolgate/pkg/telemetry/logging"
)

// Manager is the admission controller. It owns every session record, token
// bucket, and sliding window it creates, and sequences the four dimension
// checks for each request.
//
// # Example
//
//	manager, err := limits.NewManager(limits.Config{})
//	if err != nil {
//	    return err
//	}
//	defer manager.Close()
//
//	decision, err := manager.Check(ctx, limits.Request{
//	    SessionID: "session-1",
//	    ToolName:  "inspect_object",
//	    Category:  "inspection",
//	})
//	if err != nil {
//	    return err
//	}
//	if !decision.Allowed {
//	    // decision.Message and decision.Info.RetryAfter explain the deny
//	}
//
// # Journal
//
// Denials are handed to a background writer through a bounded queue, so
// Check never waits on the journal. Flush waits for queued entries and
// Close drains the queue before closing the journal.
//
// # Thread Safety
//
// A single coordinator mutex is held for the whole of Check, so the four
// checks of one request never interleave with another request. Buckets and
// windows carry their own locks as well.
type Manager struct {
	mu       sync.Mutex
	limits   Limits
	sessions map[string]*sessionState
	buckets  map[bucketKey]*trackedBucket
	windows  map[windowKey]*trackedWindow

	// ipRefs counts the sessions whose current address is the key. IP
	// buckets with no references are dropped by cleanup.
	ipRefs map[string]int

	now      func() time.Time
	logger   *slog.Logger
	metrics  *Metrics
	journal  storage.Backend
	recorder *recorder
}

// sessionState is the Manager's private record for a session.
type sessionState struct {
	info SessionInfo
}

// trackedBucket is a token bucket and the limit it was built from.
type trackedBucket struct {
	*ratelimit.TokenBucket
	limit ratelimit.RateLimit
}

// trackedWindow is a sliding window and the limit it was built from.
type trackedWindow struct {
	*ratelimit.SlidingWindow
	limit ratelimit.RateLimit
}

// Config contains configuration for the Manager.
type Config struct {
	// Limits is the limits table. A zero value selects DefaultLimits.
	Limits Limits

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time

	// Logger receives debug and info logs. Defaults to slog.Default.
	Logger *slog.Logger

	// Metrics records Prometheus metrics. Optional.
	Metrics *Metrics

	// Journal records every denial. Optional.
	Journal storage.Backend

	// JournalBuffer is the capacity of the queue in front of the journal.
	// Defaults to DefaultJournalBuffer.
	JournalBuffer int
}

// NewManager creates a Manager. It fails if the limits table is invalid.
func NewManager(cfg Config) (*Manager, error) {
	limits := cfg.Limits
	if limits.isZero() {
		limits = DefaultLimits()
	}
	if err := limits.Validate(); err != nil {
		return nil, err
	}

	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	m := &Manager{
		limits:   limits.clone(),
		sessions: make(map[string]*sessionState),
		buckets:  make(map[bucketKey]*trackedBucket),
		windows:  make(map[windowKey]*trackedWindow),
		ipRefs:   make(map[string]int),
		now:      cfg.Clock,
		logger:   cfg.Logger.With("component", "limits.manager"),
		metrics:  cfg.Metrics,
		journal:  cfg.Journal,
	}
	if cfg.Journal != nil {
		m.recorder = newRecorder(cfg.Journal, cfg.JournalBuffer,
			cfg.Logger.With("component", "limits.journal"), cfg.Metrics)
	}
	return m, nil
}

// Check decides whether a request is admitted.
//
// The checks run in a fixed order and stop at the first violation:
//
//  1. session bookkeeping (always)
//  2. session-global token bucket
//  3. tool-specific sliding window
//  4. category sliding window, if the category is configured
//  5. IP token bucket, if an address is given
//
// A deny increments the session's violation count and is returned as a
// Decision with Allowed=false. The error is non-nil only for a malformed
// request.
func (m *Manager) Check(ctx context.Context, req Request) (*Decision, error) {
	if req.SessionID == "" || req.ToolName == "" {
		return nil, fmt.Errorf("%w: session id and tool name are required", ErrInvalidRequest)
	}
	if req.Category == "" {
		req.Category = DefaultCategory
	}

	start := time.Now()

	m.mu.Lock()
	decision := m.checkLocked(req)
	m.metrics.UpdateState(len(m.sessions), len(m.buckets), len(m.windows))
	m.mu.Unlock()

	m.metrics.RecordCheck(decision, time.Since(start))

	if !decision.Allowed {
		m.logger.DebugContext(ctx, "request denied",
			append(logging.Attrs(ctx),
				"session_id", req.SessionID,
				"tool", req.ToolName,
				"dimension", decision.Info.DeniedBy,
				"retry_after", decision.Info.RetryAfter,
			)...,
		)
		m.recordViolation(decision)
	}

	return decision, nil
}

// checkLocked runs the dimension checks. Caller must hold m.mu.
func (m *Manager) checkLocked(req Request) *Decision {
	now := m.now()
	session := m.touchSessionLocked(req, now)

	info := DecisionInfo{
		SessionID: req.SessionID,
		ToolName:  req.ToolName,
		Category:  req.Category,
		IPAddress: req.IPAddress,
		Checks:    make([]Dimension, 0, len(Dimensions)),
		Timestamp: now,
	}

	// Session-global
	info.Checks = append(info.Checks, DimensionSession)
	sessionLimit := m.limits.SessionGlobal
	bucket := m.bucketLocked(bucketKey{dim: DimensionSession, id: req.SessionID}, sessionLimit)
	if !bucket.Consume(1) {
		wait := bucket.WaitTime(1)
		return deny(session, info, DimensionSession, sessionLimit, wait,
			fmt.Sprintf("session rate limit exceeded, retry in %.1f seconds", wait.Seconds()))
	}

	// Tool-specific
	info.Checks = append(info.Checks, DimensionTool)
	rule := m.limits.ResolveTool(req.ToolName, req.Category)
	info.ToolRule = rule.Name
	toolWindow := m.windowLocked(windowKey{dim: DimensionTool, session: req.SessionID, name: req.ToolName}, rule.Limit)
	if toolWindow.CountAt(now) >= rule.Limit.Requests {
		return deny(session, info, DimensionTool, rule.Limit, windowRetryAfter(toolWindow, now),
			fmt.Sprintf("tool rate limit exceeded for %q: %s", req.ToolName, rule.Limit))
	}
	toolWindow.AddAt(now)

	// Category-based
	if limit, ok := m.limits.CategoryLimit(req.Category); ok {
		info.Checks = append(info.Checks, DimensionCategory)
		categoryWindow := m.windowLocked(windowKey{dim: DimensionCategory, session: req.SessionID, name: req.Category}, limit)
		if categoryWindow.CountAt(now) >= limit.Requests {
			return deny(session, info, DimensionCategory, limit, windowRetryAfter(categoryWindow, now),
				fmt.Sprintf("category rate limit exceeded for %q: %s", req.Category, limit))
		}
		categoryWindow.AddAt(now)
	}

	// IP-based
	if req.IPAddress != "" {
		info.Checks = append(info.Checks, DimensionIP)
		ipLimit := m.limits.IPBased
		ipBucket := m.bucketLocked(bucketKey{dim: DimensionIP, id: req.IPAddress}, ipLimit)
		if !ipBucket.Consume(1) {
			wait := ipBucket.WaitTime(1)
			return deny(session, info, DimensionIP, ipLimit, wait,
				fmt.Sprintf("ip rate limit exceeded for %s, retry in %.1f seconds", req.IPAddress, wait.Seconds()))
		}
	}

	return &Decision{Allowed: true, Info: info}
}

// deny builds a deny decision and counts the violation.
func deny(session *sessionState, info DecisionInfo, dim Dimension, limit ratelimit.RateLimit, retryAfter time.Duration, msg string) *Decision {
	session.info.Violations++

	info.DeniedBy = dim
	info.Limit = &limit
	info.RetryAfter = retryAfter

	return &Decision{
		Allowed: false,
		Message: msg,
		Info:    info,
	}
}

// windowRetryAfter returns how long until the oldest entry leaves the window.
func windowRetryAfter(window *ratelimit.SlidingWindow, now time.Time) time.Duration {
	oldest, ok := window.Oldest()
	if !ok {
		return 0
	}
	if wait := oldest.Add(window.Window()).Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// touchSessionLocked looks up or creates the session and updates its
// bookkeeping. Caller must hold m.mu.
func (m *Manager) touchSessionLocked(req Request, now time.Time) *sessionState {
	session, ok := m.sessions[req.SessionID]
	if !ok {
		session = &sessionState{
			info: SessionInfo{
				SessionID:    req.SessionID,
				CreatedAt:    now,
				LastActivity: now,
			},
		}
		m.sessions[req.SessionID] = session
	}

	if now.After(session.info.LastActivity) {
		session.info.LastActivity = now
	}
	session.info.TotalRequests++

	if req.IPAddress != "" && req.IPAddress != session.info.IPAddress {
		m.releaseIPLocked(session.info.IPAddress)
		session.info.IPAddress = req.IPAddress
		m.ipRefs[req.IPAddress]++
	}

	return session
}

// releaseIPLocked drops one session reference to ip. Caller must hold m.mu.
func (m *Manager) releaseIPLocked(ip string) {
	if ip == "" {
		return
	}
	if m.ipRefs[ip] <= 1 {
		delete(m.ipRefs, ip)
		return
	}
	m.ipRefs[ip]--
}

// bucketLocked returns the bucket for key. A missing bucket, or one built
// from a different limit, is replaced by a full bucket for limit.
// Caller must hold m.mu.
func (m *Manager) bucketLocked(key bucketKey, limit ratelimit.RateLimit) *ratelimit.TokenBucket {
	bucket, ok := m.buckets[key]
	if !ok || bucket.limit != limit {
		bucket = &trackedBucket{
			TokenBucket: ratelimit.NewTokenBucketWithClock(limit.Capacity(), limit.RefillRate(), m.now),
			limit:       limit,
		}
		m.buckets[key] = bucket
	}
	return bucket.TokenBucket
}

// windowLocked returns the window for key. A missing window, or one built
// from a different limit, is replaced by an empty window for limit.
// Caller must hold m.mu.
func (m *Manager) windowLocked(key windowKey, limit ratelimit.RateLimit) *ratelimit.SlidingWindow {
	window, ok := m.windows[key]
	if !ok || window.limit != limit {
		window = &trackedWindow{
			SlidingWindow: ratelimit.NewSlidingWindowWithClock(limit.Window(), m.now),
			limit:         limit,
		}
		m.windows[key] = window
	}
	return window.SlidingWindow
}

// Limits returns a copy of the active limits table.
func (m *Manager) Limits() Limits {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.limits.clone()
}

// SetLimits validates and installs a new limits table. A table equal to the
// active one is a no-op. Otherwise existing buckets and windows are kept
// and each is rebuilt the next time it is used, only if the limit that
// governs it changed. Session records are kept.
func (m *Manager) SetLimits(limits Limits) error {
	if err := limits.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	if m.limits.Equal(limits) {
		m.mu.Unlock()
		m.logger.Debug("limits table unchanged")
		return nil
	}
	m.limits = limits.clone()
	m.mu.Unlock()

	m.metrics.RecordReload()
	m.logger.Info("limits table reloaded",
		"tool_rules", len(limits.Tools),
		"categories", len(limits.Categories),
	)
	return nil
}

// Flush waits until every denial made before the call has been written to
// the journal.
func (m *Manager) Flush(ctx context.Context) error {
	if m.recorder == nil {
		return nil
	}
	return m.recorder.flush(ctx)
}

// Close drains queued denials and releases the journal, if any.
func (m *Manager) Close() error {
	if m.recorder == nil {
		return nil
	}
	m.recorder.close()
	return m.journal.Close()
}

// recordViolation queues a denial for the journal.
func (m *Manager) recordViolation(d *Decision) {
	if m.recorder == nil {
		return
	}

	v := &storage.Violation{
		ID:         uuid.NewString(),
		SessionID:  d.Info.SessionID,
		ToolName:   d.Info.ToolName,
		Category:   d.Info.Category,
		IPAddress:  d.Info.IPAddress,
		Dimension:  string(d.Info.DeniedBy),
		Message:    d.Message,
		RetryAfter: d.Info.RetryAfter,
		OccurredAt: d.Info.Timestamp,
	}
	m.recorder.enqueue(v)
}
