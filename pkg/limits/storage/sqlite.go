package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite. The journal survives
// restarts, which makes it suitable for single-instance deployments that
// need a violation history.
//
// The database runs in WAL mode and a background loop checkpoints the WAL
// periodically.
type SQLiteBackend struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	mu                 sync.RWMutex
	closeOnce          sync.Once
	closed             bool

	recordStmt  *sql.Stmt
	cleanupStmt *sql.Stmt
}

// SQLiteBackendConfig configures the SQLite backend.
type SQLiteBackendConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteBackend creates a SQLite backend with default settings.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	return NewSQLiteBackendWithConfig(SQLiteBackendConfig{DBPath: dbPath})
}

// NewSQLiteBackendWithConfig creates a SQLite backend with custom configuration.
func NewSQLiteBackendWithConfig(cfg SQLiteBackendConfig) (*SQLiteBackend, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(NORMAL)",
		cfg.DBPath, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	go backend.checkpointLoop()

	return backend, nil
}

func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS violations (
		id TEXT PRIMARY KEY,
		session_id TEXT NOT NULL,
		tool_name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		ip_address TEXT NOT NULL DEFAULT '',
		dimension TEXT NOT NULL,
		message TEXT NOT NULL,
		retry_after_ns INTEGER NOT NULL,
		occurred_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_violations_occurred_at ON violations(occurred_at);
	CREATE INDEX IF NOT EXISTS idx_violations_session ON violations(session_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.recordStmt, err = s.db.Prepare(`
		INSERT INTO violations (id, session_id, tool_name, category, ip_address, dimension, message, retry_after_ns, occurred_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare record statement: %w", err)
	}

	s.cleanupStmt, err = s.db.Prepare(`
		DELETE FROM violations
		WHERE occurred_at < ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare cleanup statement: %w", err)
	}

	return nil
}

// Record appends a violation.
func (s *SQLiteBackend) Record(ctx context.Context, v *Violation) error {
	if err := validate(v); err != nil {
		return err
	}
	if v.OccurredAt.IsZero() {
		v.OccurredAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	_, err := s.recordStmt.ExecContext(ctx,
		v.ID,
		v.SessionID,
		v.ToolName,
		v.Category,
		v.IPAddress,
		v.Dimension,
		v.Message,
		int64(v.RetryAfter),
		v.OccurredAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to record violation: %w", err)
	}

	return nil
}

// List returns matching violations, newest first.
func (s *SQLiteBackend) List(ctx context.Context, filter Filter) ([]*Violation, error) {
	where, args := filterClause(filter)
	query := `
		SELECT id, session_id, tool_name, category, ip_address, dimension, message, retry_after_ns, occurred_at
		FROM violations` + where + `
		ORDER BY occurred_at DESC`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list violations: %w", err)
	}
	defer rows.Close()

	var out []*Violation
	for rows.Next() {
		var (
			v          Violation
			retryAfter int64
			occurredAt int64
		)
		if err := rows.Scan(&v.ID, &v.SessionID, &v.ToolName, &v.Category, &v.IPAddress,
			&v.Dimension, &v.Message, &retryAfter, &occurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		v.RetryAfter = time.Duration(retryAfter)
		v.OccurredAt = time.Unix(0, occurredAt)
		out = append(out, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}

// Count returns the number of matching violations.
func (s *SQLiteBackend) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filterClause(filter)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, ErrClosed
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM violations"+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count violations: %w", err)
	}
	return n, nil
}

// Cleanup removes violations that occurred before olderThan.
func (s *SQLiteBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	result, err := s.cleanupStmt.ExecContext(ctx, olderThan.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return int(deleted), nil
}

// Close releases the database. Close is idempotent.
func (s *SQLiteBackend) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		s.mu.Lock()
		defer s.mu.Unlock()
		s.closed = true

		if s.recordStmt != nil {
			s.recordStmt.Close()
		}
		if s.cleanupStmt != nil {
			s.cleanupStmt.Close()
		}

		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		closeErr = s.db.Close()
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteBackend) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.mu.RLock()
			if !s.closed {
				_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
			}
			s.mu.RUnlock()
		case <-s.done:
			return
		}
	}
}

// filterClause builds a WHERE clause and its arguments.
func filterClause(f Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if f.Dimension != "" {
		conds = append(conds, "dimension = ?")
		args = append(args, f.Dimension)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "occurred_at >= ?")
		args = append(args, f.Since.UnixNano())
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
