package storage

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryBackend implements Backend in memory as a fixed-size ring. When
// full, each new violation overwrites the oldest.
type MemoryBackend struct {
	// ring holds entries in insertion order starting at head.
	ring       []*Violation
	head       int
	size       int
	maxEntries int
	closed     bool
	mu         sync.RWMutex
}

// MemoryBackendConfig configures the memory backend.
type MemoryBackendConfig struct {
	// MaxEntries is the maximum number of violations kept.
	// Default: 10,000
	MaxEntries int
}

// NewMemoryBackend creates a memory backend with default settings.
func NewMemoryBackend() *MemoryBackend {
	return NewMemoryBackendWithConfig(MemoryBackendConfig{})
}

// NewMemoryBackendWithConfig creates a memory backend with custom configuration.
func NewMemoryBackendWithConfig(cfg MemoryBackendConfig) *MemoryBackend {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	return &MemoryBackend{
		maxEntries: cfg.MaxEntries,
	}
}

// Record appends a violation.
func (m *MemoryBackend) Record(ctx context.Context, v *Violation) error {
	if err := validate(v); err != nil {
		return err
	}
	if v.OccurredAt.IsZero() {
		v.OccurredAt = time.Now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}

	if m.ring == nil {
		m.ring = make([]*Violation, m.maxEntries)
	}

	stored := *v
	if m.size < m.maxEntries {
		m.ring[(m.head+m.size)%m.maxEntries] = &stored
		m.size++
		return nil
	}
	m.ring[m.head] = &stored
	m.head = (m.head + 1) % m.maxEntries
	return nil
}

// each calls fn for every stored violation, oldest first. Caller must hold
// m.mu.
func (m *MemoryBackend) each(fn func(v *Violation)) {
	for i := 0; i < m.size; i++ {
		fn(m.ring[(m.head+i)%m.maxEntries])
	}
}

// List returns matching violations, newest first.
func (m *MemoryBackend) List(ctx context.Context, filter Filter) ([]*Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrClosed
	}

	var out []*Violation
	m.each(func(v *Violation) {
		if filter.matches(v) {
			c := *v
			out = append(out, &c)
		}
	})

	slices.SortStableFunc(out, func(a, b *Violation) int {
		return b.OccurredAt.Compare(a.OccurredAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Count returns the number of matching violations.
func (m *MemoryBackend) Count(ctx context.Context, filter Filter) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return 0, ErrClosed
	}

	n := 0
	m.each(func(v *Violation) {
		if filter.matches(v) {
			n++
		}
	})
	return n, nil
}

// Cleanup removes violations that occurred before olderThan.
func (m *MemoryBackend) Cleanup(ctx context.Context, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return 0, ErrClosed
	}

	kept := 0
	m.each(func(v *Violation) {
		if !v.OccurredAt.Before(olderThan) {
			m.ring[(m.head+kept)%m.maxEntries] = v
			kept++
		}
	})
	for i := kept; i < m.size; i++ {
		m.ring[(m.head+i)%m.maxEntries] = nil
	}

	removed := m.size - kept
	m.size = kept
	return removed, nil
}

// Close marks the backend closed and drops its entries.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.ring = nil
	m.head, m.size = 0, 0
	return nil
}

// Size returns the current number of stored violations.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size
}
