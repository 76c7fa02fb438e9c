package limits

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"mercator-hq/toolgate/pkg/limits/storage"
)

const (
	// DefaultJournalBuffer is the default capacity of the journal queue.
	DefaultJournalBuffer = 1000

	// journalWriteTimeout bounds a single journal write.
	journalWriteTimeout = 5 * time.Second
)

// journalEntry is either a violation to write or a flush marker.
type journalEntry struct {
	violation *storage.Violation
	flushed   chan struct{}
}

// recorder writes violations to the journal from a background goroutine
// so a deny never waits on storage.
type recorder struct {
	journal storage.Backend
	queue   chan journalEntry
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once

	logger  *slog.Logger
	metrics *Metrics
}

func newRecorder(journal storage.Backend, buffer int, logger *slog.Logger, metrics *Metrics) *recorder {
	if buffer <= 0 {
		buffer = DefaultJournalBuffer
	}

	r := &recorder{
		journal: journal,
		queue:   make(chan journalEntry, buffer),
		done:    make(chan struct{}),
		logger:  logger,
		metrics: metrics,
	}

	r.wg.Add(1)
	go r.worker()

	return r
}

// enqueue hands v to the writer without blocking. It reports false when
// the queue is full or the recorder is closed; the violation is dropped.
func (r *recorder) enqueue(v *storage.Violation) bool {
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.queue <- journalEntry{violation: v}:
		return true
	default:
		r.metrics.RecordJournalDrop()
		r.logger.Warn("journal queue full, dropping violation",
			"session_id", v.SessionID,
			"dimension", v.Dimension,
			"queue_capacity", cap(r.queue),
		)
		return false
	}
}

// flush blocks until every violation enqueued before the call is written.
func (r *recorder) flush(ctx context.Context) error {
	marker := journalEntry{flushed: make(chan struct{})}

	select {
	case r.queue <- marker:
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-marker.flushed:
		return nil
	case <-r.done:
		r.wg.Wait()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops the writer after it drains the queue.
func (r *recorder) close() {
	r.once.Do(func() {
		close(r.done)
		r.wg.Wait()
	})
}

func (r *recorder) worker() {
	defer r.wg.Done()

	for {
		select {
		case entry := <-r.queue:
			r.handle(entry)

		case <-r.done:
			for {
				select {
				case entry := <-r.queue:
					r.handle(entry)
				default:
					return
				}
			}
		}
	}
}

func (r *recorder) handle(entry journalEntry) {
	if entry.flushed != nil {
		close(entry.flushed)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	if err := r.journal.Record(ctx, entry.violation); err != nil {
		r.logger.Warn("failed to record violation",
			"session_id", entry.violation.SessionID,
			"error", err,
		)
	}
}
