package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// ProgressReporter reports progress of a batch of admission checks.
type ProgressReporter interface {
	Start(total int64)
	Record(allowed bool)
	Finish()
	Error(err error)
}

// SimpleProgress renders a single-line progress bar with allow and deny
// tallies. Redraws are throttled to MinInterval except on Start and Finish.
type SimpleProgress struct {
	// MinInterval is the minimum time between redraws.
	MinInterval time.Duration

	mu         sync.Mutex
	total      int64
	allowed    int64
	denied     int64
	started    time.Time
	lastRender time.Time
	writer     io.Writer
}

// NewProgressReporter creates a new progress reporter that writes to w.
// If w is nil, it defaults to os.Stderr.
func NewProgressReporter(w io.Writer) *SimpleProgress {
	if w == nil {
		w = os.Stderr
	}
	return &SimpleProgress{
		MinInterval: 100 * time.Millisecond,
		writer:      w,
	}
}

// Start resets the counters for a batch of total checks.
func (p *SimpleProgress) Start(total int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.total = total
	p.allowed = 0
	p.denied = 0
	p.started = time.Now()
	p.render()
}

// Record counts one completed check.
func (p *SimpleProgress) Record(allowed bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if allowed {
		p.allowed++
	} else {
		p.denied++
	}
	if time.Since(p.lastRender) >= p.MinInterval {
		p.render()
	}
}

// Finish draws the final state and ends the line.
func (p *SimpleProgress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.render()
	fmt.Fprintln(p.writer)
}

// Error reports an error during progress.
func (p *SimpleProgress) Error(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.writer, "\n✗ Error: %v\n", err)
}

// Counts returns the allowed and denied tallies so far.
func (p *SimpleProgress) Counts() (allowed, denied int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.allowed, p.denied
}

func (p *SimpleProgress) render() {
	p.lastRender = time.Now()
	if p.total <= 0 {
		return
	}

	done := min(p.allowed+p.denied, p.total)
	percent := float64(done) / float64(p.total) * 100
	barWidth := 40
	filled := int(float64(barWidth) * percent / 100)

	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	rate := 0.0
	if elapsed := time.Since(p.started).Seconds(); elapsed > 0 {
		rate = float64(done) / elapsed
	}

	fmt.Fprintf(p.writer, "\rChecks: [%s] %.1f%% (%d/%d) allowed=%d denied=%d %.1f/s",
		bar, percent, done, p.total, p.allowed, p.denied, rate)
}
