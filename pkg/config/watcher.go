package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceInterval is the quiet period before a reload fires.
const DefaultDebounceInterval = 250 * time.Millisecond

// ReloadFunc receives a freshly loaded and validated configuration.
type ReloadFunc func(cfg *Config) error

// Watcher reloads the configuration file when it changes on disk.
//
// The parent directory is watched rather than the file itself so that
// editors which save by rename keep triggering events.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	debounce *Debouncer
	load     func(path string) (*Config, error)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce interval.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = NewDebouncer(d)
	}
}

// WithWatcherLogger sets the watcher logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// WithEnvOverrides reloads through LoadConfigWithEnvOverrides.
func WithEnvOverrides() WatcherOption {
	return func(w *Watcher) {
		w.load = LoadConfigWithEnvOverrides
	}
}

// NewWatcher creates a watcher for the configuration file at path.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", path, err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		path:     abs,
		watcher:  fsw,
		logger:   slog.Default(),
		debounce: NewDebouncer(DefaultDebounceInterval),
		load:     LoadConfig,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With("component", "config.watcher")

	return w, nil
}

// Watch blocks until ctx is cancelled or Stop is called, invoking onReload
// with each successfully loaded configuration. A file that fails to load or
// validate is logged and skipped; the previous configuration stays in force.
func (w *Watcher) Watch(ctx context.Context, onReload ReloadFunc) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer close(w.doneCh)

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %q: %w", w.path, err)
	}

	w.logger.Info("watching configuration", "path", w.path)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("configuration watcher stopped (context cancelled)")
			return nil

		case <-w.stopCh:
			w.logger.Info("configuration watcher stopped")
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("configuration file event", "op", event.Op.String())
			w.debounce.Trigger(func() {
				w.reload(onReload)
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("configuration watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&fsnotify.Chmod == fsnotify.Chmod {
		return false
	}
	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		// The replacement shows up as a Create.
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *Watcher) reload(onReload ReloadFunc) {
	cfg, err := w.load(w.path)
	if err != nil {
		w.logger.Error("configuration reload rejected", "path", w.path, "error", err)
		return
	}
	if err := onReload(cfg); err != nil {
		w.logger.Error("configuration reload failed", "path", w.path, "error", err)
		return
	}
	w.logger.Info("configuration reloaded", "path", w.path)
}

// Stop stops the watcher and releases its resources. It is safe to call
// whether or not Watch is running.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	running := w.running
	select {
	case <-w.stopCh:
		w.mu.Unlock()
		return nil
	default:
		close(w.stopCh)
	}
	w.mu.Unlock()

	if running {
		<-w.doneCh
	}
	w.debounce.Stop()

	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

// Debouncer collects rapid events and runs the latest callback once the
// interval passes without a new event.
type Debouncer struct {
	interval time.Duration
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a new debouncer.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		stopped := d.stopped
		d.callback = nil
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
