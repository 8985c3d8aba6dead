// Package watcher watches dataset source files with fsnotify and reports, debounced,
// which dataset changed.
package watcher

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hyperjump/insightbot/internal/config"
)

const defaultDebounce = 2 * time.Second

// Watcher watches the vector and metadata files of configured datasets and calls
// onChange once per burst of writes to a dataset's sources.
type Watcher struct {
	files    map[string]string // clean absolute source path -> dataset name
	onChange func(dataset string)
	debounce time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	timers   map[string]*time.Timer // dataset -> pending callback
	done     chan struct{}
	started  bool
	stopOnce sync.Once
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithLogger sets a logger for watch events.
func WithLogger(l *zap.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithDebounce sets how long a dataset's sources must be quiet before onChange runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// NewWatcher creates a watcher over the sources of datasets.
func NewWatcher(datasets []config.DatasetConfig, onChange func(dataset string), opts ...Option) *Watcher {
	w := &Watcher{
		files:    make(map[string]string),
		onChange: onChange,
		debounce: defaultDebounce,
		logger:   zap.NewNop(),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
	}
	for _, ds := range datasets {
		for _, p := range []string{ds.Vectors, ds.Metadata} {
			if abs, err := filepath.Abs(p); err == nil {
				w.files[filepath.Clean(abs)] = ds.Name
			}
		}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start starts watching. It runs until ctx is cancelled or Stop is called.
// Parent directories are watched rather than the files themselves, so sources
// replaced by rename (as editors and exporters do) keep being observed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range w.directories() {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return err
		}
		w.logger.Debug("watching directory", zap.String("path", dir))
	}
	w.watcher = fw
	w.started = true
	go w.run(ctx, fw.Events, fw.Errors)
	return nil
}

func (w *Watcher) directories() []string {
	seen := make(map[string]bool)
	var dirs []string
	for p := range w.files {
		dir := filepath.Dir(p)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	sort.Strings(dirs)
	return dirs
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	dataset, ok := w.files[filepath.Clean(ev.Name)]
	if !ok {
		return
	}
	w.logger.Debug("source event",
		zap.String("op", ev.Op.String()),
		zap.String("path", ev.Name),
		zap.String("dataset", dataset),
	)
	switch {
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		w.schedule(dataset)
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A replace-by-rename is followed by a Create; until then the previous build keeps serving.
		w.logger.Info("dataset source removed; keeping last build", zap.String("path", ev.Name))
	}
}

func (w *Watcher) schedule(dataset string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	if t, ok := w.timers[dataset]; ok {
		t.Stop()
	}
	w.timers[dataset] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, dataset)
		w.mu.Unlock()
		w.logger.Info("dataset sources changed", zap.String("dataset", dataset))
		if w.onChange != nil {
			w.onChange(dataset)
		}
	})
}

// Datasets returns the names of the watched datasets.
func (w *Watcher) Datasets() []string {
	seen := make(map[string]bool)
	var names []string
	for _, name := range w.files {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Stop stops the watcher and cancels pending callbacks.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	for name, t := range w.timers {
		t.Stop()
		delete(w.timers, name)
	}
	_ = w.watcher.Close()
	w.watcher = nil
	w.started = false
	w.mu.Unlock()
	w.stopOnce.Do(func() { close(w.done) })
}
