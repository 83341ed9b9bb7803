package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// DefaultWatchInterval is how often a [Watcher] polls its file.
const DefaultWatchInterval = 5 * time.Second

// ChangeFunc receives the reloaded config and what changed relative to the
// previous one.
type ChangeFunc func(cfg *Config, d ConfigDiff)

// Watcher polls a config file and reports effective changes. A reload that
// fails to parse or validate is logged and the previous config stays
// current. Edits that do not change any value (comments, reordering) are
// absorbed without a callback.
type Watcher struct {
	path     string
	interval time.Duration
	onChange ChangeFunc

	mu      sync.Mutex
	current *Config
	digest  [sha256.Size]byte
	stamp   fileStamp

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// fileStamp is the cheap pre-check done before reading the file.
type fileStamp struct {
	mod  time.Time
	size int64
}

// WatcherOption configures a [Watcher].
type WatcherOption func(*Watcher)

// WithInterval sets the polling interval. Non-positive values are ignored.
func WithInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// NewWatcher loads path and starts polling it. onChange may be nil.
func NewWatcher(path string, onChange ChangeFunc, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:     path,
		interval: DefaultWatchInterval,
		onChange: onChange,
		stop:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
	for _, o := range opts {
		o(w)
	}

	snap, err := w.read()
	if err != nil {
		return nil, fmt.Errorf("config: watch %s: %w", path, err)
	}
	w.current, w.digest, w.stamp = snap.cfg, snap.digest, snap.stamp

	go w.loop()
	return w, nil
}

// Current returns the most recently accepted config.
func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop ends polling and waits for an in-progress reload to finish. It is
// safe to call more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.stopped
}

func (w *Watcher) loop() {
	defer close(w.stopped)
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-t.C:
			w.reload()
		}
	}
}

// reload applies the file if it changed on disk and still validates.
func (w *Watcher) reload() {
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config: cannot stat watched file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	unchanged := w.stamp == fileStamp{mod: info.ModTime(), size: info.Size()}
	w.mu.Unlock()
	if unchanged {
		return
	}

	snap, err := w.read()
	if err != nil {
		slog.Warn("config: reload rejected, keeping previous config", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	w.stamp = snap.stamp
	if snap.digest == w.digest {
		w.mu.Unlock()
		return
	}
	w.digest = snap.digest
	d := Diff(w.current, snap.cfg)
	if !d.Changed() {
		w.mu.Unlock()
		slog.Debug("config: file edited without effective changes", "path", w.path)
		return
	}
	w.current = snap.cfg
	w.mu.Unlock()

	slog.Info("config: reloaded", "path", w.path,
		"log_level_changed", d.LogLevelChanged,
		"restart_required", d.RestartRequired,
	)
	if w.onChange != nil {
		w.onChange(snap.cfg, d)
	}
}

type snapshot struct {
	cfg    *Config
	digest [sha256.Size]byte
	stamp  fileStamp
}

func (w *Watcher) read() (snapshot, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return snapshot{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return snapshot{}, err
	}
	cfg, err := LoadFromReader(bytes.NewReader(data))
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{
		cfg:    cfg,
		digest: sha256.Sum256(data),
		stamp:  fileStamp{mod: info.ModTime(), size: info.Size()},
	}, nil
}
