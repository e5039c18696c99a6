package config

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 750 * time.Millisecond

// Watcher reloads a Config in place from its backing file whenever the
// file changes on disk. Only that Config value is updated; components that
// were handed copies of its sections at startup keep the values they got.
type Watcher struct {
	path   string
	target *Config
	logger *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	fsw   *fsnotify.Watcher
}

// NewWatcher builds a Watcher that keeps target in sync with path.
func NewWatcher(path string, target *Config, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	abs, err := filepath.Abs(path)
	if err == nil {
		path = abs
	}
	return &Watcher{path: filepath.Clean(path), target: target, logger: logger}
}

// Start begins watching the config file until ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(filepath.Dir(w.path)); err != nil {
		_ = fsw.Close()
		return err
	}
	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer func() {
		w.mu.Lock()
		if w.fsw != nil {
			_ = w.fsw.Close()
		}
		w.mu.Unlock()
	}()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(watchDebounce, w.reload)
}

func (w *Watcher) reload() {
	fresh, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config", "error", err)
		return
	}
	w.target.ReplaceFrom(fresh)
	w.logger.Info("config reloaded", "path", w.path)
}
