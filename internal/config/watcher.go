package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/asheshgoplani/agent-watch/internal/logging"
)

var configLog = logging.ForComponent(logging.CompConfig)

const watchDebounce = 150 * time.Millisecond

// Watcher signals when the config file changes on disk. Editors often
// replace the file, so the parent directory is watched and events are
// filtered by name.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

// NewWatcher creates a watcher for path. Call Start to begin watching.
func NewWatcher(path string) (*Watcher, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:    path,
		watcher: fw,
		changes: make(chan struct{}, 1),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// Start runs the event loop in a goroutine.
func (w *Watcher) Start() {
	go w.loop()
}

func (w *Watcher) loop() {
	// Debounce timer: coalesce the write/rename bursts of one save
	var (
		mu    sync.Mutex
		timer *time.Timer
	)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			mu.Lock()
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(watchDebounce, w.notify)
			mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			configLog.Warn("config_watcher_error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) notify() {
	ClearCache()
	configLog.Info("config_changed", slog.String("path", w.path))
	// Non-blocking send (drop if a reload is already pending)
	select {
	case w.changes <- struct{}{}:
	default:
	}
}

// Changes delivers one signal per debounced change.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Close stops the watcher. Safe to call multiple times.
func (w *Watcher) Close() error {
	var err error
	w.once.Do(func() {
		w.cancel()
		err = w.watcher.Close()
	})
	return err
}
