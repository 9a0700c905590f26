package ui

import (
	"context"
	"log/slog"
	"sync"

	dark "github.com/thiagokokada/dark-mode-go"

	"github.com/asheshgoplani/agent-watch/internal/logging"
	"github.com/asheshgoplani/agent-watch/internal/platform"
)

var uiLog = logging.ForComponent(logging.CompUI)

// ThemeWatcher follows the OS appearance while theme = "auto".
type ThemeWatcher struct {
	changeCh  chan bool // true=dark, false=light
	closeCh   chan struct{}
	closeOnce sync.Once
}

// NewThemeWatcher starts watching. It returns nil when the platform offers
// no appearance notifications; callers keep the theme they resolved at
// startup.
func NewThemeWatcher(parentCtx context.Context) *ThemeWatcher {
	if !platform.SupportsThemeDetection() {
		uiLog.Info("theme_watcher_unsupported", slog.String("platform", platform.Detect().String()))
		return nil
	}
	ctx, cancel := context.WithCancel(parentCtx)

	events, errs, err := dark.WatchDarkMode(ctx)
	if err != nil {
		cancel()
		uiLog.Warn("theme_watcher_init_failed", slog.String("error", err.Error()))
		return nil
	}

	tw := &ThemeWatcher{
		changeCh: make(chan bool, 1),
		closeCh:  make(chan struct{}),
	}
	go tw.watchLoop(cancel, events, errs)
	return tw
}

func (tw *ThemeWatcher) watchLoop(cancel context.CancelFunc, events <-chan bool, errs <-chan error) {
	defer cancel()
	for {
		select {
		case <-tw.closeCh:
			return
		case isDark, ok := <-events:
			if !ok {
				return
			}
			// Latest value wins over one the UI has not read yet.
			select {
			case <-tw.changeCh:
			default:
			}
			tw.changeCh <- isDark
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				uiLog.Warn("theme_watcher_error", slog.String("error", err.Error()))
			}
		}
	}
}

// Changes delivers the new appearance, true for dark.
func (tw *ThemeWatcher) Changes() <-chan bool {
	return tw.changeCh
}

// Close stops the watcher goroutine. Safe to call multiple times.
func (tw *ThemeWatcher) Close() {
	tw.closeOnce.Do(func() {
		close(tw.closeCh)
	})
}
