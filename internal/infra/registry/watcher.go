package registry

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"toolgate/internal/domain"
	"toolgate/internal/infra/telemetry"
)

const defaultReloadDebounce = 200 * time.Millisecond

// ReloadFunc receives freshly loaded settings after the config file changes.
type ReloadFunc func(ctx context.Context, settings domain.Settings)

// Watcher reloads the settings file when it changes on disk. A load failure
// is logged and the previous settings stay in effect, so a half-saved edit
// never tears down live backends.
type Watcher struct {
	loader   *Loader
	path     string
	debounce time.Duration
	onReload ReloadFunc
	logger   *zap.Logger
}

type WatcherOptions struct {
	Loader   *Loader
	Path     string
	Debounce time.Duration
	OnReload ReloadFunc
	Logger   *zap.Logger
}

func NewWatcher(opts WatcherOptions) *Watcher {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := opts.Loader
	if loader == nil {
		loader = NewLoader(logger)
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	return &Watcher{
		loader:   loader,
		path:     opts.Path,
		debounce: debounce,
		onReload: opts.OnReload,
		logger:   logger.Named("watcher"),
	}
}

// Run watches the config file until ctx is done. Editors replace files
// rather than writing in place, so the watch covers the parent directory
// and filters events down to the config path.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}

	var timer *time.Timer
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-watcher.Errors:
			if err != nil {
				w.logger.Warn("config watch error", zap.Error(err))
			}
		case event := <-watcher.Events:
			if !w.matchesConfig(event.Name) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				continue
			}
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
		case <-timerChan(timer):
			timer = nil
			w.reload(ctx)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	settings, err := w.loader.Load(ctx, w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous settings",
			zap.String("path", w.path),
			zap.Error(err),
		)
		return
	}
	w.logger.Info("config reloaded",
		telemetry.EventField(telemetry.EventRegistryReload),
		zap.String("path", w.path),
		telemetry.CountField(len(settings.Backends)),
	)
	if w.onReload != nil {
		w.onReload(ctx, settings)
	}
}

func (w *Watcher) matchesConfig(path string) bool {
	if path == "" || w.path == "" {
		return false
	}
	return filepath.Clean(path) == filepath.Clean(w.path)
}

func timerChan(timer *time.Timer) <-chan time.Time {
	if timer == nil {
		return nil
	}
	return timer.C
}
