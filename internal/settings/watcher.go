package settings

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/jmylchreest/sniclient/internal/config"
)

// Watcher reloads the configuration file and reports icon theme changes
// to a Store.
type Watcher struct {
	mu      sync.Mutex
	logger  *slog.Logger
	store   *Store
	watcher *fsnotify.Watcher

	configPath string
	themeDirs  []string
	debounce   time.Duration

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
}

// NewWatcher creates a watcher for the config file at configPath and the
// icon base directories of the store.
func NewWatcher(store *Store, configPath string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if configPath == "" {
		configPath = config.ConfigPath()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		logger:     logger,
		store:      store,
		watcher:    fw,
		configPath: configPath,
		themeDirs:  store.ThemeSearchPaths(),
		debounce:   store.Timings().Debounce.Duration() * 5,
	}, nil
}

// Start begins watching. Missing directories are skipped.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	w.mu.Unlock()

	// Watch the directory containing the file (more reliable for writes)
	configDir := filepath.Dir(w.configPath)
	if err := w.watcher.Add(configDir); err != nil {
		w.logger.Debug("not watching config directory", "dir", configDir, "error", err)
	}
	for _, dir := range w.themeDirs {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Debug("not watching icon directory", "dir", dir, "error", err)
		}
	}

	go w.watchLoop(ctx)

	w.logger.Debug("settings watcher started", "config", w.configPath, "icon_dirs", len(w.themeDirs))
	return nil
}

// Stop stops watching and waits for the watch loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	<-w.doneCh
	return w.watcher.Close()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.doneCh)

	configName := filepath.Base(w.configPath)

	// Theme directories see bursts of events while packages install.
	var themeTimer *time.Timer
	themeFired := make(chan struct{}, 1)
	defer func() {
		if themeTimer != nil {
			themeTimer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			if filepath.Base(event.Name) == configName && filepath.Dir(event.Name) == filepath.Dir(w.configPath) {
				if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
					w.reloadConfig()
				}
				continue
			}

			if themeTimer == nil {
				themeTimer = time.AfterFunc(w.debounce, func() {
					select {
					case themeFired <- struct{}{}:
					default:
					}
				})
			} else {
				themeTimer.Reset(w.debounce)
			}

		case <-themeFired:
			w.logger.Debug("icon directories changed")
			w.store.NotifyThemeChanged()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("settings watcher error", "error", err)
		}
	}
}

func (w *Watcher) reloadConfig() {
	cfg, err := config.LoadConfig(w.configPath)
	if err != nil {
		w.logger.Warn("failed to reload config, keeping current settings", "error", err)
		return
	}
	changes := w.store.Apply(cfg)
	w.logger.Info("config reloaded", "path", w.configPath, "changes", len(changes))
}
