package config

import (
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// settle is how long the watcher waits for a burst of file events to end
// before reloading.
const settle = 150 * time.Millisecond

// Holder provides thread-safe access to configuration with hot reload support.
type Holder struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	logger   zerolog.Logger
	watcher  *fsnotify.Watcher
	onChange []func(*Config)
	stopCh   chan struct{}
	stopOnce sync.Once
	timer    *time.Timer
}

// NewHolder creates a new config holder and loads the initial configuration.
func NewHolder(path string, logger zerolog.Logger) (*Holder, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}

	cfg, err := Load(absPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	h := &Holder{
		config: cfg,
		path:   absPath,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	return h, nil
}

// Get returns the current configuration (thread-safe).
func (h *Holder) Get() *Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.config
}

// Reload reloads the configuration from disk and notifies listeners.
// Returns error if loading fails (keeps old config).
func (h *Holder) Reload() error {
	h.logger.Info().Str("path", h.path).Msg("reloading configuration")

	newCfg, err := Load(h.path)
	if err != nil {
		h.logger.Error().Err(err).Msg("config reload failed, keeping old config")
		return fmt.Errorf("reload config: %w", err)
	}

	h.mu.Lock()
	oldCfg := h.config
	h.config = newCfg
	listeners := append([]func(*Config){}, h.onChange...)
	h.mu.Unlock()

	h.logChanges(oldCfg, newCfg)

	for _, fn := range listeners {
		fn(newCfg)
	}

	h.logger.Info().Msg("configuration reloaded successfully")
	return nil
}

// OnChange registers a callback to be called when config changes.
func (h *Holder) OnChange(fn func(*Config)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = append(h.onChange, fn)
}

// Watch starts watching the config file and the configured input for
// changes. A burst of changes triggers one reload.
func (h *Holder) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	h.watcher = watcher

	// Watch directories rather than files; editors save by rename. An input
	// directory is watched with every directory below it.
	dirs := []string{filepath.Dir(h.path)}
	var tree string
	if input := h.Get().Input; input != "" {
		if info, err := os.Stat(input); err == nil && info.IsDir() {
			tree = input
		} else {
			dirs = append(dirs, filepath.Dir(input))
		}
	}

	seen := make(map[string]bool)
	for _, dir := range dirs {
		if seen[dir] {
			continue
		}
		seen[dir] = true
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	if tree != "" {
		added, err := h.addTree(tree)
		if err != nil {
			watcher.Close()
			return err
		}
		dirs = append(dirs, added...)
	}

	go h.watchLoop()

	h.logger.Info().Str("path", h.path).Strs("dirs", dirs).Msg("watching for changes")
	return nil
}

// WatchSignals starts listening for SIGHUP to trigger reload.
func (h *Holder) WatchSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)

	go func() {
		for {
			select {
			case <-sigCh:
				h.logger.Info().Msg("received SIGHUP, reloading config")
				if err := h.Reload(); err != nil {
					h.logger.Error().Err(err).Msg("SIGHUP reload failed")
				}
			case <-h.stopCh:
				signal.Stop(sigCh)
				return
			}
		}
	}()

	h.logger.Info().Msg("listening for SIGHUP to reload config")
}

// Stop stops watching for file changes and signals.
func (h *Holder) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
		if h.watcher != nil {
			h.watcher.Close()
		}
		h.mu.Lock()
		if h.timer != nil {
			h.timer.Stop()
		}
		h.mu.Unlock()
	})
}

func (h *Holder) watchLoop() {
	for {
		select {
		case event, ok := <-h.watcher.Events:
			if !ok {
				return
			}
			if !h.relevant(event.Name) {
				continue
			}
			if event.Op&fsnotify.Create != 0 {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if _, err := h.addTree(event.Name); err != nil {
						h.logger.Error().Err(err).Str("dir", event.Name).Msg("watch new directory")
					}
				}
			}

			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				h.logger.Debug().
					Str("event", event.Op.String()).
					Str("file", event.Name).
					Msg("file changed")
				h.schedule()
			}

		case err, ok := <-h.watcher.Errors:
			if !ok {
				return
			}
			h.logger.Error().Err(err).Msg("file watcher error")

		case <-h.stopCh:
			return
		}
	}
}

// addTree watches root and every directory below it.
func (h *Holder) addTree(root string) ([]string, error) {
	var added []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if err := h.watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		added = append(added, path)
		return nil
	})
	return added, err
}

// relevant reports whether a change to name can affect generation: the
// config file itself or anything under the input.
func (h *Holder) relevant(name string) bool {
	if filepath.Clean(name) == h.path {
		return true
	}
	input := h.Get().Input
	if input == "" {
		return false
	}
	input, err := filepath.Abs(input)
	if err != nil {
		return false
	}
	name, err = filepath.Abs(name)
	if err != nil {
		return false
	}
	if name == input {
		return true
	}
	rel, err := filepath.Rel(input, name)
	return err == nil && rel != ".." && !filepath.IsAbs(rel) && len(rel) > 0 && rel[0] != '.'
}

func (h *Holder) schedule() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.timer != nil {
		h.timer.Stop()
	}
	h.timer = time.AfterFunc(settle, func() {
		select {
		case <-h.stopCh:
			return
		default:
		}
		if err := h.Reload(); err != nil {
			h.logger.Error().Err(err).Msg("file watch reload failed")
		}
	})
}

func (h *Holder) logChanges(old, new *Config) {
	if old.Logging.Level != new.Logging.Level {
		h.logger.Info().
			Str("old", old.Logging.Level).
			Str("new", new.Logging.Level).
			Msg("log level changed")
	}

	if old.Input != new.Input {
		h.logger.Info().
			Str("old", old.Input).
			Str("new", new.Input).
			Msg("input changed")
	}

	if old.Output.Dir != new.Output.Dir {
		h.logger.Info().
			Str("old", old.Output.Dir).
			Str("new", new.Output.Dir).
			Msg("output directory changed")
	}

	if len(old.Channels) != len(new.Channels) {
		h.logger.Info().
			Int("old", len(old.Channels)).
			Int("new", len(new.Channels)).
			Msg("channel overrides count changed")
	}
}
