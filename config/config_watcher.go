package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the configuration file when it changes and
// publishes every valid revision to its subscribers.
type ConfigWatcher struct {
	currentConfig atomic.Pointer[Config]
	configPath    string
	watcher       *fsnotify.Watcher
	logger        *zap.Logger

	mu          sync.Mutex
	subscribers []chan *Config
	done        chan struct{}
	closeOnce   sync.Once
}

// NewConfigWatcher loads configPath and starts watching it.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	initialConfig, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	// Watch the directory: editors replace files by rename, which drops a
	// watch placed on the file itself.
	if err := watcher.Add(filepath.Dir(configPath)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: filepath.Clean(configPath),
		watcher:    watcher,
		logger:     logger,
		done:       make(chan struct{}),
	}
	cw.currentConfig.Store(initialConfig)

	go cw.watchConfig()
	return cw, nil
}

// Subscribe returns a channel that receives each reloaded configuration.
// Slow subscribers miss intermediate revisions but always see the latest.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	cw.mu.Lock()
	cw.subscribers = append(cw.subscribers, ch)
	cw.mu.Unlock()
	return ch
}

// GetCurrentConfig returns the current configuration.
func (cw *ConfigWatcher) GetCurrentConfig() *Config {
	return cw.currentConfig.Load()
}

func (cw *ConfigWatcher) watchConfig() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != cw.configPath {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				cw.handleConfigChange()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		case <-cw.done:
			return
		}
	}
}

func (cw *ConfigWatcher) handleConfigChange() {
	// Editors and os.WriteFile truncate before writing; skip the empty state.
	if info, err := os.Stat(cw.configPath); err != nil || info.Size() == 0 {
		return
	}

	cw.logger.Info("Detected config file change, reloading", zap.String("path", cw.configPath))

	newConfig, err := LoadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("Failed to load new config, keeping previous", zap.Error(err))
		return
	}

	cw.currentConfig.Store(newConfig)

	cw.mu.Lock()
	for _, sub := range cw.subscribers {
		// Replace a stale pending revision with the newest one.
		select {
		case <-sub:
		default:
		}
		select {
		case sub <- newConfig:
		default:
		}
	}
	cw.mu.Unlock()

	cw.logger.Info("Configuration reloaded successfully")
}

// Close stops watching and releases the underlying watcher.
func (cw *ConfigWatcher) Close() error {
	var err error
	cw.closeOnce.Do(func() {
		close(cw.done)
		err = cw.watcher.Close()
	})
	return err
}
