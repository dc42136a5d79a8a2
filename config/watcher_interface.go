package config

import "sync"

// Watcher provides the live configuration to components that support hot
// reload. The server depends on this interface so tests can drive reloads
// without touching the filesystem.
type Watcher interface {
	GetCurrentConfig() *Config
	Subscribe() <-chan *Config
	Close() error
}

// StaticWatcher serves a fixed configuration. It is used when the server
// runs without a config file.
type StaticWatcher struct {
	cfg  *Config
	once sync.Once
	ch   chan *Config
}

var _ Watcher = (*StaticWatcher)(nil)

// NewStaticWatcher returns a Watcher whose configuration never changes.
func NewStaticWatcher(cfg *Config) *StaticWatcher {
	return &StaticWatcher{cfg: cfg, ch: make(chan *Config)}
}

// GetCurrentConfig returns the fixed configuration.
func (w *StaticWatcher) GetCurrentConfig() *Config { return w.cfg }

// Subscribe returns a channel that is closed by Close and never delivers.
func (w *StaticWatcher) Subscribe() <-chan *Config { return w.ch }

// Close closes the subscription channel.
func (w *StaticWatcher) Close() error {
	w.once.Do(func() { close(w.ch) })
	return nil
}
