package mocks

import (
	"sync"
	"sync/atomic"

	"github.com/GokulKGit/quiz-API/config"
)

// MockConfigWatcher provides a testable implementation of config.Watcher
type MockConfigWatcher struct {
	currentConfig atomic.Pointer[config.Config]

	mu          sync.Mutex
	subscribers []chan *config.Config
}

// Verify at compile time that MockConfigWatcher implements config.Watcher
var _ config.Watcher = (*MockConfigWatcher)(nil)

// NewMockConfigWatcher creates a new MockConfigWatcher initialized with the provided config
func NewMockConfigWatcher(cfg *config.Config) *MockConfigWatcher {
	mcw := &MockConfigWatcher{}
	mcw.currentConfig.Store(cfg)
	return mcw
}

// GetCurrentConfig implements config.Watcher
func (m *MockConfigWatcher) GetCurrentConfig() *config.Config {
	return m.currentConfig.Load()
}

// Subscribe implements config.Watcher
func (m *MockConfigWatcher) Subscribe() <-chan *config.Config {
	ch := make(chan *config.Config, 1)
	m.mu.Lock()
	m.subscribers = append(m.subscribers, ch)
	m.mu.Unlock()
	return ch
}

// Close implements config.Watcher
func (m *MockConfigWatcher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		close(ch)
	}
	m.subscribers = nil
	return nil
}

// UpdateConfig is a test helper that simulates configuration changes
func (m *MockConfigWatcher) UpdateConfig(cfg *config.Config) {
	m.currentConfig.Store(cfg)

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- cfg:
		default:
		}
	}
}
