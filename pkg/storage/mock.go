package storage

import (
	"context"
	"errors"
	"sync"
)

// MockStorage is an in-memory implementation of Storage. It backs the
// "memory" storage backend and lets tests inject failures.
type MockStorage struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
	flags     map[string]bool
	pingError error
	saveError error
	loadError error
	saves     int
}

// Ensure MockStorage implements Storage interface
var _ Storage = (*MockStorage)(nil)

// NewMockStorage creates a new mock storage
func NewMockStorage() *MockStorage {
	return &MockStorage{
		snapshots: make(map[string][]byte),
		flags:     make(map[string]bool),
	}
}

// SetPingError configures the mock to fail on ping with the given error
func (m *MockStorage) SetPingError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pingError = err
}

// SetSaveError makes every write (snapshots, deletes and flags) fail with err
func (m *MockStorage) SetSaveError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveError = err
}

// SetLoadError makes every read fail with err
func (m *MockStorage) SetLoadError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadError = err
}

// PutRaw stores data in a slot without going through SaveSnapshot (for testing)
func (m *MockStorage) PutRaw(slot string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[slot] = append([]byte(nil), data...)
}

// Saves returns how many successful SaveSnapshot calls were made
func (m *MockStorage) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

func (m *MockStorage) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pingError
}

func (m *MockStorage) Close() error {
	return nil
}

func (m *MockStorage) SaveSnapshot(ctx context.Context, slot string, data []byte) error {
	if data == nil {
		return errors.New("snapshot data cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.snapshots[slot] = append([]byte(nil), data...)
	m.saves++
	return nil
}

func (m *MockStorage) LoadSnapshot(ctx context.Context, slot string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return nil, m.loadError
	}
	data, exists := m.snapshots[slot]
	if !exists {
		return nil, nil // Return nil for not found
	}
	return append([]byte(nil), data...), nil
}

func (m *MockStorage) DeleteSnapshot(ctx context.Context, slot string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	delete(m.snapshots, slot)
	return nil
}

func (m *MockStorage) SetFlag(ctx context.Context, name string, value bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveError != nil {
		return m.saveError
	}
	m.flags[name] = value
	return nil
}

func (m *MockStorage) GetFlag(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.loadError != nil {
		return false, m.loadError
	}
	return m.flags[name], nil
}
