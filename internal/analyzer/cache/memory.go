package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sailorworks/verigrant/internal/domain/model"
)

type memoryEntry struct {
	value   model.AlignmentResult
	expires time.Time
}

// Memory is an in-process Cache. Used when no external cache service is
// configured, and by tests.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemory creates an in-memory cache.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// NewMemoryWithClock creates an in-memory cache with a custom time source.
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	if now != nil {
		m.now = now
	}
	return m
}

// Get returns the cached value if present and unexpired.
func (m *Memory) Get(_ context.Context, key string) (*model.AlignmentResult, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.now().After(e.expires) {
		return nil, false
	}
	value := e.value
	return &value, true
}

// Set stores a copy of value under key for ttl.
func (m *Memory) Set(_ context.Context, key string, value *model.AlignmentResult, ttl time.Duration) {
	if value == nil {
		return
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{value: *value, expires: m.now().Add(ttl)}
	m.mu.Unlock()
}
