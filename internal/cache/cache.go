package cache

import (
	"context"
	"sync"
	"time"

	"blackout-watch/internal/models"
	"blackout-watch/internal/schedule"
)

// Entry is the last successfully fetched schedule for one address.
type Entry struct {
	Snapshot  *schedule.Snapshot `json:"snapshot"`
	Digest    string             `json:"digest"`
	FetchedAt time.Time          `json:"fetched_at"`
}

// Store holds the shared address → last-snapshot cache. The checker writes it
// on every successful fetch (last-write-wins), the alert scheduler only reads.
type Store interface {
	Put(ctx context.Context, key models.AddressKey, e Entry) error
	Get(ctx context.Context, key models.AddressKey) (Entry, bool, error)
	Keys(ctx context.Context) ([]string, error)
}

// Memory is an in-process Store. Used in tests and as a fallback when no
// Redis URL is configured.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]Entry)}
}

func (m *Memory) Put(_ context.Context, key models.AddressKey, e Entry) error {
	m.mu.Lock()
	m.entries[key.String()] = e
	m.mu.Unlock()
	return nil
}

func (m *Memory) Get(_ context.Context, key models.AddressKey) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[key.String()]
	return e, ok, nil
}

func (m *Memory) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	return keys, nil
}
