package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/aman-churiwal/thought-partner/internal/models"
)

// MemoryStore keeps quota records in process memory. State is lost on
// restart and is not shared between instances.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.ClientQuotaRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]models.ClientQuotaRecord),
	}
}

func (m *MemoryStore) Get(ctx context.Context, key string) (models.ClientQuotaRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	return rec, ok, nil
}

func (m *MemoryStore) Update(ctx context.Context, key string, fn UpdateFunc) (models.ClientQuotaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var current *models.ClientQuotaRecord
	if rec, ok := m.records[key]; ok {
		current = &rec
	}

	next := fn(current)
	next.Key = key
	m.records[key] = next

	return next, nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.records, key)
	return nil
}

// Sweep finds candidates under the read lock and only takes the write lock
// for the deletions, re-checking each record since it may have been touched.
func (m *MemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	m.mu.RLock()
	var expired []string
	for key, rec := range m.records {
		if rec.Expired(now) {
			expired = append(expired, key)
		}
	}
	m.mu.RUnlock()

	if len(expired) == 0 {
		return 0, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for _, key := range expired {
		if rec, ok := m.records[key]; ok && rec.Expired(now) {
			delete(m.records, key)
			removed++
		}
	}

	return removed, nil
}

func (m *MemoryStore) Len(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records), nil
}
