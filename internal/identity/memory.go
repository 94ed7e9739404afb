package identity

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry keeps identities in process. Used in memory mode and tests.
type MemoryRegistry struct {
	mu      sync.Mutex
	records map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	record    Record
	expiresAt time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		records: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (m *MemoryRegistry) SaveIdentity(_ context.Context, record Record, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[record.UID] = memoryEntry{record: record, expiresAt: expiresAt}
	return nil
}

func (m *MemoryRegistry) LookupIdentity(_ context.Context, uid string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.records[uid]
	if !ok {
		return Record{}, ErrNotFound
	}
	if !entry.expiresAt.IsZero() && !m.now().Before(entry.expiresAt) {
		delete(m.records, uid)
		return Record{}, ErrNotFound
	}
	return entry.record, nil
}

func (m *MemoryRegistry) Ping(context.Context) error { return nil }
