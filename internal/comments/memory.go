package comments

import (
	"context"
	"sync"
	"time"

	"coursepage/site/internal/util"
)

// MemoryStore keeps collections in process. A write carrying the server
// timestamp sentinel is published twice: once pending, then again once
// acknowledged with the store clock.
type MemoryStore struct {
	mu          sync.Mutex
	collections map[string][]Record
	subs        map[string]map[int]*Subscription
	nextSub     int

	now      func() time.Time
	ackDelay time.Duration
	newID    func() string
}

type MemoryOption func(*MemoryStore)

// WithClock sets the clock used to resolve server timestamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// WithAckDelay delays acknowledgement of sentinel timestamps.
func WithAckDelay(delay time.Duration) MemoryOption {
	return func(m *MemoryStore) { m.ackDelay = delay }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	m := &MemoryStore{
		collections: make(map[string][]Record),
		subs:        make(map[string]map[int]*Subscription),
		now:         time.Now,
		newID:       util.NewAutoID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) SubscribeAll(ctx context.Context, path string, onSnapshot func([]Record), onError func(error)) func() {
	sub := NewSubscription(onSnapshot, onError)

	m.mu.Lock()
	id := m.nextSub
	m.nextSub++
	if m.subs[path] == nil {
		m.subs[path] = make(map[int]*Subscription)
	}
	m.subs[path][id] = sub
	sub.Push(m.collections[path])
	m.mu.Unlock()

	go sub.Run()

	unsubscribe := func() {
		sub.Close()
		m.mu.Lock()
		delete(m.subs[path], id)
		if len(m.subs[path]) == 0 {
			delete(m.subs, path)
		}
		m.mu.Unlock()
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}
}

func (m *MemoryStore) Append(ctx context.Context, path string, record NewRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	record, err := record.Normalize()
	if err != nil {
		return "", err
	}

	stored := Record{
		ID:         m.newID(),
		AuthorID:   record.AuthorID,
		AuthorName: record.AuthorName,
		Text:       record.Text,
	}
	if !record.CreatedAt.IsServer() {
		at := record.CreatedAt.Time()
		stored.CreatedAt = &at
	}

	m.mu.Lock()
	m.collections[path] = append(m.collections[path], stored)
	m.publishLocked(path)
	if !stored.Pending() {
		m.mu.Unlock()
		return stored.ID, nil
	}
	if m.ackDelay <= 0 {
		m.ackLocked(path, stored.ID)
		m.mu.Unlock()
		return stored.ID, nil
	}
	m.mu.Unlock()

	time.AfterFunc(m.ackDelay, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.ackLocked(path, stored.ID)
	})
	return stored.ID, nil
}

// Records returns a copy of the collection at path in insertion order.
func (m *MemoryStore) Records(path string) []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneRecords(m.collections[path])
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) ackLocked(path, id string) {
	records := m.collections[path]
	for i := range records {
		if records[i].ID != id || !records[i].Pending() {
			continue
		}
		at := m.now()
		records[i].CreatedAt = &at
		m.publishLocked(path)
		return
	}
}

func (m *MemoryStore) publishLocked(path string) {
	for id, sub := range m.subs[path] {
		if sub.Closed() {
			delete(m.subs[path], id)
			continue
		}
		sub.Push(m.collections[path])
	}
}
