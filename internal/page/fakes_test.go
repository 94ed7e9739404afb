package page

import (
	"context"
	"sync"

	"coursepage/site/internal/comments"
	"coursepage/site/internal/identity"
)

type fakeProvider struct {
	exchangeFn func(ctx context.Context, token string) (identity.Identity, error)
	acquireFn  func(ctx context.Context) (identity.Identity, error)

	mu        sync.Mutex
	listeners []func(*identity.Identity)
	released  int
	closed    bool
}

func (f *fakeProvider) ExchangeToken(ctx context.Context, token string) (identity.Identity, error) {
	if f.exchangeFn != nil {
		return f.exchangeFn(ctx, token)
	}
	return identity.Identity{}, nil
}

func (f *fakeProvider) AcquireAnonymous(ctx context.Context) (identity.Identity, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx)
	}
	return identity.Identity{}, nil
}

// OnIdentityChange keeps the callback even after unsubscribe so tests can
// simulate a provider that notifies late.
func (f *fakeProvider) OnIdentityChange(fn func(*identity.Identity)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listeners = append(f.listeners, fn)
	return func() {
		f.mu.Lock()
		f.released++
		f.mu.Unlock()
	}
}

func (f *fakeProvider) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *fakeProvider) emit(issued *identity.Identity) {
	f.mu.Lock()
	listeners := append([]func(*identity.Identity){}, f.listeners...)
	f.mu.Unlock()
	for _, fn := range listeners {
		fn(issued)
	}
}

func (f *fakeProvider) subscriptions() (registered, released int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners), f.released
}

type fakeSubscription struct {
	path       string
	onSnapshot func([]comments.Record)
	onError    func(error)
	released   bool
}

type fakeStore struct {
	appendFn func(ctx context.Context, path string, record comments.NewRecord) (string, error)

	mu       sync.Mutex
	subs     []*fakeSubscription
	appended []comments.NewRecord
}

func (f *fakeStore) SubscribeAll(_ context.Context, path string, onSnapshot func([]comments.Record), onError func(error)) func() {
	sub := &fakeSubscription{path: path, onSnapshot: onSnapshot, onError: onError}
	f.mu.Lock()
	f.subs = append(f.subs, sub)
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		sub.released = true
		f.mu.Unlock()
	}
}

func (f *fakeStore) Append(ctx context.Context, path string, record comments.NewRecord) (string, error) {
	f.mu.Lock()
	f.appended = append(f.appended, record)
	f.mu.Unlock()
	if f.appendFn != nil {
		return f.appendFn(ctx, path, record)
	}
	return "c1", nil
}

func (f *fakeStore) subscriptions() []*fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*fakeSubscription(nil), f.subs...)
}

func (f *fakeStore) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, sub := range f.subs {
		if !sub.released {
			n++
		}
	}
	return n
}

func (f *fakeStore) appends() []comments.NewRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]comments.NewRecord(nil), f.appended...)
}
