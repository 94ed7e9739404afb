package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/auth"
)

type fakeRegistry struct {
	saveFn   func(context.Context, Record, time.Time) error
	lookupFn func(context.Context, string) (Record, error)
}

func (f *fakeRegistry) SaveIdentity(ctx context.Context, record Record, expiresAt time.Time) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, record, expiresAt)
	}
	return nil
}

func (f *fakeRegistry) LookupIdentity(ctx context.Context, uid string) (Record, error) {
	if f.lookupFn != nil {
		return f.lookupFn(ctx, uid)
	}
	return Record{}, ErrNotFound
}

func (f *fakeRegistry) Ping(context.Context) error { return nil }

func newTestService(registry Registry) *Service {
	return NewService("test-secret", registry, time.Hour, zerolog.Nop())
}

func TestAcquireAnonymousEmitsOneEvent(t *testing.T) {
	svc := newTestService(NewMemoryRegistry())
	client := svc.NewClient()

	var mu sync.Mutex
	var events []*Identity
	unsubscribe := client.OnIdentityChange(func(id *Identity) {
		mu.Lock()
		events = append(events, id)
		mu.Unlock()
	})
	defer unsubscribe()

	first, err := client.AcquireAnonymous(context.Background())
	if err != nil {
		t.Fatalf("AcquireAnonymous() error = %v", err)
	}
	if !first.Anonymous || !strings.HasPrefix(first.UID, "anon_") {
		t.Fatalf("unexpected identity: %+v", first)
	}

	second, err := client.AcquireAnonymous(context.Background())
	if err != nil {
		t.Fatalf("second AcquireAnonymous() error = %v", err)
	}
	if second.UID != first.UID {
		t.Fatalf("identity reassigned: %q -> %q", first.UID, second.UID)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 || events[0] == nil || events[0].UID != first.UID {
		t.Fatalf("expected exactly one event for %q, got %+v", first.UID, events)
	}
}

func TestExchangeTokenUsesTokenSubject(t *testing.T) {
	registry := NewMemoryRegistry()
	svc := newTestService(registry)
	token, err := svc.MintCustomToken("ri", time.Hour)
	if err != nil {
		t.Fatalf("MintCustomToken() error = %v", err)
	}

	client := svc.NewClient()
	got, err := client.ExchangeToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ExchangeToken() error = %v", err)
	}
	if got.UID != "ri" || got.Anonymous {
		t.Fatalf("unexpected identity: %+v", got)
	}
	if _, err := registry.LookupIdentity(context.Background(), "ri"); err != nil {
		t.Fatalf("expected identity to be registered: %v", err)
	}
}

func TestExchangeTokenKeepsOriginalIssueTime(t *testing.T) {
	issued := time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)
	var saved Record
	svc := newTestService(&fakeRegistry{
		lookupFn: func(_ context.Context, uid string) (Record, error) {
			return Record{UID: uid, CreatedAt: issued}, nil
		},
		saveFn: func(_ context.Context, record Record, _ time.Time) error {
			saved = record
			return nil
		},
	})
	token, err := svc.MintCustomToken("ri", time.Hour)
	if err != nil {
		t.Fatalf("MintCustomToken() error = %v", err)
	}
	got, err := svc.NewClient().ExchangeToken(context.Background(), token)
	if err != nil {
		t.Fatalf("ExchangeToken() error = %v", err)
	}
	if !got.IssuedAt.Equal(issued) || !saved.CreatedAt.Equal(issued) {
		t.Fatalf("expected issue time %s, got identity=%s saved=%s", issued, got.IssuedAt, saved.CreatedAt)
	}
}

func TestExchangeTokenRejectsBadToken(t *testing.T) {
	client := newTestService(NewMemoryRegistry()).NewClient()
	called := false
	client.OnIdentityChange(func(*Identity) { called = true })

	_, err := client.ExchangeToken(context.Background(), "not-a-token")
	if !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if called {
		t.Fatal("failed exchange must not emit a change event")
	}
	if _, ok := client.Current(); ok {
		t.Fatal("failed exchange must leave identity absent")
	}
}

func TestRegistryFailureSurfacesError(t *testing.T) {
	svc := newTestService(&fakeRegistry{
		saveFn: func(context.Context, Record, time.Time) error { return errors.New("redis down") },
	})
	if _, err := svc.NewClient().AcquireAnonymous(context.Background()); err == nil {
		t.Fatal("expected registry failure to surface")
	}
}

func TestUnsubscribeAndCloseStopEvents(t *testing.T) {
	svc := newTestService(NewMemoryRegistry())

	client := svc.NewClient()
	calls := 0
	unsubscribe := client.OnIdentityChange(func(*Identity) { calls++ })
	unsubscribe()
	unsubscribe()
	if _, err := client.AcquireAnonymous(context.Background()); err != nil {
		t.Fatalf("AcquireAnonymous() error = %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no events after unsubscribe, got %d", calls)
	}

	closed := svc.NewClient()
	closed.OnIdentityChange(func(*Identity) { calls++ })
	closed.Close()
	closed.OnIdentityChange(func(*Identity) { calls++ })
	if _, err := closed.AcquireAnonymous(context.Background()); err != nil {
		t.Fatalf("AcquireAnonymous() error = %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no events after close, got %d", calls)
	}
}

func TestMemoryRegistryExpires(t *testing.T) {
	registry := NewMemoryRegistry()
	now := time.Now()
	registry.now = func() time.Time { return now }
	if err := registry.SaveIdentity(context.Background(), Record{UID: "u1"}, now.Add(time.Minute)); err != nil {
		t.Fatalf("SaveIdentity() error = %v", err)
	}
	if _, err := registry.LookupIdentity(context.Background(), "u1"); err != nil {
		t.Fatalf("LookupIdentity() error = %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := registry.LookupIdentity(context.Background(), "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}
}
