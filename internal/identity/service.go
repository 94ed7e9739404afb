package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/auth"
	"coursepage/site/internal/util"
)

// Service holds what every page's identity client shares: the token
// secret, the registry and the identity lifetime.
type Service struct {
	secret   []byte
	registry Registry
	ttl      time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(secret string, registry Registry, ttl time.Duration, logger zerolog.Logger) *Service {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		secret:   []byte(secret),
		registry: registry,
		ttl:      ttl,
		logger:   logger.With().Str("component", "identity").Logger(),
		now:      time.Now,
	}
}

// NewClient returns a fresh identity client scoped to one page instance.
func (s *Service) NewClient() *Client {
	return &Client{
		service:   s,
		listeners: make(map[int]*listener),
	}
}

// MintCustomToken signs a token that ExchangeToken accepts for uid.
func (s *Service) MintCustomToken(uid string, ttl time.Duration) (string, error) {
	uid = strings.TrimSpace(uid)
	if uid == "" {
		return "", fmt.Errorf("mint token: uid is required")
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	return auth.IssueToken(s.secret, auth.Claims{
		Sub:  uid,
		Kind: auth.KindCustom,
		JTI:  util.NewID("jti"),
		Exp:  s.now().Add(ttl).Unix(),
	})
}

func (s *Service) Ping(ctx context.Context) error {
	if s.registry == nil {
		return fmt.Errorf("identity registry not configured")
	}
	return s.registry.Ping(ctx)
}

func (s *Service) register(ctx context.Context, uid string, anonymous bool) (Identity, error) {
	if s.registry == nil {
		return Identity{}, fmt.Errorf("identity registry not configured")
	}
	now := s.now()
	record := Record{UID: uid, Anonymous: anonymous, CreatedAt: now}
	existing, err := s.registry.LookupIdentity(ctx, uid)
	switch {
	case err == nil:
		record.CreatedAt = existing.CreatedAt
	case !errors.Is(err, ErrNotFound):
		return Identity{}, fmt.Errorf("lookup identity: %w", err)
	}
	if err := s.registry.SaveIdentity(ctx, record, now.Add(s.ttl)); err != nil {
		return Identity{}, fmt.Errorf("save identity: %w", err)
	}
	return Identity{UID: uid, Anonymous: anonymous, IssuedAt: record.CreatedAt}, nil
}

var _ Provider = (*Client)(nil)

type listener struct {
	fn     func(*Identity)
	active atomic.Bool
}

// Client is one page's view of the identity provider. Once it holds an
// identity it keeps it for its whole lifetime.
type Client struct {
	service *Service

	mu           sync.Mutex
	current      *Identity
	listeners    map[int]*listener
	nextListener int
	closed       bool
}

func (c *Client) ExchangeToken(ctx context.Context, token string) (Identity, error) {
	if current, ok := c.Current(); ok {
		return current, nil
	}
	claims, err := auth.ParseToken(c.service.secret, token)
	if err != nil {
		return Identity{}, fmt.Errorf("exchange token: %w", err)
	}
	issued, err := c.service.register(ctx, claims.Sub, false)
	if err != nil {
		return Identity{}, err
	}
	return c.resolve(issued), nil
}

func (c *Client) AcquireAnonymous(ctx context.Context) (Identity, error) {
	if current, ok := c.Current(); ok {
		return current, nil
	}
	issued, err := c.service.register(ctx, util.NewID("anon"), true)
	if err != nil {
		return Identity{}, err
	}
	return c.resolve(issued), nil
}

func (c *Client) OnIdentityChange(fn func(*Identity)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return func() {}
	}
	entry := &listener{fn: fn}
	entry.active.Store(true)
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = entry

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.active.Store(false)
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Current returns the resolved identity, if any.
func (c *Client) Current() (Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return Identity{}, false
	}
	return *c.current, true
}

// Close drops every listener; later sign-ins emit nothing.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	for id, entry := range c.listeners {
		entry.active.Store(false)
		delete(c.listeners, id)
	}
}

// resolve stores issued unless another sign-in won the race, and emits a
// single change event for the winner.
func (c *Client) resolve(issued Identity) Identity {
	c.mu.Lock()
	if c.current != nil {
		current := *c.current
		c.mu.Unlock()
		return current
	}
	c.current = &issued
	targets := make([]*listener, 0, len(c.listeners))
	for _, entry := range c.listeners {
		targets = append(targets, entry)
	}
	c.mu.Unlock()

	c.service.logger.Debug().Str("uid", issued.UID).Bool("anonymous", issued.Anonymous).Msg("identity resolved")
	for _, entry := range targets {
		if !entry.active.Load() {
			continue
		}
		event := issued
		entry.fn(&event)
	}
	return issued
}
