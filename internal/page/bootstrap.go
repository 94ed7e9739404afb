package page

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"coursepage/site/internal/identity"
)

// Session is the page's identity state. Identity goes from empty to set
// at most once and Ready becomes true exactly once.
type Session struct {
	Identity string `json:"identity,omitempty"`
	Ready    bool   `json:"ready"`
}

// Bootstrap acquires the page identity. Failures never block the page:
// they leave the session ready with no identity.
type Bootstrap struct {
	provider     identity.Provider
	initialToken string
	logger       zerolog.Logger
	onChange     func(Session)
	newUID       func() string

	mu          sync.Mutex
	session     Session
	started     bool
	closed      bool
	unsubscribe func()
}

func NewBootstrap(provider identity.Provider, initialToken string, logger zerolog.Logger, onChange func(Session)) *Bootstrap {
	return &Bootstrap{
		provider:     provider,
		initialToken: initialToken,
		logger:       logger,
		onChange:     onChange,
		newUID:       uuid.NewString,
	}
}

// Start subscribes to identity changes and signs in asynchronously.
func (b *Bootstrap) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started || b.closed {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	if b.provider == nil {
		b.logger.Error().Msg("identity provider not configured; comments disabled")
		b.update("")
		return
	}

	unsubscribe := b.provider.OnIdentityChange(b.handleChange)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		unsubscribe()
		return
	}
	b.unsubscribe = unsubscribe
	b.mu.Unlock()

	go b.signIn(ctx)
}

func (b *Bootstrap) signIn(ctx context.Context) {
	var err error
	if b.initialToken != "" {
		_, err = b.provider.ExchangeToken(ctx, b.initialToken)
	} else {
		_, err = b.provider.AcquireAnonymous(ctx)
	}
	if err != nil {
		b.logger.Error().Err(err).Bool("custom_token", b.initialToken != "").Msg("identity acquisition failed")
		b.update("")
	}
}

func (b *Bootstrap) handleChange(issued *identity.Identity) {
	uid := ""
	if issued != nil {
		uid = issued.UID
	}
	if uid == "" {
		uid = b.newUID()
	}
	b.update(uid)
}

// update records uid if none is set yet and marks the session ready.
func (b *Bootstrap) update(uid string) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	changed := false
	if b.session.Identity == "" && uid != "" {
		b.session.Identity = uid
		changed = true
	}
	if !b.session.Ready {
		b.session.Ready = true
		changed = true
	}
	session := b.session
	b.mu.Unlock()

	if changed && b.onChange != nil {
		b.onChange(session)
	}
}

func (b *Bootstrap) Session() Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session
}

// Close releases the identity subscription. No updates follow.
func (b *Bootstrap) Close() {
	b.mu.Lock()
	b.closed = true
	unsubscribe := b.unsubscribe
	b.unsubscribe = nil
	b.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
