// Package page is one browser load of the course page: identity bootstrap,
// the live comment feed, the comment composer and the editable panels.
// Nothing a page holds outlives it.
package page

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/comments"
	"coursepage/site/internal/identity"
	"coursepage/site/internal/observability"
	"coursepage/site/internal/panels"
)

type Deps struct {
	// Identity is owned by the page and closed on Unmount when it
	// implements Close.
	Identity     identity.Provider
	Comments     comments.Store
	AppID        string
	InitialToken string
	Logger       zerolog.Logger
}

type State struct {
	ID        string             `json:"id"`
	Version   uint64             `json:"version"`
	Session   Session            `json:"session"`
	Panels    []panels.Panel     `json:"panels"`
	Summary   panels.SummaryView `json:"summary"`
	Comments  []Comment          `json:"comments"`
	Draft     string             `json:"draft"`
	CanSubmit bool               `json:"canSubmit"`
	Stats     map[string]int     `json:"stats"`
}

type Page struct {
	id        string
	deps      Deps
	logger    zerolog.Logger
	createdAt time.Time

	board     *panels.Board
	composer  *Composer
	bootstrap *Bootstrap
	feed      *Feed

	mu          sync.Mutex
	mounted     bool
	closed      bool
	cancel      context.CancelFunc
	version     uint64
	watchers    map[int]chan struct{}
	nextWatcher int
}

func New(id string, deps Deps) *Page {
	logger := deps.Logger.With().Str("page", id).Logger()
	p := &Page{
		id:        id,
		deps:      deps,
		logger:    logger,
		createdAt: time.Now(),
		board:     panels.NewBoard(),
		composer:  &Composer{},
		watchers:  make(map[int]chan struct{}),
	}
	p.bootstrap = NewBootstrap(deps.Identity, deps.InitialToken, logger, p.sessionChanged)
	p.feed = NewFeed(deps.Comments, comments.CollectionPath(deps.AppID), logger, func([]Comment) { p.changed() })
	return p
}

func (p *Page) ID() string { return p.id }

func (p *Page) CreatedAt() time.Time { return p.createdAt }

// Mount starts identity acquisition. The comment subscription follows once
// the session is ready.
func (p *Page) Mount(ctx context.Context) {
	p.mu.Lock()
	if p.mounted || p.closed {
		p.mu.Unlock()
		return
	}
	p.mounted = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	observability.PageMounted()
	p.logger.Debug().Msg("page mounted")
	p.bootstrap.Start(ctx)
}

func (p *Page) sessionChanged(session Session) {
	if p.isClosed() {
		return
	}
	p.feed.Bind(session.Ready, p.deps.Comments)
	p.changed()
}

// Unmount releases both subscriptions. Later notifications change nothing.
func (p *Page) Unmount() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	mounted := p.mounted
	if p.cancel != nil {
		p.cancel()
	}
	for id, ch := range p.watchers {
		close(ch)
		delete(p.watchers, id)
	}
	p.mu.Unlock()

	p.bootstrap.Close()
	p.feed.Close()
	if closer, ok := p.deps.Identity.(interface{ Close() }); ok {
		closer.Close()
	}
	if mounted {
		observability.PageUnmounted()
	}
	p.logger.Debug().Msg("page unmounted")
}

func (p *Page) Closed() bool {
	return p.isClosed()
}

func (p *Page) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *Page) changed() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.version++
	for _, ch := range p.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Watch returns a channel that receives after each state change. Bursts
// coalesce into one receive. The channel closes on cancel or Unmount.
func (p *Page) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch, func() {}
	}
	id := p.nextWatcher
	p.nextWatcher++
	p.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			if existing, ok := p.watchers[id]; ok {
				close(existing)
				delete(p.watchers, id)
			}
		})
	}
}

func (p *Page) Session() Session {
	return p.bootstrap.Session()
}

func (p *Page) State() State {
	p.mu.Lock()
	version := p.version
	p.mu.Unlock()

	session := p.bootstrap.Session()
	return State{
		ID:        p.id,
		Version:   version,
		Session:   session,
		Panels:    p.board.Panels(),
		Summary:   p.board.SummaryView(),
		Comments:  p.feed.Comments(),
		Draft:     p.composer.Text(),
		CanSubmit: p.canSubmit(session),
		Stats:     p.board.Stats(),
	}
}

func (p *Page) canSubmit(session Session) bool {
	return session.Ready && session.Identity != "" && p.deps.Comments != nil && !p.composer.Blank()
}

func (p *Page) EditPanel(key, body string) error {
	if p.isClosed() {
		return ErrClosed
	}
	if err := p.board.Edit(key, body); err != nil {
		return err
	}
	p.changed()
	return nil
}

// ToggleSummary reports whether the summary is now in editing mode.
func (p *Page) ToggleSummary() (bool, error) {
	if p.isClosed() {
		return false, ErrClosed
	}
	editing := p.board.ToggleSummary()
	p.changed()
	return editing, nil
}

func (p *Page) SetDraft(text string) error {
	if p.isClosed() {
		return ErrClosed
	}
	p.composer.Set(text)
	p.changed()
	return nil
}

// Submit posts the draft. A rejected submit is not an error.
func (p *Page) Submit(ctx context.Context) (bool, error) {
	if p.isClosed() {
		return false, ErrClosed
	}
	posted, err := p.feed.Submit(ctx, p.composer, p.bootstrap.Session().Identity)
	if posted {
		p.changed()
	}
	return posted, err
}
