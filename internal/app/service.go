package app

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/comments"
	"coursepage/site/internal/config"
	"coursepage/site/internal/export"
	"coursepage/site/internal/identity"
	"coursepage/site/internal/markup"
	"coursepage/site/internal/page"
	"coursepage/site/internal/search"
	"coursepage/site/internal/util"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Config   config.Config
	Identity *identity.Service
	Comments comments.Store
	Search   *search.Service
	Export   *export.Service
	// Purge runs on every sweep when set.
	Purge  func(ctx context.Context) (int64, error)
	Logger zerolog.Logger
}

type pageEntry struct {
	page     *page.Page
	lastSeen time.Time
	streams  int
}

// Service owns the live page instances of the site. Pages are created on
// every load of "/" and unmounted after PageIdleTTL without requests or
// open event streams.
type Service struct {
	cfg      config.Config
	identity *identity.Service
	comments comments.Store
	search   *search.Service
	export   *export.Service
	purge    func(ctx context.Context) (int64, error)
	logger   zerolog.Logger
	now      func() time.Time

	baseCtx    context.Context
	cancelBase context.CancelFunc

	mu     sync.Mutex
	pages  map[string]*pageEntry
	closed bool
	done   chan struct{}
}

func NewService(opts Options) *Service {
	baseCtx, cancel := context.WithCancel(context.Background())
	if opts.Config.AppID == "" {
		opts.Config.AppID = config.DefaultAppID
	}
	return &Service{
		cfg:        opts.Config,
		identity:   opts.Identity,
		comments:   opts.Comments,
		search:     opts.Search,
		export:     opts.Export,
		purge:      opts.Purge,
		logger:     opts.Logger.With().Str("component", "app").Logger(),
		now:        time.Now,
		baseCtx:    baseCtx,
		cancelBase: cancel,
		pages:      make(map[string]*pageEntry),
		done:       make(chan struct{}),
	}
}

// Start runs the idle page sweeper until ctx ends or Close is called.
func (s *Service) Start(ctx context.Context) {
	interval := s.cfg.PageIdleTTL / 4
	if interval < time.Second {
		interval = time.Second
	}
	if interval > time.Minute {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.done:
				return
			case <-ticker.C:
				s.Sweep(ctx)
			}
		}
	}()
}

// MountPage creates and mounts a fresh page instance. Nothing from earlier
// loads carries over.
func (s *Service) MountPage() (*page.Page, error) {
	id := util.NewID("page")

	var provider identity.Provider
	if s.identity != nil {
		provider = s.identity.NewClient()
	}
	p := page.New(id, page.Deps{
		Identity:     provider,
		Comments:     s.comments,
		AppID:        s.cfg.AppID,
		InitialToken: s.cfg.InitialAuthToken,
		Logger:       s.logger,
	})

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, domainError(http.StatusServiceUnavailable, "SHUTTING_DOWN", "Server is shutting down", nil)
	}
	s.pages[id] = &pageEntry{page: p, lastSeen: s.now()}
	s.mu.Unlock()

	p.Mount(s.baseCtx)
	return p, nil
}

// Page returns a live page and marks it as recently used.
func (s *Service) Page(id string) (*page.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pages[id]
	if !ok || entry.page.Closed() {
		return nil, pageNotFound(id)
	}
	entry.lastSeen = s.now()
	return entry.page, nil
}

// OpenStream pins a page while an event stream is attached. The returned
// release must be called once the stream ends.
func (s *Service) OpenStream(id string) (*page.Page, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.pages[id]
	if !ok || entry.page.Closed() {
		return nil, nil, pageNotFound(id)
	}
	entry.streams++
	entry.lastSeen = s.now()

	var once sync.Once
	return entry.page, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			entry.streams--
			entry.lastSeen = s.now()
		})
	}, nil
}

func (s *Service) UnmountPage(id string) error {
	s.mu.Lock()
	entry, ok := s.pages[id]
	delete(s.pages, id)
	s.mu.Unlock()
	if !ok {
		return pageNotFound(id)
	}
	entry.page.Unmount()
	return nil
}

// PageCount reports the number of live pages.
func (s *Service) PageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}

// Sweep unmounts pages idle for longer than PageIdleTTL and returns how
// many it removed.
func (s *Service) Sweep(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.PageIdleTTL)

	s.mu.Lock()
	var idle []*page.Page
	for id, entry := range s.pages {
		if entry.streams > 0 || entry.lastSeen.After(cutoff) {
			continue
		}
		idle = append(idle, entry.page)
		delete(s.pages, id)
	}
	s.mu.Unlock()

	for _, p := range idle {
		p.Unmount()
	}
	if len(idle) > 0 {
		s.logger.Info().Int("pages", len(idle)).Msg("swept idle pages")
	}

	if s.purge != nil {
		purged, err := s.purge(ctx)
		if err != nil {
			s.logger.Warn().Err(err).Msg("purge expired identities")
		} else if purged > 0 {
			s.logger.Debug().Int64("identities", purged).Msg("purged expired identities")
		}
	}
	return len(idle)
}

// Checks pings every backing dependency. A nil error means healthy.
func (s *Service) Checks(ctx context.Context) map[string]error {
	checks := make(map[string]error)
	if pinger, ok := s.comments.(Pinger); ok {
		checks["comments"] = pinger.Ping(ctx)
	}
	if s.identity != nil {
		checks["identity"] = s.identity.Ping(ctx)
	}
	return checks
}

func (s *Service) Format(text string) []markup.Segment {
	return markup.Segments(text)
}

func (s *Service) SearchComments(ctx context.Context, text string, limit, offset int) (search.Response, error) {
	if s.search == nil {
		return search.Response{}, domainError(http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Search is not configured", nil)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return search.Response{Results: []search.Result{}, Query: text}, nil
	}
	return s.search.Search(ctx, search.Query{
		Text:   text,
		Path:   comments.CollectionPath(s.cfg.AppID),
		Limit:  limit,
		Offset: offset,
	}), nil
}

func (s *Service) Export(ctx context.Context, id string, rawFormat string) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, err
	}
	p, err := s.Page(id)
	if err != nil {
		return nil, err
	}
	return s.export.Export(ctx, p.State(), format)
}

// Close unmounts every page and stops the sweeper.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	pages := make([]*page.Page, 0, len(s.pages))
	for id, entry := range s.pages {
		pages = append(pages, entry.page)
		delete(s.pages, id)
	}
	s.mu.Unlock()

	for _, p := range pages {
		p.Unmount()
	}
	s.cancelBase()
}

func pageNotFound(id string) *DomainError {
	return domainError(http.StatusNotFound, "PAGE_NOT_FOUND", "Page not found", map[string]any{"pageId": id})
}
