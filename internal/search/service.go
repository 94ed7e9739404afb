package search

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"coursepage/site/internal/comments"
)

// Service tries Meilisearch first and falls back to the fallback searcher.
type Service struct {
	meili    *Meili
	fallback Searcher
	logger   zerolog.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is
// not configured.
func NewService(meili *Meili, fallback Searcher, logger zerolog.Logger) *Service {
	return &Service{
		meili:    meili,
		fallback: fallback,
		logger:   logger.With().Str("component", "search").Logger(),
	}
}

func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		s.logger.Warn().Err(err).Msg("meilisearch error, using fallback")
	}

	if s.fallback == nil || !s.fallback.Healthy() {
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	results, total, err := s.fallback.Search(ctx, q)
	if err != nil {
		s.logger.Error().Err(err).Msg("fallback search failed")
		return Response{Results: []Result{}, Total: 0, Query: q.Text}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text}
}

// IndexComment pushes a comment to Meilisearch without waiting.
func (s *Service) IndexComment(record CommentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexComment(record); err != nil {
			s.logger.Warn().Err(err).Str("comment", record.ID).Msg("index comment")
		}
	}()
}

// ReindexFromPG loads every comment from Postgres into Meilisearch.
func (s *Service) ReindexFromPG(ctx context.Context, pg *PgFTS) {
	if s.meili == nil || !s.meili.Healthy() || pg == nil {
		return
	}
	records, err := pg.LoadAllRecords(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("reindex load failed")
		return
	}
	if err := s.meili.IndexComments(records); err != nil {
		s.logger.Error().Err(err).Int("comments", len(records)).Msg("reindex comments")
		return
	}
	s.logger.Info().Int("comments", len(records)).Msg("comments reindexed")
}

func (s *Service) Close() {
	if s.meili != nil {
		s.meili.Close()
	}
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}

// IndexingStore indexes every comment its Store accepts.
type IndexingStore struct {
	comments.Store
	index *Service
	now   func() time.Time
}

func NewIndexingStore(store comments.Store, index *Service) *IndexingStore {
	return &IndexingStore{Store: store, index: index, now: time.Now}
}

func (s *IndexingStore) Append(ctx context.Context, path string, record comments.NewRecord) (string, error) {
	id, err := s.Store.Append(ctx, path, record)
	if err != nil {
		return "", err
	}
	normalized, err := record.Normalize()
	if err != nil {
		return id, nil
	}
	createdAt := s.now()
	if !normalized.CreatedAt.IsServer() {
		createdAt = normalized.CreatedAt.Time()
	}
	s.index.IndexComment(CommentRecord{
		ID:         id,
		Path:       path,
		AuthorID:   normalized.AuthorID,
		AuthorName: normalized.AuthorName,
		Text:       normalized.Text,
		CreatedAt:  createdAt.Unix(),
	})
	return id, nil
}

// Ping forwards to the wrapped store when it can be pinged.
func (s *IndexingStore) Ping(ctx context.Context) error {
	if pinger, ok := s.Store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}
