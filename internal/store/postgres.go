package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"coursepage/site/internal/comments"
	"coursepage/site/internal/identity"
)

// PostgresStore serves the comment collections and the identity registry.
// Subscribers are refreshed from LISTEN/NOTIFY while Listen runs, and
// directly after each local Append otherwise.
type PostgresStore struct {
	db          *sql.DB
	databaseURL string
	logger      zerolog.Logger

	// refreshMu keeps snapshot pushes in query order.
	refreshMu sync.Mutex
	mu        sync.Mutex
	subs      map[string]map[int]*comments.Subscription
	nextSub   int
	listening atomic.Bool
}

var (
	_ comments.Store    = (*PostgresStore)(nil)
	_ identity.Registry = (*PostgresStore)(nil)
)

func NewPostgresStore(db *sql.DB, databaseURL string, logger zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:          db,
		databaseURL: databaseURL,
		logger:      logger.With().Str("component", "store").Logger(),
		subs:        make(map[string]map[int]*comments.Subscription),
	}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) ListComments(ctx context.Context, path string) ([]comments.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, collection_path, author_id, author_name, body, created_at
		FROM comments
		WHERE collection_path = $1
		ORDER BY created_at ASC, id ASC
	`, path)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	records := make([]comments.Record, 0)
	for rows.Next() {
		var row CommentRow
		if err := rows.Scan(&row.ID, &row.CollectionPath, &row.AuthorID, &row.AuthorName, &row.Body, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		records = append(records, row.Record())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Append(ctx context.Context, path string, record comments.NewRecord) (string, error) {
	record, err := record.Normalize()
	if err != nil {
		return "", err
	}

	var createdAt *time.Time
	if !record.CreatedAt.IsServer() {
		at := record.CreatedAt.Time()
		createdAt = &at
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO comments (id, collection_path, author_id, author_name, body, created_at)
		VALUES ($1, $2, $3, $4, $5, COALESCE($6, NOW()))
	`, id, path, record.AuthorID, record.AuthorName, record.Text, createdAt)
	if err != nil {
		return "", fmt.Errorf("insert comment: %w", err)
	}

	if !s.listening.Load() {
		s.refresh(ctx, path)
	}
	return id, nil
}

func (s *PostgresStore) SubscribeAll(ctx context.Context, path string, onSnapshot func([]comments.Record), onError func(error)) func() {
	sub := comments.NewSubscription(onSnapshot, onError)

	s.refreshMu.Lock()
	records, err := s.ListComments(ctx, path)
	if err != nil {
		s.refreshMu.Unlock()
		sub.Fail(err)
		go sub.Run()
		return sub.Close
	}
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	if s.subs[path] == nil {
		s.subs[path] = make(map[int]*comments.Subscription)
	}
	s.subs[path][id] = sub
	s.mu.Unlock()
	sub.Push(records)
	s.refreshMu.Unlock()

	go sub.Run()

	unsubscribe := func() {
		sub.Close()
		s.mu.Lock()
		delete(s.subs[path], id)
		if len(s.subs[path]) == 0 {
			delete(s.subs, path)
		}
		s.mu.Unlock()
	}
	stop := context.AfterFunc(ctx, unsubscribe)
	return func() {
		stop()
		unsubscribe()
	}
}

func (s *PostgresStore) subscribers(path string) []*comments.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*comments.Subscription, 0, len(s.subs[path]))
	for _, sub := range s.subs[path] {
		if !sub.Closed() {
			out = append(out, sub)
		}
	}
	return out
}

func (s *PostgresStore) refresh(ctx context.Context, path string) {
	s.refreshMu.Lock()
	defer s.refreshMu.Unlock()

	subs := s.subscribers(path)
	if len(subs) == 0 {
		return
	}
	records, err := s.ListComments(ctx, path)
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("comment refresh failed")
		return
	}
	for _, sub := range subs {
		sub.Push(records)
	}
}

func (s *PostgresStore) paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.subs))
	for path := range s.subs {
		paths = append(paths, path)
	}
	return paths
}

// failAll ends every subscription with err.
func (s *PostgresStore) failAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for path, subs := range s.subs {
		for _, sub := range subs {
			sub.Fail(err)
		}
		delete(s.subs, path)
	}
}

func (s *PostgresStore) SaveIdentity(ctx context.Context, record identity.Record, expiresAt time.Time) error {
	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO identities (uid, anonymous, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (uid) DO UPDATE SET expires_at = EXCLUDED.expires_at
	`, record.UID, record.Anonymous, createdAt, expiresAt)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupIdentity(ctx context.Context, uid string) (identity.Record, error) {
	var row IdentityRow
	err := s.db.QueryRowContext(ctx, `
		SELECT uid, anonymous, created_at, expires_at
		FROM identities
		WHERE uid = $1 AND expires_at > NOW()
	`, uid).Scan(&row.UID, &row.Anonymous, &row.CreatedAt, &row.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Record{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Record{}, fmt.Errorf("lookup identity: %w", err)
	}
	return identity.Record{UID: row.UID, Anonymous: row.Anonymous, CreatedAt: row.CreatedAt}, nil
}

// PurgeExpiredIdentities deletes identities past their expiry.
func (s *PostgresStore) PurgeExpiredIdentities(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, fmt.Errorf("purge identities: %w", err)
	}
	return res.RowsAffected()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
