package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Listen holds a dedicated connection on NotifyChannel and refreshes the
// subscribers of each notified collection. It returns nil when ctx ends.
// A lost connection fails every open subscription.
func (s *PostgresStore) Listen(ctx context.Context) error {
	if s.databaseURL == "" {
		return fmt.Errorf("listen: database url is empty")
	}
	conn, err := pgx.Connect(ctx, s.databaseURL)
	if err != nil {
		return fmt.Errorf("connect listener: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{NotifyChannel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}

	s.listening.Store(true)
	defer s.listening.Store(false)
	s.logger.Info().Str("channel", NotifyChannel).Msg("comment listener started")

	// Writes may have landed while nobody was listening.
	for _, path := range s.paths() {
		s.refresh(ctx, path)
	}

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.failAll(fmt.Errorf("comment listener: %w", err))
			return fmt.Errorf("wait for notification: %w", err)
		}
		s.refresh(ctx, notification.Payload)
	}
}

// RunListener keeps Listen running until ctx ends, waiting retry between
// attempts.
func (s *PostgresStore) RunListener(ctx context.Context, retry time.Duration) {
	for {
		err := s.Listen(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn().Err(err).Dur("retry", retry).Msg("comment listener stopped")
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}
