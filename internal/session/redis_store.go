// Package session provides the Redis backend for issued page identities.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"coursepage/site/internal/identity"
)

const defaultIdentityTTL = 24 * time.Hour

// RedisStore implements identity.Registry using Redis keys with TTLs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ identity.Registry = (*RedisStore)(nil)

// NewRedisStore creates a new Redis-backed identity registry
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "identity:",
	}
}

func (s *RedisStore) key(uid string) string {
	return s.prefix + uid
}

// SaveIdentity stores an identity record until expiresAt. Saving an
// existing UID refreshes its TTL.
func (s *RedisStore) SaveIdentity(ctx context.Context, record identity.Record, expiresAt time.Time) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		ttl = defaultIdentityTTL
	}

	if err := s.client.Set(ctx, s.key(record.UID), payload, ttl).Err(); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// LookupIdentity returns identity.ErrNotFound for unknown or expired UIDs.
func (s *RedisStore) LookupIdentity(ctx context.Context, uid string) (identity.Record, error) {
	raw, err := s.client.Get(ctx, s.key(uid)).Result()
	if errors.Is(err, redis.Nil) {
		return identity.Record{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Record{}, fmt.Errorf("lookup identity: %w", err)
	}

	var record identity.Record
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return identity.Record{}, fmt.Errorf("unmarshal identity: %w", err)
	}
	return record, nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
