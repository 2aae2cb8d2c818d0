// Package session is the explicit session-store abstraction: opaque tokens
// with a TTL kept in redis, so process restarts and horizontal scaling do not
// drop logins the way an in-process token registry would.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Store issues and resolves opaque session tokens.
type Store struct {
	Redis *redis.Client
	TTL   time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{Redis: rdb, TTL: ttl}
}

func key(token string) string { return "session:" + token }

// Create issues a new token for a person.
func (s *Store) Create(ctx context.Context, personID string) (string, error) {
	token := uuid.New().String()
	if err := s.Redis.Set(ctx, key(token), personID, s.TTL).Err(); err != nil {
		return "", fmt.Errorf("failed to store session: %w", err)
	}
	return token, nil
}

// Resolve returns the person behind a token, refreshing its TTL. Unknown or
// expired tokens return empty with no error.
func (s *Store) Resolve(ctx context.Context, token string) (string, error) {
	personID, err := s.Redis.Get(ctx, key(token)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve session: %w", err)
	}
	_ = s.Redis.Expire(ctx, key(token), s.TTL).Err()
	return personID, nil
}

// Revoke deletes a token.
func (s *Store) Revoke(ctx context.Context, token string) error {
	if err := s.Redis.Del(ctx, key(token)).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}
