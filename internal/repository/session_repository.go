package repository

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examsecure/internal/config"
)

// SessionRepository stores the single active token id per user in Redis.
type SessionRepository struct {
	rdb *redis.Client
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(rdb *redis.Client) *SessionRepository {
	return &SessionRepository{rdb: rdb}
}

// Save records jti as the user's active session, replacing any previous one.
func (r *SessionRepository) Save(ctx context.Context, userID int, jti string, ttl time.Duration) error {
	return r.rdb.Set(ctx, config.CacheKey.UserSessionKey(userID), jti, ttl).Err()
}

// Current returns the user's active token id, or "" when there is none.
func (r *SessionRepository) Current(ctx context.Context, userID int) (string, error) {
	jti, err := r.rdb.Get(ctx, config.CacheKey.UserSessionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return jti, err
}

// Clear removes the user's active session.
func (r *SessionRepository) Clear(ctx context.Context, userID int) error {
	return r.rdb.Del(ctx, config.CacheKey.UserSessionKey(userID)).Err()
}
