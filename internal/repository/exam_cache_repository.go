package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examsecure/internal/config"
	"github.com/stemsi/examsecure/internal/model"
)

// ErrCacheMiss is returned when no payload is cached for a join code.
var ErrCacheMiss = errors.New("exam payload not cached")

// ExamCacheRepository keeps the student-facing exam payload in Redis, keyed by join code.
type ExamCacheRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewExamCacheRepository creates a new ExamCacheRepository.
func NewExamCacheRepository(rdb *redis.Client, ttl time.Duration) *ExamCacheRepository {
	return &ExamCacheRepository{rdb: rdb, ttl: ttl}
}

// Get returns the cached payload for code.
func (r *ExamCacheRepository) Get(ctx context.Context, code string) (*model.ExamPayload, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.ExamPayloadKey(code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get payload: %w", err)
	}

	var payload model.ExamPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return &payload, nil
}

// Set caches payload under its join code.
func (r *ExamCacheRepository) Set(ctx context.Context, payload *model.ExamPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return r.rdb.Set(ctx, config.CacheKey.ExamPayloadKey(payload.ExamCode), data, r.ttl).Err()
}

// Invalidate drops the cached payload for code.
func (r *ExamCacheRepository) Invalidate(ctx context.Context, code string) error {
	return r.rdb.Del(ctx, config.CacheKey.ExamPayloadKey(code)).Err()
}
