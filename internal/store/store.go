package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Store is the Redis-backed cache used for poll results and run summaries.
type Store interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

// ResultKey is the cache key of one instrument's raw records. Every request
// parameter that changes what the backend quotes is part of the key.
func ResultKey(term, fingerprint string, productType, scale int, baseID string) string {
	return fmt.Sprintf("askprice:result:%s:%s:%d:%d:%s", term, fingerprint, productType, scale, baseID)
}

// RunKey is the cache key of a run summary.
func RunKey(runID string) string {
	return "askprice:run:" + runID
}

type RedisStore struct {
	redis  *redis.Client
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(addr string, db int, password string, logger *zap.Logger) (*RedisStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisStore{redis: rdb, logger: logger}, nil
}

func (s *RedisStore) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Warn("store.redis.set_failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// GetJSON decodes key into dest. A missing key is (false, nil).
func (s *RedisStore) GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	data, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *RedisStore) HealthCheck(ctx context.Context) error {
	if s.redis == nil {
		return fmt.Errorf("redis not initialized")
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	if s.redis != nil {
		return s.redis.Close()
	}
	return nil
}
