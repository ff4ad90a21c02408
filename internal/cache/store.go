package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/metrics"
)

// Store is a Redis-backed JSON key/value cache. Every operation is
// best-effort: failures are logged and reported as a miss or a false return,
// never as an error. The underlying computation must not depend on the cache.
type Store struct {
	client *redis.Client
	logger *zap.Logger
	ttl    time.Duration
}

// New connects to Redis and verifies the connection with a short ping.
func New(addr, password string, db int, defaultTTL time.Duration, logger *zap.Logger) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client, logger: logger, ttl: defaultTTL}, nil
}

// NewWithClient wraps an existing Redis client. Used by tests with miniredis.
func NewWithClient(client *redis.Client, defaultTTL time.Duration, logger *zap.Logger) *Store {
	return &Store{client: client, logger: logger, ttl: defaultTTL}
}

// Set marshals value to JSON and stores it under key with the given TTL
// (zero means the store default). Returns false on any failure.
func (s *Store) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Error("Cache marshal failed", zap.String("key", key), zap.Error(err))
		metrics.CacheErrors.Inc()
		return false
	}
	if ttl <= 0 {
		ttl = s.ttl
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.logger.Error("Cache write failed", zap.String("key", key), zap.Error(err))
		metrics.CacheErrors.Inc()
		return false
	}
	return true
}

// GetJSON loads the value stored under key into dest. Returns false when the
// key is absent or on any failure; dest is untouched in that case.
func (s *Store) GetJSON(ctx context.Context, key string, dest interface{}) bool {
	data, err := s.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		s.logger.Error("Cache read failed", zap.String("key", key), zap.Error(err))
		metrics.CacheErrors.Inc()
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		s.logger.Error("Cache unmarshal failed", zap.String("key", key), zap.Error(err))
		metrics.CacheErrors.Inc()
		return false
	}
	return true
}

// Delete removes key. Failures are logged and ignored.
func (s *Store) Delete(ctx context.Context, key string) {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.logger.Error("Cache delete failed", zap.String("key", key), zap.Error(err))
		metrics.CacheErrors.Inc()
	}
}

// Close releases the Redis connection.
func (s *Store) Close() error {
	return s.client.Close()
}
