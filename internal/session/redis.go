package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"turnstileguard/internal/gate"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements gate.Store using Redis
type RedisStore struct {
	client *redis.Client
	hits   atomic.Int64
	misses atomic.Int64
}

// RedisStoreConfig represents Redis store configuration
type RedisStoreConfig struct {
	Address      string `yaml:"address" default:"redis://localhost:6379"`
	Password     string `yaml:"password"`
	DB           int    `yaml:"db" default:"0"`
	MaxRetries   int    `yaml:"max_retries" default:"3"`
	PoolSize     int    `yaml:"pool_size" default:"10"`
	MinIdleConns int    `yaml:"min_idle_conns" default:"5"`
}

// NewRedisStore creates a new Redis store instance and checks connectivity
func NewRedisStore(config RedisStoreConfig) (*RedisStore, error) {
	opt, err := redis.ParseURL(config.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Override with config values
	if config.Password != "" {
		opt.Password = config.Password
	}
	opt.DB = config.DB
	opt.MaxRetries = config.MaxRetries
	opt.PoolSize = config.PoolSize
	opt.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

// Get retrieves a value by key
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			s.misses.Add(1)
			return nil, gate.ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: redis get failed: %v", gate.ErrStoreUnavailable, err)
	}

	s.hits.Add(1)
	return value, nil
}

// Set stores a value with TTL
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set failed: %v", gate.ErrStoreUnavailable, err)
	}
	return nil
}

// Delete removes a key from the store
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: redis delete failed: %v", gate.ErrStoreUnavailable, err)
	}
	return nil
}

// Ping checks the Redis connection
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", gate.ErrStoreUnavailable, err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Stats returns store statistics
func (s *RedisStore) Stats() gate.StoreStats {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := gate.StoreStats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		LastUpdated: time.Now(),
		Type:        gate.StoreTypeRedis,
	}
	if keys, err := s.client.DBSize(ctx).Result(); err == nil {
		stats.Keys = keys
	}

	return stats
}
