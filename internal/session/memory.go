package session

import (
	"context"
	"sync/atomic"
	"time"

	"turnstileguard/internal/gate"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore implements gate.Store in process memory. Sessions are lost on
// restart and are not shared between replicas.
type MemoryStore struct {
	items       *gocache.Cache
	hits        atomic.Int64
	misses      atomic.Int64
	lastUpdated atomic.Int64
}

// MemoryStoreConfig represents configuration for the in-memory store
type MemoryStoreConfig struct {
	DefaultTTL      time.Duration `yaml:"default_ttl" default:"24h"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"10m"`
}

// NewMemoryStore creates a new in-memory store instance
func NewMemoryStore(config MemoryStoreConfig) (*MemoryStore, error) {
	if config.DefaultTTL <= 0 {
		config.DefaultTTL = 24 * time.Hour
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 10 * time.Minute
	}

	s := &MemoryStore{
		items: gocache.New(config.DefaultTTL, config.CleanupInterval),
	}
	s.touch()
	return s, nil
}

// Get retrieves a value by key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	value, found := s.items.Get(key)
	if !found {
		s.misses.Add(1)
		return nil, gate.ErrSessionNotFound
	}

	s.hits.Add(1)
	return value.([]byte), nil
}

// Set stores a value with TTL
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	expiration := gocache.NoExpiration
	if ttl > 0 {
		expiration = ttl
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.items.Set(key, stored, expiration)
	s.touch()
	return nil
}

// Delete removes a key from the store
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.items.Delete(key)
	s.touch()
	return nil
}

// Ping always succeeds for the in-memory store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

// Close drops every stored session
func (s *MemoryStore) Close() error {
	s.items.Flush()
	return nil
}

// Stats returns store statistics
func (s *MemoryStore) Stats() gate.StoreStats {
	return gate.StoreStats{
		Hits:        s.hits.Load(),
		Misses:      s.misses.Load(),
		Keys:        int64(s.items.ItemCount()),
		LastUpdated: time.Unix(0, s.lastUpdated.Load()),
		Type:        gate.StoreTypeMemory,
	}
}

func (s *MemoryStore) touch() {
	s.lastUpdated.Store(time.Now().UnixNano())
}
