package gate

import (
	"context"
	"encoding/json"
	"time"
)

// StoreType represents session store implementation types
type StoreType int

const (
	StoreTypeMemory StoreType = iota
	StoreTypeRedis
)

// String returns the string representation of the store type
func (s StoreType) String() string {
	switch s {
	case StoreTypeMemory:
		return "memory"
	case StoreTypeRedis:
		return "redis"
	default:
		return "memory"
	}
}

// ParseStoreType parses a string to StoreType
func ParseStoreType(s string) StoreType {
	switch s {
	case "memory":
		return StoreTypeMemory
	case "redis":
		return StoreTypeRedis
	default:
		return StoreTypeMemory
	}
}

// MarshalJSON implements json.Marshaler interface
func (s StoreType) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalYAML accepts the store type by name.
func (s *StoreType) UnmarshalYAML(unmarshal func(any) error) error {
	var name string
	if err := unmarshal(&name); err != nil {
		return err
	}
	*s = ParseStoreType(name)
	return nil
}

// Session is the per-client capability handed to the gate. The gate reads
// and writes a single boolean through it; storage and expiry belong to the
// implementation.
type Session interface {
	// Get reports whether key holds true. Missing keys and read failures
	// report false.
	Get(ctx context.Context, key string) bool

	// Set stores value under key.
	Set(ctx context.Context, key string, value bool) error
}

// Store defines the interface for key-value storage with TTL support
type Store interface {
	// Get retrieves a value by key. Returns ErrSessionNotFound if key doesn't exist
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with TTL. TTL of 0 means no expiration
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the store
	Delete(ctx context.Context, key string) error

	// Ping checks that the store is reachable
	Ping(ctx context.Context) error

	// Close closes the store connection and cleans up resources
	Close() error

	// Stats returns store statistics for monitoring
	Stats() StoreStats
}

// StoreStats represents session store statistics
type StoreStats struct {
	Hits        int64     `json:"hits"`
	Misses      int64     `json:"misses"`
	Keys        int64     `json:"keys"`
	LastUpdated time.Time `json:"last_updated"`
	Type        StoreType `json:"type"`
}

// LockManager defines the interface for per-key mutual exclusion
type LockManager interface {
	// Lock acquires a lock for the given key
	Lock(key string)

	// Unlock releases the lock for the given key
	Unlock(key string)
}
