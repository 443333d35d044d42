package session

import (
	"fmt"

	"turnstileguard/internal/gate"
)

// NewStore creates a session store based on the provided configuration.
// Falls back to the memory store if Redis is not configured or unreachable.
func NewStore(config gate.SessionConfig, logger gate.Logger) (gate.Store, error) {
	switch config.Store {
	case gate.StoreTypeRedis:
		return createRedisStore(config, logger)
	case gate.StoreTypeMemory:
		return createMemoryStore(config, logger)
	default:
		logger.Warn("unknown session store type, defaulting to memory", "type", config.Store)
		return createMemoryStore(config, logger)
	}
}

// createRedisStore attempts to create a Redis store with fallback to memory
func createRedisStore(config gate.SessionConfig, logger gate.Logger) (gate.Store, error) {
	if config.RedisURL == "" {
		logger.Info("Redis URL not configured, falling back to memory session store")
		return createMemoryStore(config, logger)
	}

	logger.Info("attempting to connect to Redis", "url", config.RedisURL, "db", config.RedisDB)

	redisConfig := RedisStoreConfig{
		Address:      config.RedisURL,
		Password:     config.RedisPassword,
		DB:           config.RedisDB,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
	}

	redisStore, err := NewRedisStore(redisConfig)
	if err != nil {
		logger.Warn("failed to connect to Redis, falling back to memory session store", "error", err)
		return createMemoryStore(config, logger)
	}

	logger.Info("Redis session store initialized successfully")
	return redisStore, nil
}

// createMemoryStore creates a memory store
func createMemoryStore(config gate.SessionConfig, logger gate.Logger) (gate.Store, error) {
	logger.Info("initializing memory session store",
		"ttl", config.TTL,
		"cleanup_interval", config.CleanupInterval)

	memoryStore, err := NewMemoryStore(MemoryStoreConfig{
		DefaultTTL:      config.TTL,
		CleanupInterval: config.CleanupInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create memory session store: %w", err)
	}

	logger.Info("memory session store initialized successfully")
	return memoryStore, nil
}
