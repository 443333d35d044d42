package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvSource reads prefixed environment variables. Keys use dotted config
// notation: "session.redis_url" with prefix TURNSTILE reads
// TURNSTILE_SESSION_REDIS_URL.
type EnvSource struct {
	envPrefix string
}

// NewEnvSource creates an environment source for prefix
func NewEnvSource(envPrefix string) *EnvSource {
	return &EnvSource{envPrefix: envPrefix}
}

// Get retrieves a non-empty value by key
func (e *EnvSource) Get(key string) (string, bool) {
	if value := os.Getenv(e.buildEnvKey(key)); value != "" {
		return value, true
	}
	return "", false
}

// GetInt retrieves an integer value
func (e *EnvSource) GetInt(key string) (int, bool) {
	value, ok := e.Get(key)
	if !ok {
		return 0, false
	}

	intValue, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}

	return intValue, true
}

// GetDuration retrieves a duration value (e.g., "10s", "1h")
func (e *EnvSource) GetDuration(key string) (time.Duration, bool) {
	value, ok := e.Get(key)
	if !ok {
		return 0, false
	}

	duration, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, false
	}

	return duration, true
}

// GetList retrieves a comma separated list, dropping empty elements
func (e *EnvSource) GetList(key string) ([]string, bool) {
	value, ok := e.Get(key)
	if !ok {
		return nil, false
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items, true
}

// buildEnvKey builds an environment variable key from a config key
func (e *EnvSource) buildEnvKey(key string) string {
	// Convert dots and dashes to underscores and make uppercase
	envKey := strings.ReplaceAll(key, ".", "_")
	envKey = strings.ReplaceAll(envKey, "-", "_")
	envKey = strings.ToUpper(envKey)

	if e.envPrefix != "" {
		return e.envPrefix + "_" + envKey
	}

	return envKey
}
