package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"turnstileguard/internal/gate"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading from YAML files and environment variables
type Loader struct {
	configPath string
	env        *EnvSource
}

// NewLoader creates a new configuration loader
func NewLoader(configPath, envPrefix string) *Loader {
	return &Loader{
		configPath: configPath,
		env:        NewEnvSource(envPrefix),
	}
}

// Load loads configuration from YAML file and applies environment variable overrides
func (l *Loader) Load() (*gate.Config, error) {
	config := newConfig()

	// Load from YAML file if it exists
	if l.configPath != "" {
		if err := l.loadFromYAML(config); err != nil {
			return nil, fmt.Errorf("failed to load YAML config: %w", err)
		}
	}

	// Apply defaults
	l.applyDefaults(config)

	// Apply environment variable overrides
	l.applyEnvOverrides(config)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// newConfig returns a config carrying the defaults that a zero value cannot
// express, so an absent YAML key keeps them.
func newConfig() *gate.Config {
	config := &gate.Config{}
	config.Turnstile.Enabled = true
	config.Metrics.Enabled = true
	return config
}

// loadFromYAML loads configuration from YAML file
func (l *Loader) loadFromYAML(config *gate.Config) error {
	if _, err := os.Stat(l.configPath); os.IsNotExist(err) {
		return nil // Config file is optional
	}

	data, err := os.ReadFile(l.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// applyDefaults applies default values to configuration fields
func (l *Loader) applyDefaults(config *gate.Config) {
	// Server defaults
	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.Host == "" {
		config.Server.Host = "0.0.0.0"
	}
	if config.Server.ReadTimeout == 0 {
		config.Server.ReadTimeout = 10 * time.Second
	}
	if config.Server.WriteTimeout == 0 {
		config.Server.WriteTimeout = 30 * time.Second
	}
	if config.Server.IdleTimeout == 0 {
		config.Server.IdleTimeout = 120 * time.Second
	}
	if config.Server.ShutdownTimeout == 0 {
		config.Server.ShutdownTimeout = 30 * time.Second
	}
	if config.Server.MaxHeaderBytes == 0 {
		config.Server.MaxHeaderBytes = 1048576 // 1MB
	}

	// Turnstile defaults
	t := &config.Turnstile
	if t.SessionKey == "" {
		t.SessionKey = gate.DefaultSessionKey
	}
	if t.ChallengePath == "" {
		t.ChallengePath = gate.DefaultChallengePath
	}
	if t.VerifyPath == "" {
		t.VerifyPath = gate.DefaultVerifyPath
	}
	if t.VerificationURL == "" {
		t.VerificationURL = gate.DefaultVerificationURL
	}
	if t.VerifyTimeout == 0 {
		t.VerifyTimeout = gate.DefaultVerifyTimeout
	}
	if t.Widget.Mode == "" {
		t.Widget.Mode = "managed"
	}
	if t.Widget.Appearance == "" {
		t.Widget.Appearance = "always"
	}
	if t.Widget.Theme == "" {
		t.Widget.Theme = "auto"
	}
	if t.Widget.Language == "" {
		t.Widget.Language = "auto"
	}
	if t.Widget.Size == "" {
		t.Widget.Size = "normal"
	}

	// Session defaults
	if config.Session.CookieName == "" {
		config.Session.CookieName = "turnstileguard_session"
	}
	if config.Session.TTL == 0 {
		config.Session.TTL = 24 * time.Hour
	}
	if config.Session.CleanupInterval == 0 {
		config.Session.CleanupInterval = 10 * time.Minute
	}

	// Logging defaults
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "json"
	}

	// Metrics defaults
	if config.Metrics.Path == "" {
		config.Metrics.Path = "/metrics"
	}
	if config.Metrics.Port == "" {
		config.Metrics.Port = "9090"
	}
}

// applyEnvOverrides applies environment variable overrides to configuration
func (l *Loader) applyEnvOverrides(config *gate.Config) {
	e := l.env

	// Server overrides
	overrideString(e, "server.port", &config.Server.Port)
	overrideString(e, "server.host", &config.Server.Host)
	overrideString(e, "upstream_url", &config.Server.UpstreamURL)
	overrideDuration(e, "server.read_timeout", &config.Server.ReadTimeout)
	overrideDuration(e, "server.write_timeout", &config.Server.WriteTimeout)
	overrideDuration(e, "server.shutdown_timeout", &config.Server.ShutdownTimeout)

	// Turnstile overrides
	t := &config.Turnstile
	if enabled, ok := e.Get("enabled"); ok {
		t.Enabled = gate.ParseEnabled(enabled)
	}
	overrideString(e, "session_key", &t.SessionKey)
	overrideString(e, "challenge_path", &t.ChallengePath)
	overrideString(e, "verify_path", &t.VerifyPath)
	overrideList(e, "excluded_paths", &t.ExcludedPaths)
	overrideList(e, "excluded_ips", &t.ExcludedIPs)
	overrideList(e, "excluded_domains", &t.ExcludedDomains)
	overrideString(e, "verification_url", &t.VerificationURL)
	overrideString(e, "secret_key", &t.SecretKey)
	overrideString(e, "site_key", &t.SiteKey)
	overrideDuration(e, "verify_timeout", &t.VerifyTimeout)
	overrideString(e, "mode", &t.Widget.Mode)
	overrideString(e, "appearance", &t.Widget.Appearance)
	overrideString(e, "theme", &t.Widget.Theme)
	overrideString(e, "language", &t.Widget.Language)
	overrideString(e, "size", &t.Widget.Size)

	// Session overrides
	if store, ok := e.Get("session.store"); ok {
		config.Session.Store = gate.ParseStoreType(strings.ToLower(store))
	}
	overrideString(e, "session.cookie_name", &config.Session.CookieName)
	if secure, ok := e.Get("session.cookie_secure"); ok {
		config.Session.CookieSecure = strings.ToLower(secure) == "true"
	}
	overrideDuration(e, "session.ttl", &config.Session.TTL)
	overrideString(e, "redis_url", &config.Session.RedisURL)
	overrideString(e, "redis_password", &config.Session.RedisPassword)
	if db, ok := e.GetInt("redis_db"); ok {
		config.Session.RedisDB = db
	}

	// Logging overrides
	overrideString(e, "log_level", &config.Logging.Level)
	overrideString(e, "log_format", &config.Logging.Format)

	// Metrics overrides
	if enabled, ok := e.Get("metrics_enabled"); ok {
		config.Metrics.Enabled = strings.ToLower(enabled) == "true"
	}
	overrideString(e, "metrics_port", &config.Metrics.Port)
}

func overrideString(e *EnvSource, key string, target *string) {
	if value, ok := e.Get(key); ok {
		*target = value
	}
}

func overrideDuration(e *EnvSource, key string, target *time.Duration) {
	if value, ok := e.GetDuration(key); ok {
		*target = value
	}
}

func overrideList(e *EnvSource, key string, target *[]string) {
	if value, ok := e.GetList(key); ok {
		*target = value
	}
}
