package gate

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultSessionKey      = "turnstile_passed"
	DefaultChallengePath   = "/challenge/"
	DefaultVerifyPath      = "/verify/"
	DefaultVerificationURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"
	DefaultVerifyTimeout   = 10 * time.Second
)

// Config represents the main configuration structure
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Turnstile TurnstileConfig `yaml:"turnstile"`
	Session   SessionConfig   `yaml:"session"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Port            string        `yaml:"port" default:"8080"`
	Host            string        `yaml:"host" default:"0.0.0.0"`
	UpstreamURL     string        `yaml:"upstream_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"30s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" default:"1048576"` // 1MB
}

// TurnstileConfig is the gate snapshot. It is built once and never mutated
// after the gate is constructed.
type TurnstileConfig struct {
	Enabled         bool          `yaml:"enabled" default:"true"`
	SessionKey      string        `yaml:"session_key" default:"turnstile_passed"`
	ChallengePath   string        `yaml:"challenge_path" default:"/challenge/"`
	VerifyPath      string        `yaml:"verify_path" default:"/verify/"`
	ExcludedPaths   []string      `yaml:"excluded_paths"`
	ExcludedIPs     []string      `yaml:"excluded_ips"`
	ExcludedDomains []string      `yaml:"excluded_domains"`
	VerificationURL string        `yaml:"verification_url"`
	SecretKey       string        `yaml:"secret_key"`
	SiteKey         string        `yaml:"site_key"`
	VerifyTimeout   time.Duration `yaml:"verify_timeout" default:"10s"`
	Widget          WidgetConfig  `yaml:"widget"`
}

// WidgetConfig holds cosmetic options handed to the challenge page as-is
type WidgetConfig struct {
	Mode       string `yaml:"mode" default:"managed"`
	Appearance string `yaml:"appearance" default:"always"`
	Theme      string `yaml:"theme" default:"auto"`
	Language   string `yaml:"language" default:"auto"`
	Size       string `yaml:"size" default:"normal"`
}

// SessionConfig represents the client session cookie and its backing store
type SessionConfig struct {
	Store           StoreType     `yaml:"store" default:"memory"`
	CookieName      string        `yaml:"cookie_name" default:"turnstileguard_session"`
	CookieSecure    bool          `yaml:"cookie_secure"`
	TTL             time.Duration `yaml:"ttl" default:"24h"`
	RedisURL        string        `yaml:"redis_url"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db" default:"0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval" default:"10m"`
}

// ParseEnabled interprets an enablement token. Only explicit false-like
// values disable the gate.
func ParseEnabled(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "false", "0", "no", "off":
		return false
	default:
		return true
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("%w: server port is required", ErrConfigurationError)
	}

	upstream, err := url.Parse(c.Server.UpstreamURL)
	if err != nil || (upstream.Scheme != "http" && upstream.Scheme != "https") || upstream.Host == "" {
		return fmt.Errorf("%w: upstream_url must be an absolute http(s) URL", ErrConfigurationError)
	}

	return c.Turnstile.Validate()
}

// Validate validates the gate configuration
func (c *TurnstileConfig) Validate() error {
	if !strings.HasPrefix(c.ChallengePath, "/") || !strings.HasPrefix(c.VerifyPath, "/") {
		return fmt.Errorf("%w: challenge_path and verify_path must start with /", ErrConfigurationError)
	}

	if !c.Enabled {
		return nil
	}

	if c.SiteKey == "" {
		return ErrMissingSiteKey
	}
	if c.SecretKey == "" {
		return ErrMissingSecretKey
	}

	return nil
}
