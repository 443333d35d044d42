// Package testutil provides common utilities and helpers for testing
package testutil

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"time"

	"turnstileguard/internal/gate"

	"github.com/stretchr/testify/mock"
)

// TestTurnstileConfig creates a gate configuration for testing
func TestTurnstileConfig() gate.TurnstileConfig {
	return gate.TurnstileConfig{
		Enabled:         true,
		SessionKey:      gate.DefaultSessionKey,
		ChallengePath:   gate.DefaultChallengePath,
		VerifyPath:      gate.DefaultVerifyPath,
		VerificationURL: gate.DefaultVerificationURL,
		SecretKey:       "test-secret-key",
		SiteKey:         "test-site-key",
		VerifyTimeout:   time.Second,
		Widget: gate.WidgetConfig{
			Mode:       "managed",
			Appearance: "always",
			Theme:      "auto",
			Language:   "auto",
			Size:       "normal",
		},
	}
}

// TestConfig creates a full Config for testing
func TestConfig() *gate.Config {
	return &gate.Config{
		Server: gate.ServerConfig{
			Port:        "8080",
			Host:        "127.0.0.1",
			UpstreamURL: "http://127.0.0.1:9000",
		},
		Turnstile: TestTurnstileConfig(),
		Session: gate.SessionConfig{
			CookieName: "turnstileguard_session",
			TTL:        time.Hour,
		},
	}
}

// TestRequest creates a basic gate.Request for testing
func TestRequest(path string) *gate.Request {
	return &gate.Request{
		Method:     http.MethodGet,
		Path:       path,
		Host:       "testserver",
		RemoteAddr: "127.0.0.1:12345",
	}
}

// TestSubmission creates a verification form submission for testing
func TestSubmission(token, next string) *gate.Request {
	form := url.Values{}
	if token != "" {
		form.Set(gate.TokenField, token)
	}
	form.Set(gate.NextField, next)

	return &gate.Request{
		Method:     http.MethodPost,
		Path:       gate.DefaultVerifyPath,
		Host:       "testserver",
		RemoteAddr: "127.0.0.1:12345",
		Form:       form,
	}
}

// MapSession is an in-memory gate.Session for testing
type MapSession struct {
	mu     sync.Mutex
	values map[string]bool
	SetErr error
	Writes int
}

// NewMapSession creates a session pre-populated with values
func NewMapSession(values map[string]bool) *MapSession {
	if values == nil {
		values = map[string]bool{}
	}
	return &MapSession{values: values}
}

func (s *MapSession) Get(ctx context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

func (s *MapSession) Set(ctx context.Context, key string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Writes++
	if s.SetErr != nil {
		return s.SetErr
	}
	s.values[key] = value
	return nil
}

// MockVerifier is a mock implementation of gate.Verifier for testing
type MockVerifier struct {
	mock.Mock
}

func (m *MockVerifier) Verify(ctx context.Context, secret, token, remoteIP string) bool {
	args := m.Called(ctx, secret, token, remoteIP)
	return args.Bool(0)
}

// MockGate is a mock implementation of the gate operations for testing
type MockGate struct {
	mock.Mock
}

func (m *MockGate) Evaluate(ctx context.Context, req *gate.Request, session gate.Session) gate.Decision {
	args := m.Called(ctx, req, session)
	return args.Get(0).(gate.Decision)
}

func (m *MockGate) HandleVerificationSubmission(ctx context.Context, req *gate.Request, session gate.Session) gate.Decision {
	args := m.Called(ctx, req, session)
	return args.Get(0).(gate.Decision)
}

func (m *MockGate) Config() gate.TurnstileConfig {
	args := m.Called()
	return args.Get(0).(gate.TurnstileConfig)
}

// StaticSessions always hands out the same session
type StaticSessions struct {
	Session gate.Session
}

func (s *StaticSessions) Load(w http.ResponseWriter, r *http.Request) gate.Session {
	return s.Session
}

// MockStore is a mock implementation of gate.Store for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStore) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockStore) Stats() gate.StoreStats {
	args := m.Called()
	return args.Get(0).(gate.StoreStats)
}

// MockMetrics is a mock implementation of gate.Metrics for testing
type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) IncDecisions(decision gate.DecisionKind, reason string) {
	m.Called(decision, reason)
}

func (m *MockMetrics) IncVerifications(result string) {
	m.Called(result)
}

func (m *MockMetrics) ObserveVerificationDuration(duration time.Duration) {
	m.Called(duration)
}

func (m *MockMetrics) IncSessionErrors(operation string) {
	m.Called(operation)
}

// NopMetrics discards everything
type NopMetrics struct{}

func (NopMetrics) IncDecisions(gate.DecisionKind, string)    {}
func (NopMetrics) IncVerifications(string)                   {}
func (NopMetrics) ObserveVerificationDuration(time.Duration) {}
func (NopMetrics) IncSessionErrors(string)                   {}

// MockLogger is a mock implementation of gate.Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) Info(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLogger) Error(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLogger) Warn(msg string, keysAndValues ...any) {
	args := []any{msg}
	args = append(args, keysAndValues...)
	m.Called(args...)
}

func (m *MockLogger) With(keysAndValues ...any) gate.Logger {
	args := m.Called(keysAndValues)
	return args.Get(0).(gate.Logger)
}

// NopLogger discards everything
type NopLogger struct{}

func (NopLogger) Debug(string, ...any)      {}
func (NopLogger) Info(string, ...any)       {}
func (NopLogger) Warn(string, ...any)       {}
func (NopLogger) Error(string, ...any)      {}
func (l NopLogger) With(...any) gate.Logger { return l }
