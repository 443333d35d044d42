package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"turnstileguard/internal/gate"
	"turnstileguard/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestHandlers(g GateInterface, session gate.Session, store gate.Store) *Handlers {
	return NewHandlers(g, &testutil.StaticSessions{Session: session}, store, testutil.NopLogger{})
}

func newRealGate(verifier gate.Verifier) *gate.Gate {
	return gate.New(testutil.TestTurnstileConfig(), verifier, testutil.NopMetrics{}, testutil.NopLogger{})
}

func TestNewHandlers(t *testing.T) {
	mockLogger := &testutil.MockLogger{}
	mockLogger.On("With", []any{"component", "handlers"}).Return(testutil.NopLogger{})

	h := NewHandlers(&testutil.MockGate{}, &testutil.StaticSessions{}, &testutil.MockStore{}, mockLogger)

	assert.NotNil(t, h)
	mockLogger.AssertExpectations(t)
}

func TestChallengeHandler(t *testing.T) {
	h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), testutil.NewMapSession(nil), &testutil.MockStore{})

	t.Run("Renders widget and next", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ChallengeHandler(w, httptest.NewRequest(http.MethodGet, "/challenge/?next=/protected/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

		body := w.Body.String()
		assert.Contains(t, body, `data-sitekey="test-site-key"`)
		assert.Contains(t, body, `name="next" value="/protected/"`)
		assert.Contains(t, body, `action="/verify/"`)
		assert.Contains(t, body, `data-mode="managed"`)
		assert.Contains(t, body, `data-appearance="always"`)
		assert.Contains(t, body, `data-theme="auto"`)
		assert.Contains(t, body, `data-language="auto"`)
		assert.Contains(t, body, `data-size="normal"`)
		assert.NotContains(t, body, "test-secret-key")
	})

	t.Run("Missing next defaults to root", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ChallengeHandler(w, httptest.NewRequest(http.MethodGet, "/challenge/", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `name="next" value="/"`)
	})

	t.Run("Empty next stays empty", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ChallengeHandler(w, httptest.NewRequest(http.MethodGet, "/challenge/?next=", nil))

		assert.Contains(t, w.Body.String(), `name="next" value=""`)
	})

	t.Run("Next is HTML escaped", func(t *testing.T) {
		target := "/challenge/?next=" + url.QueryEscape(`"><script>alert(1)</script>`)
		w := httptest.NewRecorder()
		h.ChallengeHandler(w, httptest.NewRequest(http.MethodGet, target, nil))

		body := w.Body.String()
		assert.NotContains(t, body, "<script>alert(1)</script>")
		assert.Contains(t, body, "&lt;script&gt;")
	})

	t.Run("Rejects other methods", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ChallengeHandler(w, httptest.NewRequest(http.MethodPost, "/challenge/", nil))

		assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
		assert.Equal(t, "GET, HEAD", w.Header().Get("Allow"))
	})
}

func postForm(target string, form url.Values) *http.Request {
	r := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return r
}

func TestVerifyHandler(t *testing.T) {
	t.Run("Accepted token redirects to next", func(t *testing.T) {
		verifier := &testutil.MockVerifier{}
		verifier.On("Verify", mock.Anything, "test-secret-key", "good-token", "192.0.2.1").Return(true).Once()
		session := testutil.NewMapSession(nil)
		h := newTestHandlers(newRealGate(verifier), session, &testutil.MockStore{})

		w := httptest.NewRecorder()
		h.VerifyHandler(w, postForm("/verify/", url.Values{
			gate.TokenField: {"good-token"},
			gate.NextField:  {"/protected/"},
		}))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/protected/", w.Header().Get("Location"))
		assert.True(t, session.Get(context.Background(), gate.DefaultSessionKey))
		verifier.AssertExpectations(t)
	})

	t.Run("Evil next redirects to root", func(t *testing.T) {
		verifier := &testutil.MockVerifier{}
		verifier.On("Verify", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(true)
		session := testutil.NewMapSession(nil)
		h := newTestHandlers(newRealGate(verifier), session, &testutil.MockStore{})

		w := httptest.NewRecorder()
		h.VerifyHandler(w, postForm("/verify/", url.Values{
			gate.TokenField: {"good-token"},
			gate.NextField:  {"http://evil.example/steal"},
		}))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/", w.Header().Get("Location"))
		assert.True(t, session.Get(context.Background(), gate.DefaultSessionKey))
	})

	t.Run("Missing token returns to challenge", func(t *testing.T) {
		session := testutil.NewMapSession(nil)
		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), session, &testutil.MockStore{})

		w := httptest.NewRecorder()
		h.VerifyHandler(w, postForm("/verify/", url.Values{gate.NextField: {"/protected/"}}))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/challenge/?next=/protected/", w.Header().Get("Location"))
		assert.False(t, session.Get(context.Background(), gate.DefaultSessionKey))
	})

	t.Run("GET returns to challenge", func(t *testing.T) {
		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), testutil.NewMapSession(nil), &testutil.MockStore{})

		w := httptest.NewRecorder()
		h.VerifyHandler(w, httptest.NewRequest(http.MethodGet, "/verify/?cf-turnstile-response=x", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/challenge/", w.Header().Get("Location"))
	})

	t.Run("Oversized body is treated as missing token", func(t *testing.T) {
		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), testutil.NewMapSession(nil), &testutil.MockStore{})

		body := gate.TokenField + "=" + strings.Repeat("a", maxFormBytes+1)
		r := httptest.NewRequest(http.MethodPost, "/verify/", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		w := httptest.NewRecorder()
		h.VerifyHandler(w, r)

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/challenge/?next=/", w.Header().Get("Location"))
	})
}

func TestMiddleware(t *testing.T) {
	upstream := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	t.Run("Unverified client is redirected", func(t *testing.T) {
		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), testutil.NewMapSession(nil), &testutil.MockStore{})

		w := httptest.NewRecorder()
		h.Middleware(upstream).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected/", nil))

		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/challenge/?next=/protected/", w.Header().Get("Location"))
	})

	t.Run("Verified client passes through", func(t *testing.T) {
		session := testutil.NewMapSession(map[string]bool{gate.DefaultSessionKey: true})
		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), session, &testutil.MockStore{})

		w := httptest.NewRecorder()
		h.Middleware(upstream).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/protected/", nil))

		assert.Equal(t, http.StatusTeapot, w.Code)
	})

	t.Run("Request facts reach the gate", func(t *testing.T) {
		mockGate := &testutil.MockGate{}
		mockGate.On("Evaluate", mock.Anything, mock.MatchedBy(func(req *gate.Request) bool {
			return req.Method == http.MethodGet &&
				req.Path == "/a/b" &&
				req.Host == "example.com" &&
				req.ForwardedFor == "203.0.113.1" &&
				req.ClientIP() == "203.0.113.1"
		}), mock.Anything).Return(gate.Allow()).Once()

		h := newTestHandlers(mockGate, testutil.NewMapSession(nil), &testutil.MockStore{})

		r := httptest.NewRequest(http.MethodGet, "http://example.com/a/b?x=1", nil)
		r.Header.Set("X-Forwarded-For", "203.0.113.1")

		w := httptest.NewRecorder()
		h.Middleware(upstream).ServeHTTP(w, r)

		assert.Equal(t, http.StatusTeapot, w.Code)
		mockGate.AssertExpectations(t)
	})
}

func TestHealthCheckHandler(t *testing.T) {
	t.Run("Healthy store", func(t *testing.T) {
		store := &testutil.MockStore{}
		store.On("Ping", mock.Anything).Return(nil)
		store.On("Stats").Return(gate.StoreStats{Keys: 3, Type: gate.StoreTypeRedis})

		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), nil, store)

		w := httptest.NewRecorder()
		h.HealthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "healthy", body["status"])
		assert.Equal(t, true, body["enabled"])

		storeHealth := body["store"].(map[string]any)
		assert.Equal(t, "healthy", storeHealth["status"])
		assert.Equal(t, "redis", storeHealth["stats"].(map[string]any)["type"])
		store.AssertExpectations(t)
	})

	t.Run("Unreachable store", func(t *testing.T) {
		store := &testutil.MockStore{}
		store.On("Ping", mock.Anything).Return(fmt.Errorf("%w: connection refused", gate.ErrStoreUnavailable))
		store.On("Stats").Return(gate.StoreStats{Type: gate.StoreTypeRedis})

		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), nil, store)

		w := httptest.NewRecorder()
		h.HealthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body["status"])

		storeHealth := body["store"].(map[string]any)
		assert.Equal(t, "unhealthy", storeHealth["status"])

		storeErr := storeHealth["error"].(map[string]any)
		assert.Equal(t, "STORE_UNAVAILABLE", storeErr["code"])
		assert.Equal(t, "Session store is currently unavailable", storeErr["message"])
		assert.NotContains(t, storeErr, "details")
	})

	t.Run("Unexpected store error", func(t *testing.T) {
		store := &testutil.MockStore{}
		store.On("Ping", mock.Anything).Return(errors.New("boom"))
		store.On("Stats").Return(gate.StoreStats{Type: gate.StoreTypeMemory})

		h := newTestHandlers(newRealGate(&testutil.MockVerifier{}), nil, store)

		w := httptest.NewRecorder()
		h.HealthCheckHandler(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusInternalServerError, w.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "unhealthy", body["status"])

		storeErr := body["store"].(map[string]any)["error"].(map[string]any)
		assert.Equal(t, "INTERNAL_ERROR", storeErr["code"])
		assert.Equal(t, "boom", storeErr["details"])
	})
}

func TestHealthStatus_String(t *testing.T) {
	assert.Equal(t, "healthy", HealthStatusHealthy.String())
	assert.Equal(t, "unhealthy", HealthStatusUnhealthy.String())
	assert.Equal(t, "unknown", HealthStatus(7).String())
}
