package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"turnstileguard/internal/gate"
	"turnstileguard/internal/session"
	"turnstileguard/internal/testutil"
	"turnstileguard/pkg/concurrency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// noRedirect keeps the client on the first response
func noRedirect(*http.Request, []*http.Request) error {
	return http.ErrUseLastResponse
}

type testServer struct {
	gate     *httptest.Server
	upstream *httptest.Server
	verifier *testutil.MockVerifier
	hits     chan string
}

func newTestServer(t *testing.T, configure func(*gate.Config)) *testServer {
	t.Helper()

	ts := &testServer{
		verifier: &testutil.MockVerifier{},
		hits:     make(chan string, 16),
	}

	ts.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits <- r.URL.Path
		_, _ = io.WriteString(w, "upstream:"+r.URL.Path)
	}))
	t.Cleanup(ts.upstream.Close)

	config := testutil.TestConfig()
	config.Server.UpstreamURL = ts.upstream.URL
	if configure != nil {
		configure(config)
	}

	store, err := session.NewMemoryStore(session.MemoryStoreConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	logger := testutil.NopLogger{}
	sessions := session.NewManager(store, config.Session, concurrency.NewMutexManager(), logger)
	g := gate.New(config.Turnstile, ts.verifier, testutil.NopMetrics{}, logger)

	server, err := NewServer(config, g, sessions, store, logger)
	require.NoError(t, err)

	ts.gate = httptest.NewServer(server.Routes())
	t.Cleanup(ts.gate.Close)

	return ts
}

func (ts *testServer) client() *http.Client {
	return &http.Client{CheckRedirect: noRedirect}
}

func TestNewServer_InvalidUpstream(t *testing.T) {
	config := testutil.TestConfig()
	config.Server.UpstreamURL = "http://[::1"

	server, err := NewServer(config, &testutil.MockGate{}, &testutil.StaticSessions{}, &testutil.MockStore{}, testutil.NopLogger{})

	assert.Nil(t, server)
	assert.ErrorIs(t, err, gate.ErrConfigurationError)
}

func TestServer_UnverifiedClientIsChallenged(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().Get(ts.gate.URL + "/protected/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/challenge/?next=/protected/", resp.Header.Get("Location"))
	assert.Empty(t, ts.hits)
}

func TestServer_ChallengePage(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().Get(ts.gate.URL + "/challenge/?next=/protected/")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `data-sitekey="test-site-key"`)
	assert.Contains(t, string(body), `name="next" value="/protected/"`)
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("Cache-Control"))
}

func TestServer_VerificationFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.verifier.On("Verify", mock.Anything, "test-secret-key", "good-token", "127.0.0.1").Return(true).Once()

	form := url.Values{gate.TokenField: {"good-token"}, gate.NextField: {"/protected/"}}
	resp, err := ts.client().PostForm(ts.gate.URL+"/verify/", form)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/protected/", resp.Header.Get("Location"))

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.True(t, cookies[0].HttpOnly)

	req, err := http.NewRequest(http.MethodGet, ts.gate.URL+"/protected/", nil)
	require.NoError(t, err)
	req.AddCookie(cookies[0])

	resp, err = ts.client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "upstream:/protected/", string(body))
	assert.Equal(t, "/protected/", <-ts.hits)
	ts.verifier.AssertExpectations(t)
}

func TestServer_RejectedVerificationKeepsClientOut(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.verifier.On("Verify", mock.Anything, mock.Anything, "bad-token", mock.Anything).Return(false).Once()

	form := url.Values{gate.TokenField: {"bad-token"}, gate.NextField: {"/protected/"}}
	resp, err := ts.client().PostForm(ts.gate.URL+"/verify/", form)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/challenge/?next=/protected/", resp.Header.Get("Location"))
	assert.Empty(t, resp.Cookies())
}

func TestServer_ExcludedPathIsProxied(t *testing.T) {
	ts := newTestServer(t, func(config *gate.Config) {
		config.Turnstile.ExcludedPaths = []string{"/static/"}
	})

	resp, err := ts.client().Get(ts.gate.URL + "/static/app.css")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/static/app.css", <-ts.hits)
}

func TestServer_ExcludedIPIsProxied(t *testing.T) {
	ts := newTestServer(t, func(config *gate.Config) {
		config.Turnstile.ExcludedIPs = []string{"127.0.0.1"}
	})

	resp, err := ts.client().Get(ts.gate.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/", <-ts.hits)
}

func TestServer_DisabledGateProxiesEverything(t *testing.T) {
	ts := newTestServer(t, func(config *gate.Config) {
		config.Turnstile.Enabled = false
	})

	resp, err := ts.client().Get(ts.gate.URL + "/protected/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "/protected/", <-ts.hits)
}

func TestServer_Health(t *testing.T) {
	ts := newTestServer(t, nil)

	resp, err := ts.client().Get(ts.gate.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `"status":"healthy"`))
	assert.Empty(t, ts.hits)
}

func TestServer_UpstreamDown(t *testing.T) {
	ts := newTestServer(t, func(config *gate.Config) {
		config.Turnstile.Enabled = false
	})
	ts.upstream.Close()

	resp, err := ts.client().Get(ts.gate.URL + "/anything")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestServer_StartStop(t *testing.T) {
	config := testutil.TestConfig()
	config.Server.Port = "0"

	g := gate.New(config.Turnstile, &testutil.MockVerifier{}, testutil.NopMetrics{}, testutil.NopLogger{})
	server, err := NewServer(config, g, &testutil.StaticSessions{}, &testutil.MockStore{}, testutil.NopLogger{})
	require.NoError(t, err)

	errs := make(chan error, 1)
	go func() { errs <- server.Start() }()

	require.NoError(t, server.Stop(context.Background()))
	assert.NoError(t, <-errs)
}
