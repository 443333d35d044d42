package handlers

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"time"

	"turnstileguard/internal/gate"
)

//go:embed templates/challenge.html
var templateFS embed.FS

var challengeTemplate = template.Must(template.ParseFS(templateFS, "templates/challenge.html"))

// maxFormBytes bounds the verification form body
const maxFormBytes = 64 << 10

// GateInterface defines the decision engine operations used by the HTTP layer
type GateInterface interface {
	Evaluate(ctx context.Context, req *gate.Request, session gate.Session) gate.Decision
	HandleVerificationSubmission(ctx context.Context, req *gate.Request, session gate.Session) gate.Decision
	Config() gate.TurnstileConfig
}

// SessionLoader resolves the session for a request
type SessionLoader interface {
	Load(w http.ResponseWriter, r *http.Request) gate.Session
}

// HealthStatus represents health check status
type HealthStatus int

const (
	HealthStatusHealthy HealthStatus = iota
	HealthStatusUnhealthy
)

// String returns the string representation of the health status
func (h HealthStatus) String() string {
	switch h {
	case HealthStatusHealthy:
		return "healthy"
	case HealthStatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler interface
func (h HealthStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// Handlers contains all HTTP handlers with shared dependencies
type Handlers struct {
	gate     GateInterface
	sessions SessionLoader
	store    gate.Store
	logger   gate.Logger
}

// NewHandlers creates a new handlers instance with injected dependencies
func NewHandlers(g GateInterface, sessions SessionLoader, store gate.Store, logger gate.Logger) *Handlers {
	return &Handlers{
		gate:     g,
		sessions: sessions,
		store:    store,
		logger:   logger.With("component", "handlers"),
	}
}

// challengePage is the data handed to the challenge template
type challengePage struct {
	SiteKey    string
	VerifyPath string
	Next       string
	Mode       string
	Appearance string
	Theme      string
	Language   string
	Size       string
}

// ChallengeHandler handles GET requests to the challenge page
func (h *Handlers) ChallengeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	next := "/"
	if query.Has(gate.NextField) {
		next = query.Get(gate.NextField)
	}

	config := h.gate.Config()
	page := challengePage{
		SiteKey:    config.SiteKey,
		VerifyPath: config.VerifyPath,
		Next:       next,
		Mode:       config.Widget.Mode,
		Appearance: config.Widget.Appearance,
		Theme:      config.Widget.Theme,
		Language:   config.Widget.Language,
		Size:       config.Widget.Size,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)

	if err := challengeTemplate.Execute(w, page); err != nil {
		h.logger.Error("failed to render challenge page", "error", err)
	}
}

// VerifyHandler handles challenge form submissions
func (h *Handlers) VerifyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)
		if err := r.ParseForm(); err != nil {
			h.logger.Debug("failed to parse verification form", "error", err)
		}
	}

	session := h.sessions.Load(w, r)
	decision := h.gate.HandleVerificationSubmission(r.Context(), NewRequest(r), session)

	http.Redirect(w, r, decision.Target, http.StatusFound)
}

// Middleware gates every request passing through it
func (h *Handlers) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session := h.sessions.Load(w, r)
		decision := h.gate.Evaluate(r.Context(), NewRequest(r), session)

		if !decision.IsRedirect() {
			next.ServeHTTP(w, r)
			return
		}

		http.Redirect(w, r, decision.Target, http.StatusFound)
	})
}

// HealthCheckHandler handles GET /healthz requests
func (h *Handlers) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	response := HealthResponse{
		Status:    HealthStatusHealthy,
		Timestamp: time.Now(),
		Enabled:   h.gate.Config().Enabled,
		Store: StoreHealth{
			Status: HealthStatusHealthy,
			Stats:  h.store.Stats(),
		},
	}

	statusCode := http.StatusOK
	if err := h.store.Ping(ctx); err != nil {
		response.Status = HealthStatusUnhealthy
		response.Store.Status = HealthStatusUnhealthy
		response.Store.Error = gate.ErrorToHTTPError(err)
		statusCode = gate.ErrorToHTTPStatus(err)
		h.logger.Warn("health check failed", "error", err, "status", statusCode)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode health response", "error", err)
	}
}

// NewRequest extracts the facts the gate needs from an HTTP request. Form
// holds the parsed body values, if any.
func NewRequest(r *http.Request) *gate.Request {
	return &gate.Request{
		Method:       r.Method,
		Path:         r.URL.Path,
		Host:         r.Host,
		RemoteAddr:   r.RemoteAddr,
		ForwardedFor: r.Header.Get("X-Forwarded-For"),
		Form:         r.PostForm,
	}
}

// HealthResponse types
type HealthResponse struct {
	Status    HealthStatus `json:"status"`
	Timestamp time.Time    `json:"timestamp"`
	Enabled   bool         `json:"enabled"`
	Store     StoreHealth  `json:"store"`
}

type StoreHealth struct {
	Status HealthStatus    `json:"status"`
	Error  *gate.HTTPError `json:"error,omitempty"`
	Stats  gate.StoreStats `json:"stats"`
}
