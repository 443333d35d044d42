// Package session binds a client cookie to a record in a gate.Store and
// exposes it to the gate as a gate.Session.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"turnstileguard/internal/gate"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const keyPrefix = "session:"

// Manager loads and persists cookie-bound sessions
type Manager struct {
	store  gate.Store
	config gate.SessionConfig
	locks  gate.LockManager
	logger gate.Logger
}

// NewManager creates a session manager on top of store
func NewManager(store gate.Store, config gate.SessionConfig, locks gate.LockManager, logger gate.Logger) *Manager {
	if config.CookieName == "" {
		config.CookieName = "turnstileguard_session"
	}
	if config.TTL <= 0 {
		config.TTL = 24 * time.Hour
	}

	return &Manager{
		store:  store,
		config: config,
		locks:  locks,
		logger: logger.With("component", "session"),
	}
}

// Load returns the session referenced by the request cookie. No cookie is
// issued until the first write.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) gate.Session {
	s := &Session{
		manager: m,
		w:       w,
		secure:  m.config.CookieSecure || r.TLS != nil,
	}

	if cookie, err := r.Cookie(m.config.CookieName); err == nil && validID(cookie.Value) {
		s.id = cookie.Value
	}

	return s
}

func (m *Manager) read(ctx context.Context, id string) (map[string]bool, error) {
	raw, err := m.store.Get(ctx, keyPrefix+id)
	if err != nil {
		if errors.Is(err, gate.ErrSessionNotFound) {
			return map[string]bool{}, nil
		}
		return nil, err
	}

	values := map[string]bool{}
	if err := json.Unmarshal(raw, &values); err != nil {
		m.logger.Warn("discarding undecodable session record", "error", err)
		return map[string]bool{}, nil
	}
	return values, nil
}

func (m *Manager) write(ctx context.Context, id string, values map[string]bool) error {
	raw, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	return m.store.Set(ctx, keyPrefix+id, raw, m.config.TTL)
}

// Session implements gate.Session for one request
type Session struct {
	manager *Manager
	w       http.ResponseWriter
	id      string
	secure  bool
}

// ID returns the session id, empty until the session has been written
func (s *Session) ID() string {
	return s.id
}

// Get reports whether key holds true. Store failures read as false.
func (s *Session) Get(ctx context.Context, key string) bool {
	if s.id == "" {
		return false
	}

	values, err := s.manager.read(ctx, s.id)
	if err != nil {
		s.manager.logger.Warn("failed to read session", "error", err)
		return false
	}
	return values[key]
}

// Set stores value under key, issuing a session cookie if the client has
// none yet. A client-supplied id is replaced the first time a flag turns
// true, so a pre-planted cookie never ends up verified.
func (s *Session) Set(ctx context.Context, key string, value bool) error {
	existing := s.id != ""
	if !existing {
		id, err := gonanoid.New()
		if err != nil {
			return fmt.Errorf("failed to generate session id: %w", err)
		}
		s.id = id
	}

	s.manager.locks.Lock(s.id)
	defer s.manager.locks.Unlock(s.id)

	values, err := s.manager.read(ctx, s.id)
	if err != nil {
		return err
	}
	rotate := existing && value && !values[key]
	values[key] = value

	id := s.id
	if rotate {
		if id, err = gonanoid.New(); err != nil {
			return fmt.Errorf("failed to generate session id: %w", err)
		}
	}

	if err := s.manager.write(ctx, id, values); err != nil {
		return err
	}

	if rotate {
		if err := s.manager.store.Delete(ctx, keyPrefix+s.id); err != nil {
			s.manager.logger.Warn("failed to delete rotated session", "error", err)
		}
		s.id = id
	}

	http.SetCookie(s.w, &http.Cookie{
		Name:     s.manager.config.CookieName,
		Value:    s.id,
		Path:     "/",
		MaxAge:   int(s.manager.config.TTL / time.Second),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

// validID accepts nanoid-shaped values only
func validID(id string) bool {
	if len(id) < 16 || len(id) > 64 {
		return false
	}
	for _, c := range id {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
