package usecases

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mapnav/navclient/internal/core/domain"
	"github.com/mapnav/navclient/internal/core/ports"
	"github.com/mapnav/navclient/internal/pkg/authtoken"
	"github.com/mapnav/navclient/internal/pkg/metrics"
)

// SessionChange describes why the authoritative token changed.
type SessionChange string

const (
	SessionLogin   SessionChange = "login"
	SessionLogout  SessionChange = "logout"
	SessionRevoked SessionChange = "revoked"
)

// SessionListener is told about token changes. Listeners run without any
// session lock held.
type SessionListener func(ctx context.Context, change SessionChange)

// Session holds the auth token. Its presence selects the favorites backend
// and gates token-only layers.
type Session struct {
	mu        sync.RWMutex
	token     string
	listeners []SessionListener

	notifier  ports.Notifier
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewSession creates an anonymous session. notifier and publisher may be nil.
func NewSession(notifier ports.Notifier, publisher ports.EventPublisher) *Session {
	return &Session{notifier: notifier, publisher: publisher, now: time.Now}
}

// OnChange registers a listener.
func (s *Session) OnChange(fn SessionListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Token returns the current token. Expired JWTs are reported as absent.
func (s *Session) Token() (string, bool) {
	s.mu.RLock()
	tok := s.token
	s.mu.RUnlock()
	if tok == "" || authtoken.Expired(tok, s.now()) {
		return "", false
	}
	return tok, true
}

// Authenticated reports whether a usable token is present.
func (s *Session) Authenticated() bool {
	_, ok := s.Token()
	return ok
}

// SetToken installs a token after login.
func (s *Session) SetToken(ctx context.Context, token string) {
	s.mu.Lock()
	changed := s.token != token
	s.token = token
	s.mu.Unlock()
	if changed {
		s.emit(ctx, SessionLogin)
	}
}

// Clear drops the token on logout.
func (s *Session) Clear(ctx context.Context) {
	s.mu.Lock()
	had := s.token != ""
	s.token = ""
	s.mu.Unlock()
	if had {
		s.emit(ctx, SessionLogout)
	}
}

// Revoke invalidates token after the backend rejected it. A token installed
// since the failing call started is left alone.
func (s *Session) Revoke(ctx context.Context, token string) {
	s.mu.Lock()
	if token == "" || s.token != token {
		s.mu.Unlock()
		return
	}
	s.token = ""
	s.mu.Unlock()

	metrics.SessionRevocations.Inc()
	slog.Warn("auth token rejected by backend, session revoked")

	if s.notifier != nil {
		s.notifier.Notify(ctx, domain.Notice{
			Level:   domain.NoticeWarn,
			Code:    "reauth_required",
			Message: "your session has expired, please log in again",
		})
	}
	publish(ctx, s.publisher, domain.NewEvent(domain.EventSessionRevoked, nil))
	s.emit(ctx, SessionRevoked)
}

func (s *Session) emit(ctx context.Context, change SessionChange) {
	s.mu.RLock()
	listeners := append([]SessionListener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(ctx, change)
	}
}

// publish sends an event if a publisher is configured. Delivery failures are
// logged, never returned.
func publish(ctx context.Context, p ports.EventPublisher, e domain.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, e); err != nil {
		slog.Warn("event publish failed", "type", e.Type, "error", err)
	}
}
