// Package authctx holds the authentication state of each browser and the
// operations that change it: login, logout and password reset.
//
// A Manager is created once with its collaborators injected and shared by the
// HTTP layer. For every request the Manager rehydrates a Context for the
// calling browser from session storage; the Context is the only thing allowed
// to write that browser's session.
package authctx

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"tailorly/internal/authclient"
	"tailorly/internal/events"
	"tailorly/internal/metrics"
	"tailorly/internal/role"
	"tailorly/internal/session"
)

var (
	// ErrNotAuthenticated is returned by operations that need a signed-in browser
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrLoginPending is reported when a browser submits a second login while one is in flight
	ErrLoginPending = errors.New("login already in progress")
	// ErrForeignAccount is returned when a password reset names an account other than the signed-in one
	ErrForeignAccount = errors.New("reset targets another account")
)

// User-visible notices
const (
	NoticeLoginFailed   = "Login failed. Check your email and password and try again."
	NoticeLoginPending  = "A login is already in progress."
	NoticeResetFailed   = "Password reset failed. Please try again."
	NoticeNotSignedIn   = "You need to sign in first."
	NoticeOwnAccount    = "You can only change the password of your own account."
	NoticeLoggedOut     = "You have been logged out."
	NoticePasswordReset = "Your password has been updated."
)

// AuthService is the subset of the remote auth API the Manager needs.
// *authclient.Client implements it.
type AuthService interface {
	LoginAs(ctx context.Context, r role.Role, email, password string) (*authclient.LoginResult, error)
	ResetPassword(ctx context.Context, token, userType, email, newPassword string) error
}

// Manager creates per-browser Contexts and owns their shared collaborators
type Manager struct {
	sessions  session.Manager
	auth      AuthService
	publisher events.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger

	// browser ids with a login in flight
	pending  sync.Map
	disposed atomic.Bool
}

// Option configures a Manager
type Option func(*Manager)

// WithPublisher sends audit events to p
func WithPublisher(p events.Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithMetrics records auth operations on mt
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager
func NewManager(sessions session.Manager, auth AuthService, opts ...Option) *Manager {
	m := &Manager{
		sessions:  sessions,
		auth:      auth,
		publisher: events.Nop{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize reads the stored session of browserID and returns its Context.
// The read completes before Initialize returns, so the Context is never
// observed in the Uninitialized state by callers.
func (m *Manager) Initialize(ctx context.Context, browserID string) *Context {
	c := m.newContext(browserID)
	c.load(ctx)
	return c
}

// newContext returns a Context that has not read storage yet
func (m *Manager) newContext(browserID string) *Context {
	return &Context{
		m:         m,
		browserID: browserID,
		state:     Uninitialized,
	}
}

// Invalidate destroys the session of browserID, e.g. after the remote API
// rejected its token. Never fails; storage errors are logged.
func (m *Manager) Invalidate(ctx context.Context, browserID, reason string) {
	if err := m.sessions.Clear(ctx, browserID); err != nil {
		m.logger.Error("Failed to clear rejected session",
			"browser_id", browserID,
			"error", err.Error(),
		)
	}
	m.metrics.UpstreamRejection()

	e := events.New(events.SessionInvalidated, browserID)
	e.Reason = reason
	m.publish(ctx, e)

	m.logger.Info("Session invalidated",
		"browser_id", browserID,
		"reason", reason,
	)
}

// Dispose releases the Manager's collaborators. Contexts created afterwards
// still work but no longer publish events.
func (m *Manager) Dispose() {
	if m.disposed.Swap(true) {
		return
	}
	m.publisher.Close()
}

func (m *Manager) publish(ctx context.Context, e events.Event) {
	if m.disposed.Load() {
		return
	}
	if err := m.publisher.Publish(ctx, e); err != nil {
		m.logger.Warn("Failed to publish auth event",
			"type", e.Type,
			"error", err.Error(),
		)
	}
}

func (m *Manager) beginLogin(browserID string) bool {
	_, busy := m.pending.LoadOrStore(browserID, struct{}{})
	return !busy
}

func (m *Manager) endLogin(browserID string) {
	m.pending.Delete(browserID)
}
