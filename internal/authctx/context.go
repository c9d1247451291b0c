package authctx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"tailorly/internal/events"
	"tailorly/internal/role"
	"tailorly/internal/session"
)

// Context is the authentication state of one browser
type Context struct {
	m         *Manager
	browserID string

	mu      sync.Mutex
	state   State
	session *session.Session
}

// BrowserID identifies the browser this Context belongs to
func (c *Context) BrowserID() string {
	return c.browserID
}

// Token returns the bearer credential of the session, if any
func (c *Context) Token() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Authenticated {
		return "", false
	}
	return c.session.Token, true
}

// Snapshot returns a read-only copy of the current state
func (c *Context) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state}
	if c.session != nil {
		profile := c.session.Profile
		snap.RawRole = c.session.Role
		snap.Profile = &profile
	}
	return snap
}

func (c *Context) load(ctx context.Context) {
	s, ok := c.m.sessions.Load(ctx, c.browserID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.state = Anonymous
		c.session = nil
		return
	}
	// An unknown role keeps the session: routing sends it to the
	// unauthorized page but the stored profile survives.
	if _, known := role.Parse(s.Role); !known {
		c.m.logger.Warn("Stored session carries unknown role",
			"browser_id", c.browserID,
			"role", s.Role,
		)
	}
	c.state = Authenticated
	c.session = s
}

// Login authenticates against the remote API as r. On success the session is
// persisted and the Outcome redirects to the reset-password screen for a first
// login, otherwise to r's dashboard. On failure nothing changes.
func (c *Context) Login(ctx context.Context, email, password string, r role.Role) Outcome {
	if !c.m.beginLogin(c.browserID) {
		c.m.metrics.AuthOperation("login", roleLabel(string(r)), "pending")
		c.m.logger.Info("Rejected concurrent login",
			"browser_id", c.browserID,
			"error", ErrLoginPending.Error(),
		)
		return Outcome{Notice: NoticeLoginPending}
	}
	defer c.m.endLogin(c.browserID)

	// The browser may go away mid-login; the login still completes.
	ctx = context.WithoutCancel(ctx)

	if !r.Valid() {
		c.loginFailed(ctx, r, email, fmt.Errorf("unknown role %q", r))
		return Outcome{Notice: NoticeLoginFailed}
	}

	res, err := c.m.auth.LoginAs(ctx, r, email, password)
	if err != nil {
		c.loginFailed(ctx, r, email, err)
		return Outcome{Notice: NoticeLoginFailed}
	}

	s := session.Session{
		Token:   res.Token,
		Role:    string(r),
		Profile: res.Profile,
	}
	if err := c.m.sessions.Save(ctx, c.browserID, s); err != nil {
		c.loginFailed(ctx, r, email, err)
		return Outcome{Notice: NoticeLoginFailed}
	}

	c.mu.Lock()
	c.state = Authenticated
	c.session = &s
	c.mu.Unlock()

	c.m.metrics.AuthOperation("login", roleLabel(string(r)), "success")
	e := events.New(events.LoginSucceeded, c.browserID)
	e.Role = string(r)
	e.Email = email
	c.m.publish(ctx, e)

	c.m.logger.Info("Login succeeded",
		"browser_id", c.browserID,
		"role", r,
		"first_login", s.Profile.IsFirstLogin,
	)

	if s.Profile.IsFirstLogin {
		return Outcome{OK: true, Redirect: role.ResetPasswordPath}
	}
	dashboard, _ := role.Dashboard(r)
	return Outcome{OK: true, Redirect: dashboard}
}

func (c *Context) loginFailed(ctx context.Context, r role.Role, email string, err error) {
	c.m.metrics.AuthOperation("login", roleLabel(string(r)), "failure")

	e := events.New(events.LoginFailed, c.browserID)
	e.Role = string(r)
	e.Email = email
	e.Reason = err.Error()
	c.m.publish(ctx, e)

	c.m.logger.Warn("Login failed",
		"browser_id", c.browserID,
		"role", r,
		"error", err.Error(),
	)
}

// Logout destroys the session and redirects to the login screen. It is
// idempotent and never fails.
func (c *Context) Logout(ctx context.Context) Outcome {
	c.mu.Lock()
	prevRole := ""
	if c.session != nil {
		prevRole = c.session.Role
	}
	c.state = Anonymous
	c.session = nil
	c.mu.Unlock()

	if err := c.m.sessions.Clear(ctx, c.browserID); err != nil {
		c.m.logger.Error("Failed to clear session on logout",
			"browser_id", c.browserID,
			"error", err.Error(),
		)
	}

	c.m.metrics.AuthOperation("logout", roleLabel(prevRole), "success")
	e := events.New(events.Logout, c.browserID)
	e.Role = prevRole
	c.m.publish(ctx, e)

	return Outcome{OK: true, Redirect: role.LoginPath, Notice: NoticeLoggedOut}
}

// ResetPassword changes the password of the signed-in user and clears the
// first-login flag. An empty email means the signed-in user's own address.
// It returns ErrNotAuthenticated when called without a session and
// ErrForeignAccount when email names someone else; storage is untouched in
// both cases. Every other failure settles to a notice.
func (c *Context) ResetPassword(ctx context.Context, email, newPassword string) (Outcome, error) {
	c.mu.Lock()
	if c.state != Authenticated {
		c.mu.Unlock()
		return Outcome{Notice: NoticeNotSignedIn, Redirect: role.LoginPath}, ErrNotAuthenticated
	}
	current := *c.session
	c.mu.Unlock()

	own := current.Profile.Email
	email = strings.TrimSpace(email)
	if email != "" && !strings.EqualFold(email, own) {
		c.resetFailed(ctx, current.Role, ErrForeignAccount)
		return Outcome{Notice: NoticeOwnAccount}, ErrForeignAccount
	}
	if own == "" {
		c.resetFailed(ctx, current.Role, errors.New("profile has no email"))
		return Outcome{Notice: NoticeResetFailed}, nil
	}
	email = own

	r, known := role.Parse(current.Role)
	userType, _ := role.UserType(r)
	if !known {
		c.resetFailed(ctx, current.Role, errors.New("unknown role"))
		return Outcome{Notice: NoticeResetFailed}, nil
	}

	if err := c.m.auth.ResetPassword(ctx, current.Token, userType, email, newPassword); err != nil {
		c.resetFailed(ctx, current.Role, err)
		return Outcome{Notice: NoticeResetFailed}, nil
	}

	current.Profile.IsFirstLogin = false
	if err := c.m.sessions.UpdateProfile(ctx, c.browserID, current.Profile); err != nil {
		// The password did change upstream; only the local flag is stale.
		c.m.logger.Warn("Failed to persist cleared first-login flag",
			"browser_id", c.browserID,
			"error", err.Error(),
		)
	}

	c.mu.Lock()
	c.session = &current
	c.mu.Unlock()

	c.m.metrics.AuthOperation("reset_password", roleLabel(current.Role), "success")
	e := events.New(events.PasswordReset, c.browserID)
	e.Role = current.Role
	e.Email = email
	c.m.publish(ctx, e)

	dashboard, _ := role.Dashboard(r)
	return Outcome{OK: true, Redirect: dashboard, Notice: NoticePasswordReset}, nil
}

func (c *Context) resetFailed(ctx context.Context, rawRole string, err error) {
	c.m.metrics.AuthOperation("reset_password", roleLabel(rawRole), "failure")

	e := events.New(events.PasswordResetFail, c.browserID)
	e.Role = rawRole
	e.Reason = err.Error()
	c.m.publish(ctx, e)

	c.m.logger.Warn("Password reset failed",
		"browser_id", c.browserID,
		"role", rawRole,
		"error", err.Error(),
	)
}

// roleLabel bounds the role metric label to the closed role set
func roleLabel(raw string) string {
	if raw == "" {
		return "none"
	}
	if r, ok := role.Parse(raw); ok {
		return string(r)
	}
	return "unknown"
}
