package authctx

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"tailorly/internal/authclient"
	"tailorly/internal/events"
	"tailorly/internal/metrics"
	"tailorly/internal/role"
	"tailorly/internal/session"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAuthService is a hand-written AuthService for tests
type mockAuthService struct {
	loginFunc func(ctx context.Context, r role.Role, email, password string) (*authclient.LoginResult, error)
	resetFunc func(ctx context.Context, userType, email, newPassword string) error

	mu          sync.Mutex
	loginCalls  int
	resetCalls  []string
	resetTokens []string
}

func (m *mockAuthService) LoginAs(ctx context.Context, r role.Role, email, password string) (*authclient.LoginResult, error) {
	m.mu.Lock()
	m.loginCalls++
	m.mu.Unlock()
	if m.loginFunc != nil {
		return m.loginFunc(ctx, r, email, password)
	}
	return nil, authclient.ErrLoginFailed
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, userType, email, newPassword string) error {
	m.mu.Lock()
	m.resetCalls = append(m.resetCalls, userType)
	m.resetTokens = append(m.resetTokens, token)
	m.mu.Unlock()
	if m.resetFunc != nil {
		return m.resetFunc(ctx, userType, email, newPassword)
	}
	return nil
}

// recordingPublisher keeps published events in memory
type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
	closed bool
}

func (p *recordingPublisher) Publish(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *recordingPublisher) types() []events.Type {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Type, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	sessions  session.Manager
	auth      *mockAuthService
	publisher *recordingPublisher
	metrics   *metrics.Metrics
	mgr       *Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := session.NewMemoryStore(time.Minute)
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		sessions:  session.NewManager(store, time.Hour, logger),
		auth:      &mockAuthService{},
		publisher: &recordingPublisher{},
		metrics:   metrics.New(),
	}
	f.mgr = NewManager(f.sessions, f.auth,
		WithPublisher(f.publisher),
		WithMetrics(f.metrics),
		WithLogger(logger),
	)
	return f
}

func loginOK(firstLogin bool) func(context.Context, role.Role, string, string) (*authclient.LoginResult, error) {
	return func(_ context.Context, r role.Role, email, _ string) (*authclient.LoginResult, error) {
		return &authclient.LoginResult{
			Token: "token-for-" + string(r),
			Profile: session.Profile{
				ID:           "1",
				Name:         "Test User",
				Email:        email,
				IsFirstLogin: firstLogin,
			},
		}, nil
	}
}

func TestInitialize_Anonymous(t *testing.T) {
	f := newFixture(t)

	c := f.mgr.Initialize(context.Background(), "browser-1")
	snap := c.Snapshot()

	assert.Equal(t, Anonymous, snap.State)
	assert.False(t, snap.Loading())
	assert.Nil(t, snap.Profile)
	assert.Empty(t, snap.Navigation())
}

func TestNewContext_StartsLoading(t *testing.T) {
	f := newFixture(t)

	c := f.mgr.newContext("browser-1")
	assert.True(t, c.Snapshot().Loading())

	c.load(context.Background())
	assert.False(t, c.Snapshot().Loading())
}

func TestInitialize_RestoresStoredSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sessions.Save(ctx, "b", session.Session{
		Token:   "t",
		Role:    "INDIVIDUAL",
		Profile: session.Profile{ID: "3", Name: "Ivy", Email: "ivy@example.com"},
	}))

	snap := f.mgr.Initialize(ctx, "b").Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	r, ok := snap.Role()
	require.True(t, ok)
	assert.Equal(t, role.Individual, r)
	assert.Equal(t, "Ivy", snap.Profile.Name)
}

func TestInitialize_CorruptUserDataIsAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sessions.Save(ctx, "b", session.Session{Token: "t", Role: "ORG_ADMIN"}))
	require.NoError(t, f.sessions.SetItem(ctx, "b", session.KeyUserData, "{{{"))

	var c *Context
	require.NotPanics(t, func() { c = f.mgr.Initialize(ctx, "b") })
	assert.Equal(t, Anonymous, c.Snapshot().State)
}

func TestInitialize_UnknownRoleKeepsProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sessions.Save(ctx, "b", session.Session{
		Token:   "t",
		Role:    "WAREHOUSE",
		Profile: session.Profile{ID: "8", Name: "W"},
	}))

	snap := f.mgr.Initialize(ctx, "b").Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	_, ok := snap.Role()
	assert.False(t, ok)
	assert.Equal(t, "WAREHOUSE", snap.RawRole)
	assert.Empty(t, snap.Navigation())

	stored, ok := f.sessions.Load(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "W", stored.Profile.Name)
}

func TestLogin_SuccessForEveryRole(t *testing.T) {
	for _, r := range role.All() {
		t.Run(string(r), func(t *testing.T) {
			f := newFixture(t)
			f.auth.loginFunc = loginOK(false)
			ctx := context.Background()

			c := f.mgr.Initialize(ctx, "b")
			out := c.Login(ctx, "u@example.com", "pw", r)

			require.True(t, out.OK)
			dashboard, _ := role.Dashboard(r)
			assert.Equal(t, dashboard, out.Redirect)

			snap := c.Snapshot()
			assert.Equal(t, Authenticated, snap.State)
			got, _ := snap.Role()
			assert.Equal(t, r, got)

			stored, ok := f.sessions.Load(ctx, "b")
			require.True(t, ok)
			assert.Equal(t, "token-for-"+string(r), stored.Token)
			assert.Equal(t, string(r), stored.Role)
			assert.Equal(t, "u@example.com", stored.Profile.Email)

			assert.Equal(t, []events.Type{events.LoginSucceeded}, f.publisher.types())
		})
	}
}

func TestLogin_FirstLoginGoesToReset(t *testing.T) {
	for _, r := range role.All() {
		f := newFixture(t)
		f.auth.loginFunc = loginOK(true)

		c := f.mgr.Initialize(context.Background(), "b")
		out := c.Login(context.Background(), "u@example.com", "pw", r)

		assert.True(t, out.OK)
		assert.Equal(t, role.ResetPasswordPath, out.Redirect, r)
	}
}

func TestLogin_FailureLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = func(context.Context, role.Role, string, string) (*authclient.LoginResult, error) {
		return nil, errors.Join(authclient.ErrLoginFailed, errors.New("connection refused"))
	}
	ctx := context.Background()

	c := f.mgr.Initialize(ctx, "b")
	out := c.Login(ctx, "u@example.com", "bad", role.OrgAdmin)

	assert.False(t, out.OK)
	assert.Equal(t, NoticeLoginFailed, out.Notice)
	assert.Empty(t, out.Redirect)
	assert.Equal(t, Anonymous, c.Snapshot().State)

	_, ok := f.sessions.Load(ctx, "b")
	assert.False(t, ok)
	assert.Equal(t, []events.Type{events.LoginFailed}, f.publisher.types())

	failures := testutil.ToFloat64(f.metrics.AuthOperationsTotal.WithLabelValues("login", "ORG_ADMIN", "failure"))
	assert.Equal(t, 1.0, failures)
}

func TestLogin_FailureKeepsPreviousSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.auth.loginFunc = loginOK(false)
	c := f.mgr.Initialize(ctx, "b")
	require.True(t, c.Login(ctx, "a@example.com", "pw", role.Individual).OK)

	f.auth.loginFunc = nil
	out := c.Login(ctx, "b@example.com", "pw", role.SuperAdmin)
	assert.False(t, out.OK)

	stored, ok := f.sessions.Load(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "INDIVIDUAL", stored.Role)
	assert.Equal(t, "a@example.com", stored.Profile.Email)
}

func TestLogin_UnknownRoleNeverCallsAPI(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(false)

	c := f.mgr.Initialize(context.Background(), "b")
	out := c.Login(context.Background(), "u@example.com", "pw", role.Role("GUEST"))

	assert.False(t, out.OK)
	assert.Equal(t, 0, f.auth.loginCalls)
}

func TestLogin_ConcurrentSubmissionRejected(t *testing.T) {
	f := newFixture(t)
	release := make(chan struct{})
	entered := make(chan struct{})
	f.auth.loginFunc = func(ctx context.Context, r role.Role, email, pw string) (*authclient.LoginResult, error) {
		close(entered)
		<-release
		return loginOK(false)(ctx, r, email, pw)
	}
	ctx := context.Background()

	first := f.mgr.Initialize(ctx, "b")
	done := make(chan Outcome)
	go func() { done <- first.Login(ctx, "u@example.com", "pw", role.Individual) }()
	<-entered

	second := f.mgr.Initialize(ctx, "b")
	out := second.Login(ctx, "u@example.com", "pw", role.Individual)
	assert.False(t, out.OK)
	assert.Equal(t, NoticeLoginPending, out.Notice)

	close(release)
	assert.True(t, (<-done).OK)
	assert.Equal(t, 1, f.auth.loginCalls)

	// another browser is unaffected, and the flag is released afterwards
	f.auth.loginFunc = loginOK(false)
	assert.True(t, f.mgr.Initialize(ctx, "other").Login(ctx, "x@example.com", "pw", role.OrgAdmin).OK)
	assert.True(t, second.Login(ctx, "u@example.com", "pw", role.Individual).OK)
}

func TestLogin_CompletesWhenCallerGoesAway(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = func(ctx context.Context, r role.Role, email, pw string) (*authclient.LoginResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return loginOK(false)(ctx, r, email, pw)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := f.mgr.Initialize(context.Background(), "b").Login(ctx, "u@example.com", "pw", role.Individual)
	assert.True(t, out.OK)
}

func TestLogout(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(false)
	ctx := context.Background()

	c := f.mgr.Initialize(ctx, "b")
	require.True(t, c.Login(ctx, "u@example.com", "pw", role.SuperAdmin).OK)

	out := c.Logout(ctx)
	assert.True(t, out.OK)
	assert.Equal(t, role.LoginPath, out.Redirect)
	assert.Equal(t, Anonymous, c.Snapshot().State)

	_, ok := f.sessions.Load(ctx, "b")
	assert.False(t, ok)

	// idempotent
	again := c.Logout(ctx)
	assert.True(t, again.OK)
	assert.Equal(t, Anonymous, c.Snapshot().State)
	_, ok = c.Token()
	assert.False(t, ok)
}

func TestLogout_WhenNeverSignedIn(t *testing.T) {
	f := newFixture(t)

	out := f.mgr.Initialize(context.Background(), "fresh").Logout(context.Background())
	assert.True(t, out.OK)
	assert.Equal(t, role.LoginPath, out.Redirect)
}

func TestResetPassword_Anonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.sessions.SetItem(ctx, "b", "unrelated", "keep"))

	out, err := f.mgr.Initialize(ctx, "b").ResetPassword(ctx, "u@example.com", "n3w")
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	assert.False(t, out.OK)
	assert.Empty(t, f.auth.resetCalls)

	_, ok := f.sessions.Load(ctx, "b")
	assert.False(t, ok)
	v, err := f.sessions.GetItem(ctx, "b", "unrelated")
	require.NoError(t, err)
	assert.Equal(t, "keep", v)
}

func TestResetPassword_ClearsFirstLogin(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(true)
	ctx := context.Background()

	c := f.mgr.Initialize(ctx, "b")
	require.Equal(t, role.ResetPasswordPath, c.Login(ctx, "u@example.com", "pw", role.OrgAdmin).Redirect)

	out, err := c.ResetPassword(ctx, "u@example.com", "n3w-secret")
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "/org-admin/dashboard", out.Redirect)
	assert.Equal(t, []string{"org_admin"}, f.auth.resetCalls)
	assert.Equal(t, []string{"token-for-ORG_ADMIN"}, f.auth.resetTokens)

	stored, ok := f.sessions.Load(ctx, "b")
	require.True(t, ok)
	assert.False(t, stored.Profile.IsFirstLogin)
	assert.False(t, c.Snapshot().Profile.IsFirstLogin)
}

func TestResetPassword_ForeignAccountRefused(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(true)
	ctx := context.Background()

	c := f.mgr.Initialize(ctx, "b")
	c.Login(ctx, "u@example.com", "pw", role.OrgAdmin)

	out, err := c.ResetPassword(ctx, "victim@example.com", "hijack1")
	assert.ErrorIs(t, err, ErrForeignAccount)
	assert.False(t, out.OK)
	assert.Equal(t, NoticeOwnAccount, out.Notice)
	assert.Empty(t, f.auth.resetCalls)

	stored, ok := f.sessions.Load(ctx, "b")
	require.True(t, ok)
	assert.True(t, stored.Profile.IsFirstLogin)
}

func TestResetPassword_DefaultsToOwnEmail(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(false)
	var gotEmail string
	f.auth.resetFunc = func(_ context.Context, _, email, _ string) error {
		gotEmail = email
		return nil
	}
	ctx := context.Background()

	c := f.mgr.Initialize(ctx, "b")
	c.Login(ctx, "u@example.com", "pw", role.Individual)

	out, err := c.ResetPassword(ctx, "", "n3w-secret")
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.Equal(t, "u@example.com", gotEmail)

	// Case differences still name the same account
	out, err = c.ResetPassword(ctx, "U@Example.com", "n3w-secret")
	require.NoError(t, err)
	assert.True(t, out.OK)
}

func TestLogin_MetricRoleLabelIsBounded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, r := range []string{"aaa1", "aaa2", "aaa3", "whatever"} {
		f.mgr.Initialize(ctx, "b-"+r).Login(ctx, "u@example.com", "pw", role.Role(r))
	}

	assert.Equal(t, 1, testutil.CollectAndCount(f.metrics.AuthOperationsTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.AuthOperationsTotal.WithLabelValues("login", "unknown", "failure")))
}

func TestResetPassword_FailureLeavesState(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(true)
	f.auth.resetFunc = func(context.Context, string, string, string) error {
		return authclient.ErrResetFailed
	}
	ctx := context.Background()

	c := f.mgr.Initialize(ctx, "b")
	c.Login(ctx, "u@example.com", "pw", role.Individual)

	out, err := c.ResetPassword(ctx, "u@example.com", "x")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Equal(t, NoticeResetFailed, out.Notice)

	stored, _ := f.sessions.Load(ctx, "b")
	assert.True(t, stored.Profile.IsFirstLogin)
}

func TestResetPassword_UnknownRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.sessions.Save(ctx, "b", session.Session{Token: "t", Role: "GHOST", Profile: session.Profile{ID: "1", Email: "u@example.com"}}))

	out, err := f.mgr.Initialize(ctx, "b").ResetPassword(ctx, "u@example.com", "x")
	require.NoError(t, err)
	assert.False(t, out.OK)
	assert.Empty(t, f.auth.resetCalls)
}

func TestInvalidate(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(false)
	ctx := context.Background()

	f.mgr.Initialize(ctx, "b").Login(ctx, "u@example.com", "pw", role.Individual)
	f.mgr.Invalidate(ctx, "b", "upstream 401")

	assert.Equal(t, Anonymous, f.mgr.Initialize(ctx, "b").Snapshot().State)
	assert.Contains(t, f.publisher.types(), events.SessionInvalidated)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.UpstreamRejectionsTotal))
}

func TestDispose(t *testing.T) {
	f := newFixture(t)
	f.mgr.Dispose()
	f.mgr.Dispose()

	assert.True(t, f.publisher.closed)

	f.mgr.Initialize(context.Background(), "b").Logout(context.Background())
	assert.Empty(t, f.publisher.types())
}

func TestSnapshotIsACopy(t *testing.T) {
	f := newFixture(t)
	f.auth.loginFunc = loginOK(false)
	ctx := context.Background()

	c := f.mgr.Initialize(ctx, "b")
	c.Login(ctx, "u@example.com", "pw", role.Individual)

	snap := c.Snapshot()
	snap.Profile.Name = "changed"
	snap.RawRole = "SUPER_ADMIN"

	again := c.Snapshot()
	assert.Equal(t, "Test User", again.Profile.Name)
	assert.Equal(t, "INDIVIDUAL", again.RawRole)
}
