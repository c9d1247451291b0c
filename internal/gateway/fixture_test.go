package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tailorly/internal/authclient"
	"tailorly/internal/authctx"
	"tailorly/internal/metrics"
	"tailorly/internal/role"
	"tailorly/internal/session"
	"tailorly/internal/upstream"
	"tailorly/internal/wizard"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Mock auth service for testing
type mockAuthService struct {
	mu        sync.Mutex
	loginFunc func(ctx context.Context, r role.Role, email, password string) (*authclient.LoginResult, error)
	resetFunc func(ctx context.Context, token, userType, email, newPassword string) error
	resets    []string
}

func (m *mockAuthService) LoginAs(ctx context.Context, r role.Role, email, password string) (*authclient.LoginResult, error) {
	if m.loginFunc != nil {
		return m.loginFunc(ctx, r, email, password)
	}
	return nil, authclient.ErrLoginFailed
}

func (m *mockAuthService) ResetPassword(ctx context.Context, token, userType, email, newPassword string) error {
	m.mu.Lock()
	m.resets = append(m.resets, userType+":"+email)
	m.mu.Unlock()
	if m.resetFunc != nil {
		return m.resetFunc(ctx, token, userType, email, newPassword)
	}
	return nil
}

type fixture struct {
	router   *gin.Engine
	sessions session.Manager
	auth     *mockAuthService
	metrics  *metrics.Metrics

	apiMu      sync.Mutex
	apiHandler http.HandlerFunc
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{auth: &mockAuthService{}}

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.apiMu.Lock()
		h := f.apiHandler
		f.apiMu.Unlock()
		if h == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(api.Close)

	logger := discardLogger()
	store := session.NewMemoryStore(time.Minute)
	f.sessions = session.NewManager(store, time.Hour, logger)
	f.metrics = metrics.New()

	resolver, err := upstream.NewStatic(api.URL)
	if err != nil {
		t.Fatalf("Failed to create resolver: %v", err)
	}
	apiClient := upstream.NewClient(resolver, 2*time.Second, logger)

	mgr := authctx.NewManager(f.sessions, f.auth,
		authctx.WithMetrics(f.metrics),
		authctx.WithLogger(logger),
	)

	f.router = SetupRouter(Dependencies{
		Auth:           mgr,
		Wizards:        wizard.NewStore(f.sessions, logger),
		API:            apiClient,
		Storage:        store,
		Metrics:        f.metrics,
		Logger:         logger,
		AllowedOrigins: []string{"http://localhost:5173"},
	})
	return f
}

func (f *fixture) setAPI(h http.HandlerFunc) {
	f.apiMu.Lock()
	f.apiHandler = h
	f.apiMu.Unlock()
}

// signIn stores a session for a fresh browser and returns its id
func (f *fixture) signIn(t *testing.T, rawRole string, firstLogin bool) string {
	t.Helper()
	browserID := uuid.New().String()
	err := f.sessions.Save(context.Background(), browserID, session.Session{
		Token: "tok-" + browserID[:8],
		Role:  rawRole,
		Profile: session.Profile{
			ID:           "1",
			Name:         "Ada Stitch",
			Email:        "ada@example.com",
			IsFirstLogin: firstLogin,
		},
	})
	if err != nil {
		t.Fatalf("Failed to seed session: %v", err)
	}
	return browserID
}

func (f *fixture) hasSession(browserID string) bool {
	_, ok := f.sessions.Load(context.Background(), browserID)
	return ok
}

type requestOption func(*http.Request)

func withJSON(body string) requestOption {
	return func(r *http.Request) {
		r.Body = io.NopCloser(strings.NewReader(body))
		r.ContentLength = int64(len(body))
		r.Header.Set("Content-Type", "application/json")
	}
}

func withForm(body string) requestOption {
	return func(r *http.Request) {
		r.Body = io.NopCloser(strings.NewReader(body))
		r.ContentLength = int64(len(body))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
}

func withHeader(k, v string) requestOption {
	return func(r *http.Request) { r.Header.Set(k, v) }
}

func (f *fixture) do(method, path, browserID string, opts ...requestOption) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if browserID != "" {
		req.AddCookie(&http.Cookie{Name: BrowserCookie, Value: browserID})
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

var errRejected = errors.New("invalid credentials")
