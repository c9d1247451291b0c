package gateway

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"tailorly/internal/authctx"
	"tailorly/internal/guard"
	"tailorly/internal/metrics"
	"tailorly/internal/role"
	"tailorly/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Gin context keys
const (
	ctxRequestID = "request_id"
	ctxAuth      = "auth"
	ctxBrowserID = "browser_id"
	ctxRole      = "role"
)

// BrowserCookie names the cookie that identifies a browser's storage namespace
const BrowserCookie = "browser_id"

// DefaultBrowserCookieAge keeps the browser id for a year, like local storage would
const DefaultBrowserCookieAge = 365 * 24 * time.Hour

// CookieOptions controls the browser id cookie
type CookieOptions struct {
	MaxAge time.Duration
	Secure bool
}

// CORSMiddleware handles CORS for the web tier. Credentials are allowed so the
// browser cookie travels with cross-origin requests from the configured origins.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

// RequestIDMiddleware assigns a request id, reusing a well-formed incoming one
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.New().String()
		}

		c.Set(ctxRequestID, requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)

		c.Next()
	}
}

// BrowserMiddleware identifies the browser by its cookie, issuing a new id when
// absent, and rehydrates its authentication Context from storage.
func BrowserMiddleware(auth *authctx.Manager, opts CookieOptions) gin.HandlerFunc {
	if opts.MaxAge <= 0 {
		opts.MaxAge = DefaultBrowserCookieAge
	}

	return func(c *gin.Context) {
		browserID, err := c.Cookie(BrowserCookie)
		if err != nil || uuid.Validate(browserID) != nil {
			browserID = session.NewBrowserID()
			http.SetCookie(c.Writer, &http.Cookie{
				Name:     BrowserCookie,
				Value:    browserID,
				Path:     "/",
				MaxAge:   int(opts.MaxAge.Seconds()),
				HttpOnly: true,
				Secure:   opts.Secure,
				SameSite: http.SameSiteLaxMode,
			})
		}

		ac := auth.Initialize(c.Request.Context(), browserID)
		c.Set(ctxAuth, ac)
		c.Set(ctxBrowserID, browserID)
		if snap := ac.Snapshot(); snap.Authenticated() {
			c.Set(ctxRole, snap.RawRole)
		}

		c.Next()
	}
}

// authContext returns the Context installed by BrowserMiddleware
func authContext(c *gin.Context) *authctx.Context {
	v, ok := c.Get(ctxAuth)
	if !ok {
		return nil
	}
	ac, _ := v.(*authctx.Context)
	return ac
}

// RequireRoles guards a route. With no roles any known role is admitted.
// Page requests are redirected; API and JSON requests get a status code with
// the redirect target in the body.
func RequireRoles(m *metrics.Metrics, allowed ...role.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		ac := authContext(c)
		if ac == nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error": "internal server error",
			})
			return
		}

		decision := guard.Decide(ac.Snapshot(), allowed)
		m.GuardDecision(decision.Kind.String())

		switch decision.Kind {
		case guard.Render:
			c.Next()
			return
		case guard.Loading:
			c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"state": "loading"})
			return
		}

		slog.Debug("Route guard redirect",
			"request_id", c.GetString(ctxRequestID),
			"path", c.Request.URL.Path,
			"decision", decision.Kind.String(),
			"target", decision.Target,
		)

		if !wantsJSON(c) {
			c.Redirect(http.StatusFound, decision.Target)
			c.Abort()
			return
		}

		status := http.StatusForbidden
		if decision.Kind == guard.RedirectLogin {
			status = http.StatusUnauthorized
		}
		c.AbortWithStatusJSON(status, gin.H{
			"error":    decision.Kind.String(),
			"redirect": decision.Target,
		})
	}
}

// wantsJSON reports whether the caller is a script rather than a page load
func wantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json") ||
		strings.HasPrefix(c.ContentType(), "application/json")
}

// MetricsMiddleware records request counts and latency by route template
func MetricsMiddleware(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// LoggingMiddleware logs all requests with structured attributes
func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}

	return func(c *gin.Context) {
		start := time.Now()

		// Wrap the response writer to capture response size
		rw := newResponseWriter(c.Writer)
		c.Writer = rw

		c.Next()

		latencyMs := float64(time.Since(start).Milliseconds())
		// Use Gin's writer Status() which handles aborted requests correctly
		status := c.Writer.Status()

		attrs := []any{
			"request_id", c.GetString(ctxRequestID),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency_ms", latencyMs,
			"client_ip", c.ClientIP(),
			"user_agent", c.Request.UserAgent(),
			"response_size", rw.Size(),
		}

		if query := c.Request.URL.RawQuery; query != "" {
			attrs = append(attrs, "query", query)
		}
		if browserID := c.GetString(ctxBrowserID); browserID != "" {
			attrs = append(attrs, "browser_id", browserID)
		}
		if r := c.GetString(ctxRole); r != "" {
			attrs = append(attrs, "role", r)
		}
		if upstream, exists := c.Get("upstream"); exists {
			attrs = append(attrs, "upstream", upstream)
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, "error", c.Errors.String())
		}

		switch {
		case status >= 500:
			logger.Error("Request failed - server error", attrs...)
		case status >= 400:
			logger.Warn("Request failed - client error", attrs...)
		default:
			logger.Info("Request completed", attrs...)
		}
	}
}
