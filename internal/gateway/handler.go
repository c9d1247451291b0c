package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httputil"

	"tailorly/internal/authctx"
	"tailorly/internal/upstream"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether session storage is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// ProxyHandler forwards feature requests to the remote API on behalf of the
// signed-in browser
type ProxyHandler struct {
	resolver upstream.Resolver
	auth     *authctx.Manager
	logger   *slog.Logger
}

// NewProxyHandler creates a new proxy handler
func NewProxyHandler(resolver upstream.Resolver, auth *authctx.Manager, logger *slog.Logger) *ProxyHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyHandler{
		resolver: resolver,
		auth:     auth,
		logger:   logger,
	}
}

// Proxy forwards the request unchanged in path and query, replacing browser
// credentials with the session's bearer token. A 401 from the API ends the
// session.
func (h *ProxyHandler) Proxy(c *gin.Context) {
	ac := authContext(c)
	token, ok := ac.Token()
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error":    "unauthorized",
			"redirect": "/login",
		})
		return
	}

	target, err := h.resolver.BaseURL(c.Request.Context())
	if err != nil {
		h.logger.Error("Failed to resolve API",
			"request_id", c.GetString(ctxRequestID),
			"error", err.Error(),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "api unavailable",
		})
		return
	}
	c.Set("upstream", target.Host)

	requestID := c.GetString(ctxRequestID)
	browserID := ac.BrowserID()

	proxy := httputil.NewSingleHostReverseProxy(target)

	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		if errors.Is(err, context.Canceled) {
			return
		}
		h.logger.Error("Proxy error",
			"request_id", requestID,
			"upstream", target.Host,
			"error", err.Error(),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte(`{"error":"bad gateway"}`))
	}

	originalDirector := proxy.Director
	proxy.Director = func(req *http.Request) {
		originalDirector(req)
		req.Host = target.Host

		// The browser cookie is ours; the API only sees the bearer token
		req.Header.Del("Cookie")
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("X-Request-ID", requestID)
	}

	proxy.ModifyResponse = func(resp *http.Response) error {
		if resp.StatusCode != http.StatusUnauthorized {
			return nil
		}
		h.auth.Invalidate(context.WithoutCancel(resp.Request.Context()), browserID, "api rejected credential")
		resp.Header.Set("X-Session-Expired", "true")
		return nil
	}

	proxy.ServeHTTP(c.Writer, c.Request)
}

// Health reports liveness and whether session storage answers
func Health(store Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store != nil {
			if err := store.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"service": "web",
					"error":   "session storage unreachable",
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "web",
		})
	}
}
