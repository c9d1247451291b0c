// Package gateway is the HTTP surface of the web tier. It identifies each
// browser by cookie, rehydrates its authentication state, guards role pages
// and forwards feature requests to the remote API with the session's token.
package gateway

import (
	"log/slog"
	"net/http"

	"tailorly/internal/authctx"
	"tailorly/internal/metrics"
	"tailorly/internal/role"
	"tailorly/internal/upstream"
	"tailorly/internal/wizard"

	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the router wires together
type Dependencies struct {
	Auth    *authctx.Manager
	Wizards *wizard.Store
	API     *upstream.Client
	Storage Pinger
	Metrics *metrics.Metrics
	Logger  *slog.Logger
	Cookie  CookieOptions
	// AllowedOrigins empty disables CORS handling
	AllowedOrigins []string
}

// resource is a feature collection proxied to the remote API
type resource struct {
	name  string
	read  []role.Role
	write []role.Role
}

var resources = []resource{
	{name: "organizations", read: []role.Role{role.SuperAdmin}, write: []role.Role{role.SuperAdmin}},
	{name: "products", write: []role.Role{role.SuperAdmin}},
	{name: "users", read: []role.Role{role.SuperAdmin, role.OrgAdmin}, write: []role.Role{role.SuperAdmin, role.OrgAdmin}},
	{name: "measurements", read: []role.Role{role.OrgAdmin, role.Individual}, write: []role.Role{role.OrgAdmin, role.Individual}},
	{name: "orders", write: []role.Role{role.OrgAdmin, role.Individual}},
}

var writeMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete}

// SetupRouter configures and returns the web router
func SetupRouter(deps Dependencies) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(deps.Logger))
	r.Use(MetricsMiddleware(deps.Metrics))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(CORSMiddleware(deps.AllowedOrigins))
	}

	r.GET("/health", Health(deps.Storage))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}
	r.NoRoute(NotFound)

	// Everything below knows which browser is calling
	web := r.Group("")
	web.Use(BrowserMiddleware(deps.Auth, deps.Cookie))

	authHandler := NewAuthHandler()
	anyRole := RequireRoles(deps.Metrics)

	// Public routes
	web.GET(role.HomePath, Home)
	web.GET(role.LoginPath, authHandler.LoginPage)
	web.POST(role.LoginPath, authHandler.Login)
	web.POST("/logout", authHandler.Logout)
	web.GET(role.UnauthorizedPath, Unauthorized)
	web.GET("/api/session", Session)

	// Any signed-in role
	web.GET(role.ResetPasswordPath, anyRole, authHandler.ResetPasswordPage)
	web.POST(role.ResetPasswordPath, anyRole, authHandler.ResetPassword)
	web.GET("/api/navigation", anyRole, Navigation)

	// Role pages: every navigation entry of a role is a screen only that role may open
	for _, rl := range role.All() {
		prefix, _ := role.Prefix(rl)
		pages := web.Group(prefix, RequireRoles(deps.Metrics, rl))
		for _, item := range role.Navigation(rl) {
			pages.GET(item.Path[len(prefix):], Screen(item.Path))
		}
	}

	// Feature CRUD, forwarded to the remote API
	proxy := NewProxyHandler(deps.API.Resolver(), deps.Auth, deps.Logger)
	api := web.Group("/api")
	for _, res := range resources {
		group := api.Group("/" + res.name)
		read := RequireRoles(deps.Metrics, res.read...)
		write := RequireRoles(deps.Metrics, res.write...)
		for _, p := range []string{"/*path", ""} {
			group.GET(p, read, proxy.Proxy)
			group.HEAD(p, read, proxy.Proxy)
			for _, method := range writeMethods {
				group.Handle(method, p, write, proxy.Proxy)
			}
		}
	}

	// Multi-step forms
	wizards := NewWizardHandler(deps.Wizards, deps.API, deps.Auth, deps.Logger)
	wizards.Register(api.Group("/wizards", RequireRoles(deps.Metrics, role.OrgAdmin, role.Individual)))

	return r
}
