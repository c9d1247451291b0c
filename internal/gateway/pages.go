package gateway

import (
	"net/http"
	"path"

	"tailorly/internal/authctx"
	"tailorly/internal/role"

	"github.com/gin-gonic/gin"
)

// screenName derives a page id from a route, e.g. /org-admin/users -> org_admin_users
func screenName(route string) string {
	name := []byte(route[1:])
	for i, b := range name {
		if b == '/' || b == '-' {
			name[i] = '_'
		}
	}
	return string(name)
}

// Screen renders a role page as a view model: page id, navigation and profile
func Screen(route string) gin.HandlerFunc {
	page := screenName(route)
	return func(c *gin.Context) {
		snap := authContext(c).Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"page":       page,
			"title":      path.Base(route),
			"role":       snap.RawRole,
			"profile":    snap.Profile,
			"navigation": snap.Navigation(),
		})
	}
}

// Home is the public landing page
func Home(c *gin.Context) {
	snap := authContext(c).Snapshot()
	body := gin.H{
		"page":          "home",
		"authenticated": snap.Authenticated(),
		"navigation":    snap.Navigation(),
	}
	if r, ok := snap.Role(); ok {
		body["dashboard"], _ = role.Dashboard(r)
	}
	c.JSON(http.StatusOK, body)
}

// Unauthorized is where browsers with an unrecognised role end up
func Unauthorized(c *gin.Context) {
	c.JSON(http.StatusForbidden, gin.H{
		"page":   "unauthorized",
		"notice": "You do not have access to this page.",
	})
}

// NotFound is the fallback for unknown routes
func NotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{
		"page":  "not_found",
		"error": "not found",
		"path":  c.Request.URL.Path,
	})
}

// SessionView is the client-side view of the authentication state
type SessionView struct {
	State      string         `json:"state"`
	Role       string         `json:"role,omitempty"`
	KnownRole  bool           `json:"known_role"`
	Dashboard  string         `json:"dashboard,omitempty"`
	Profile    any            `json:"profile,omitempty"`
	Navigation []role.NavItem `json:"navigation"`
}

func sessionView(snap authctx.Snapshot) SessionView {
	v := SessionView{
		State:      snap.State.String(),
		Role:       snap.RawRole,
		Navigation: snap.Navigation(),
	}
	if snap.Profile != nil {
		v.Profile = snap.Profile
	}
	if r, ok := snap.Role(); ok {
		v.KnownRole = true
		v.Dashboard, _ = role.Dashboard(r)
	}
	return v
}

// Session handles GET /api/session. It never redirects.
func Session(c *gin.Context) {
	c.JSON(http.StatusOK, sessionView(authContext(c).Snapshot()))
}

// Navigation handles GET /api/navigation
func Navigation(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"navigation": authContext(c).Snapshot().Navigation(),
	})
}
