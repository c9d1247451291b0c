// Package guard decides, for each navigation, whether a route may render for
// the current authentication state.
package guard

import (
	"slices"

	"tailorly/internal/authctx"
	"tailorly/internal/role"
)

// Kind is the outcome class of a guard decision
type Kind int

const (
	Render Kind = iota
	// Loading means the session is still being read; no redirect is made
	Loading
	RedirectLogin
	RedirectDashboard
	RedirectUnauthorized
)

func (k Kind) String() string {
	switch k {
	case Render:
		return "render"
	case Loading:
		return "loading"
	case RedirectLogin:
		return "redirect_login"
	case RedirectDashboard:
		return "redirect_dashboard"
	case RedirectUnauthorized:
		return "redirect_unauthorized"
	default:
		return "unknown"
	}
}

// Decision is the guard's verdict for one navigation
type Decision struct {
	Kind   Kind
	Target string // redirect path; empty for Render and Loading
}

// Decide evaluates snap against the roles a route allows. An empty allowed
// list admits any known role.
func Decide(snap authctx.Snapshot, allowed []role.Role) Decision {
	if snap.Loading() {
		return Decision{Kind: Loading}
	}
	if !snap.Authenticated() {
		return Decision{Kind: RedirectLogin, Target: role.LoginPath}
	}

	r, known := snap.Role()
	if !known {
		return Decision{Kind: RedirectUnauthorized, Target: role.UnauthorizedPath}
	}
	if len(allowed) == 0 || slices.Contains(allowed, r) {
		return Decision{Kind: Render}
	}

	dashboard, _ := role.Dashboard(r)
	return Decision{Kind: RedirectDashboard, Target: dashboard}
}
