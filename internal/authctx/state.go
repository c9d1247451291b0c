package authctx

import (
	"tailorly/internal/role"
	"tailorly/internal/session"
)

// State is the authentication state of one browser
type State int

const (
	// Uninitialized means the stored session has not been read yet
	Uninitialized State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return "unknown"
	}
}

// Snapshot is a read-only copy of a Context, handed to the route guard and
// navigation. Mutating it has no effect on the session.
type Snapshot struct {
	State State
	// RawRole is the stored role string, even when it is not a known role
	RawRole string
	Profile *session.Profile
}

// Loading reports whether the session is still being read
func (s Snapshot) Loading() bool {
	return s.State == Uninitialized
}

// Authenticated reports whether a complete session is present
func (s Snapshot) Authenticated() bool {
	return s.State == Authenticated
}

// Role returns the parsed role; false when anonymous or the stored value is unknown
func (s Snapshot) Role() (role.Role, bool) {
	if s.State != Authenticated {
		return "", false
	}
	return role.Parse(s.RawRole)
}

// Navigation is the navigation derived from the snapshot's role
func (s Snapshot) Navigation() []role.NavItem {
	r, _ := s.Role()
	return role.Navigation(r)
}

// Outcome is what a public Context operation settles to. Callers only ever see
// an Outcome; transport and storage errors are folded into Notice.
type Outcome struct {
	OK       bool   `json:"ok"`
	Redirect string `json:"redirect,omitempty"`
	Notice   string `json:"notice,omitempty"`
}
