// Package role defines the closed set of user roles and everything derived
// from a role: landing route, route prefix, login endpoint, reset-password tag
// and the navigation shown to that role.
//
// All role-keyed branching lives in the table below. Adding a role means adding
// one entry there.
package role

// Role is one of the three roles the remote API issues.
type Role string

const (
	SuperAdmin Role = "SUPER_ADMIN"
	OrgAdmin   Role = "ORG_ADMIN"
	Individual Role = "INDIVIDUAL"
)

// Well-known routes that do not belong to a role.
const (
	HomePath          = "/"
	LoginPath         = "/login"
	ResetPasswordPath = "/reset-password"
	UnauthorizedPath  = "/unauthorized"
)

// NavItem is a single entry in a role's navigation bar.
type NavItem struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

type entry struct {
	prefix    string
	dashboard string
	userType  string
	nav       []NavItem
}

var table = map[Role]entry{
	SuperAdmin: {
		prefix:    "/super-admin",
		dashboard: "/super-admin/dashboard",
		userType:  "super_admin",
		nav: []NavItem{
			{Label: "Dashboard", Path: "/super-admin/dashboard"},
			{Label: "Organizations", Path: "/super-admin/organizations"},
			{Label: "Products", Path: "/super-admin/products"},
			{Label: "Orders", Path: "/super-admin/orders"},
		},
	},
	OrgAdmin: {
		prefix:    "/org-admin",
		dashboard: "/org-admin/dashboard",
		userType:  "org_admin",
		nav: []NavItem{
			{Label: "Dashboard", Path: "/org-admin/dashboard"},
			{Label: "Users", Path: "/org-admin/users"},
			{Label: "Measurements", Path: "/org-admin/measurements"},
			{Label: "Orders", Path: "/org-admin/orders"},
		},
	},
	Individual: {
		prefix:    "/individual",
		dashboard: "/individual/dashboard",
		userType:  "individual",
		nav: []NavItem{
			{Label: "Dashboard", Path: "/individual/dashboard"},
			{Label: "My Measurements", Path: "/individual/measurements"},
			{Label: "My Orders", Path: "/individual/orders"},
			{Label: "New Order", Path: "/individual/orders/new"},
		},
	},
}

// All returns the known roles in a stable order.
func All() []Role {
	return []Role{SuperAdmin, OrgAdmin, Individual}
}

// Parse maps a stored role string to a Role. Any value outside the closed set
// reports false.
func Parse(s string) (Role, bool) {
	r := Role(s)
	if _, ok := table[r]; !ok {
		return "", false
	}
	return r, true
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, ok := table[r]
	return ok
}

func (r Role) String() string {
	return string(r)
}

// Dashboard returns the default landing route for r.
func Dashboard(r Role) (string, bool) {
	e, ok := table[r]
	if !ok {
		return "", false
	}
	return e.dashboard, true
}

// Prefix returns the route prefix owned by r, e.g. "/org-admin".
func Prefix(r Role) (string, bool) {
	e, ok := table[r]
	if !ok {
		return "", false
	}
	return e.prefix, true
}

// UserType returns the tag the remote API expects for r, used both as the
// login endpoint suffix and as the reset-password user_type.
func UserType(r Role) (string, bool) {
	e, ok := table[r]
	if !ok {
		return "", false
	}
	return e.userType, true
}

// Navigation returns the ordered navigation entries for r. Unknown roles and
// the empty role get an empty list.
func Navigation(r Role) []NavItem {
	e, ok := table[r]
	if !ok {
		return []NavItem{}
	}
	items := make([]NavItem, len(e.nav))
	copy(items, e.nav)
	return items
}
