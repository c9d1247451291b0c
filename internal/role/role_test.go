package role

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"SUPER_ADMIN", SuperAdmin, true},
		{"ORG_ADMIN", OrgAdmin, true},
		{"INDIVIDUAL", Individual, true},
		{"individual", "", false},
		{"ADMIN", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := Parse(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDashboard(t *testing.T) {
	cases := map[Role]string{
		SuperAdmin: "/super-admin/dashboard",
		OrgAdmin:   "/org-admin/dashboard",
		Individual: "/individual/dashboard",
	}
	for r, want := range cases {
		got, ok := Dashboard(r)
		require.True(t, ok, r)
		assert.Equal(t, want, got)
	}

	_, ok := Dashboard(Role("GUEST"))
	assert.False(t, ok)
}

func TestUserType(t *testing.T) {
	cases := map[Role]string{
		SuperAdmin: "super_admin",
		OrgAdmin:   "org_admin",
		Individual: "individual",
	}
	for r, want := range cases {
		got, ok := UserType(r)
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestNavigation_KnownRoles(t *testing.T) {
	for _, r := range All() {
		items := Navigation(r)
		require.NotEmpty(t, items, r)

		dashboard, _ := Dashboard(r)
		assert.Equal(t, dashboard, items[0].Path, "first entry is the dashboard")

		prefix, _ := Prefix(r)
		for _, item := range items {
			assert.Contains(t, item.Path, prefix)
		}
	}
}

func TestNavigation_UnknownRoleIsEmpty(t *testing.T) {
	assert.Empty(t, Navigation(""))
	assert.Empty(t, Navigation(Role("FUTURE_ROLE")))
	assert.NotNil(t, Navigation(Role("FUTURE_ROLE")))
}

func TestNavigation_ReturnsCopy(t *testing.T) {
	items := Navigation(OrgAdmin)
	items[0].Label = "changed"

	assert.Equal(t, "Dashboard", Navigation(OrgAdmin)[0].Label)
}
