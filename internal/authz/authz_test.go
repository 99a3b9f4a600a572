package authz_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sandwich_hub/internal/authz"
	"sandwich_hub/internal/domain"
)

func TestCan(t *testing.T) {
	tests := []struct {
		name string
		user *domain.User
		cap  authz.Capability
		want bool
	}{
		{"super admin deletes conversations", &domain.User{Role: authz.RoleSuperAdmin, IsActive: true}, authz.DeleteConversations, true},
		{"admin moderates", &domain.User{Role: authz.RoleAdmin, IsActive: true}, authz.ModerateMessages, true},
		{"admin cannot delete conversations", &domain.User{Role: authz.RoleAdmin, IsActive: true}, authz.DeleteConversations, false},
		{"volunteer cannot moderate", &domain.User{Role: authz.RoleVolunteer, IsActive: true}, authz.ModerateMessages, false},
		{"explicit grant", &domain.User{Role: authz.RoleVolunteer, IsActive: true, Permissions: []string{"moderate_messages"}}, authz.ModerateMessages, true},
		{"grant is not a role", &domain.User{Role: authz.RoleVolunteer, IsActive: true, Permissions: []string{"super_admin"}}, authz.DeleteConversations, false},
		{"inactive super admin", &domain.User{Role: authz.RoleSuperAdmin}, authz.ModerateMessages, false},
		{"unknown role", &domain.User{Role: "owner", IsActive: true}, authz.ManageTasks, false},
		{"nil user", nil, authz.ManageTasks, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, authz.Can(tt.user, tt.cap))
		})
	}
}

func TestCapabilities(t *testing.T) {
	req := require.New(t)
	u := &domain.User{Role: authz.RoleCoreTeam, IsActive: true, Permissions: []string{"create_channels"}}

	req.Equal([]authz.Capability{authz.CreateChannels, authz.ManageTasks}, authz.Capabilities(u))
	req.True(authz.ValidRole(authz.RoleViewer))
	req.False(authz.ValidRole("owner"))
	req.True(authz.ValidCapability("manage_users"))
	req.False(authz.ValidCapability("admin"))
}
