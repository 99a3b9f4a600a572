// Package authz holds the one capability check every mutating operation consults.
package authz

import (
	"github.com/samber/lo"

	"sandwich_hub/internal/domain"
)

type Capability string

const (
	ModerateMessages       Capability = "moderate_messages"
	ManageAllConversations Capability = "manage_all_conversations"
	DeleteConversations    Capability = "delete_conversations"
	CreateChannels         Capability = "create_channels"
	ManageTasks            Capability = "manage_tasks"
	ManageUsers            Capability = "manage_users"
)

const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleCoreTeam   = "core_team"
	RoleVolunteer  = "volunteer"
	RoleViewer     = "viewer"
)

var all = []Capability{
	ModerateMessages,
	ManageAllConversations,
	DeleteConversations,
	CreateChannels,
	ManageTasks,
	ManageUsers,
}

var roleCapabilities = map[string][]Capability{
	RoleSuperAdmin: all,
	RoleAdmin:      {ModerateMessages, CreateChannels, ManageTasks, ManageUsers},
	RoleCoreTeam:   {ManageTasks},
	RoleVolunteer:  nil,
	RoleViewer:     nil,
}

// Can reports whether u holds c, either through its role or an explicit grant.
func Can(u *domain.User, c Capability) bool {
	if u == nil || !u.IsActive {
		return false
	}
	if lo.Contains(roleCapabilities[u.Role], c) {
		return true
	}
	return lo.Contains(u.Permissions, string(c))
}

// Capabilities lists everything u may do, in declaration order.
func Capabilities(u *domain.User) []Capability {
	return lo.Filter(all, func(c Capability, _ int) bool { return Can(u, c) })
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := roleCapabilities[role]
	return ok
}

// ValidCapability reports whether name is a known capability.
func ValidCapability(name string) bool {
	return lo.Contains(all, Capability(name))
}
