package auth

import "github.com/streamspace/fleetconsole/internal/models"

// Permission is a flat "resource:action" string, e.g. "instances:deploy".
type Permission string

const (
	PermInstancesRead    Permission = "instances:read"
	PermInstancesDeploy  Permission = "instances:deploy"
	PermInstancesUpdate  Permission = "instances:update"
	PermInstancesExecute Permission = "instances:execute"
	PermInstancesConnect Permission = "instances:connect"
	PermInstancesDestroy Permission = "instances:destroy"
	PermExtensionsWrite  Permission = "extensions:install"
	PermUsersRead        Permission = "users:read"
	PermUsersDelete      Permission = "users:delete"
	PermUsersWrite       Permission = "users:write"
	PermTeamsRead        Permission = "teams:read"
	PermTeamsWrite       Permission = "teams:write"
	PermAuditRead        Permission = "audit:read"
)

// matrix is the fixed role→permission set named in §4.8. ADMIN is handled
// separately (it holds every permission and bypasses team scoping).
var matrix = map[models.Role]map[Permission]bool{
	models.RoleOperator: {
		PermUsersRead:        true,
		PermTeamsRead:        true,
		PermInstancesRead:    true,
		PermInstancesDeploy:  true,
		PermInstancesUpdate:  true,
		PermInstancesExecute: true,
		PermInstancesConnect: true,
		PermInstancesDestroy: true, // within own team only; cross-team destroy denied by scoping
		PermExtensionsWrite:  true,
		PermAuditRead:        true,
	},
	models.RoleDeveloper: {
		PermUsersRead:        true,
		PermTeamsRead:        true,
		PermInstancesRead:    true,
		PermInstancesUpdate:  true,
		PermInstancesExecute: true,
		PermInstancesConnect: true,
		PermExtensionsWrite:  true,
	},
	models.RoleViewer: {
		PermUsersRead:     true,
		PermTeamsRead:     true,
		PermInstancesRead: true,
	},
}

// CanPerform reports whether role is permitted perm, per the fixed matrix.
// ADMIN is true for every permission.
func CanPerform(role models.Role, perm Permission) bool {
	if role == models.RoleAdmin {
		return true
	}
	return matrix[role][perm]
}

// RequiresTeamScope reports whether role is subject to team scoping at all;
// only ADMIN bypasses it.
func RequiresTeamScope(role models.Role) bool {
	return role != models.RoleAdmin
}
