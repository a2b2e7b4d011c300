// Package authz answers role and capability questions for the lifecycle
// engine. Everything here is a pure function over role/flag inputs; the
// canonical rank order lives in one table so it is enumerable and testable.
package authz

import "taskdesk/internal/domain"

// rank maps each role to its position in the authority order. Higher wins.
var rank = map[domain.Role]int{
	domain.RoleSuperadmin: 6,
	domain.RoleDirector:   5,
	domain.RoleDyDirector: 4,
	domain.RoleManager:    3,
	domain.RoleIncharge:   2,
	domain.RoleEmployee:   1,
}

// roleOrder lists roles from highest to lowest rank.
var roleOrder = []domain.Role{
	domain.RoleSuperadmin,
	domain.RoleDirector,
	domain.RoleDyDirector,
	domain.RoleManager,
	domain.RoleIncharge,
	domain.RoleEmployee,
}

// Rank returns the numeric rank of a role, 0 for unknown roles.
func Rank(r domain.Role) int {
	return rank[r]
}

// ValidRole reports whether r is one of the six known roles.
func ValidRole(r domain.Role) bool {
	_, ok := rank[r]
	return ok
}

// Roles returns all roles from highest to lowest rank.
func Roles() []domain.Role {
	out := make([]domain.Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

// HasPermission reports whether actor ranks at or above required.
func HasPermission(actor, required domain.Role) bool {
	return rank[actor] >= rank[required] && ValidRole(actor) && ValidRole(required)
}

// CanCloseTask and CanEditTask are a hardcoded ceiling, independent of
// capability flags.
func CanCloseTask(r domain.Role) bool {
	return r == domain.RoleSuperadmin || r == domain.RoleDirector
}

func CanEditTask(r domain.Role) bool {
	return r == domain.RoleSuperadmin || r == domain.RoleDirector
}

// CanRevertTask: SUPERADMIN is an unconditional override; every other role
// needs the explicit per-user grant.
func CanRevertTask(r domain.Role, hasRevertCapability bool) bool {
	if r == domain.RoleSuperadmin {
		return true
	}
	return hasRevertCapability
}

// CanAcknowledgeTask follows the same override pattern for the approval
// capability.
func CanAcknowledgeTask(r domain.Role, hasApprovalCapability bool) bool {
	if r == domain.RoleSuperadmin {
		return true
	}
	return hasApprovalCapability
}

func CanAccessDatabase(r domain.Role) bool {
	return r == domain.RoleSuperadmin
}

func CanManageUsers(r domain.Role) bool {
	return r == domain.RoleSuperadmin
}

// VisibleRoles returns all roles with rank at or below the caller's, so an
// administrator sees peers and subordinates, never superiors.
func VisibleRoles(r domain.Role) []domain.Role {
	var out []domain.Role
	for _, candidate := range roleOrder {
		if rank[candidate] <= rank[r] {
			out = append(out, candidate)
		}
	}
	return out
}

// AssignableRoles returns all roles strictly below the caller's rank. The
// strict inequality blocks self-escalation via account creation.
func AssignableRoles(r domain.Role) []domain.Role {
	var out []domain.Role
	for _, candidate := range roleOrder {
		if rank[candidate] < rank[r] {
			out = append(out, candidate)
		}
	}
	return out
}

// CanModifyUserRole requires strictly higher rank; equal ranks may not
// modify each other, even SUPERADMIN to SUPERADMIN.
func CanModifyUserRole(actor, target domain.Role) bool {
	return rank[actor] > rank[target] && ValidRole(actor) && ValidRole(target)
}
