// Package rbac implements the static role/permission registry and the
// authorization engine gating every workflow operation.
package rbac

import (
	"fmt"
	"strings"
)

// Role is a closed enumeration. Every actor holds exactly one role.
type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RoleNetworkManager Role = "NETWORK_MANAGER"
	RoleTechnician     Role = "TECHNICIAN"
	RoleContractor     Role = "CONTRACTOR"
	RoleViewer         Role = "VIEWER"
)

// Permission is an atomic capability.
type Permission string

const (
	PermViewInfrastructure  Permission = "VIEW_INFRASTRUCTURE"
	PermEditInfrastructure  Permission = "EDIT_INFRASTRUCTURE"
	PermProposeModification Permission = "PROPOSE_MODIFICATION"
	PermManageUsers         Permission = "MANAGE_USERS"
	PermExportData          Permission = "EXPORT_DATA"
)

// Actor is the subject of every authorization check: a session identity with
// one role plus optional explicit permission grants.
type Actor struct {
	ID     int64
	Name   string
	Role   Role
	Grants []Permission
}

// AllRoles lists every known role.
func AllRoles() []Role {
	return []Role{RoleAdmin, RoleNetworkManager, RoleTechnician, RoleContractor, RoleViewer}
}

// AllPermissions lists every known permission.
func AllPermissions() []Permission {
	return []Permission{
		PermViewInfrastructure,
		PermEditInfrastructure,
		PermProposeModification,
		PermManageUsers,
		PermExportData,
	}
}

// ParseRole converts a stored role name into a Role.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	switch role {
	case RoleAdmin, RoleNetworkManager, RoleTechnician, RoleContractor, RoleViewer:
		return role, nil
	}
	return "", fmt.Errorf("rbac: unknown role %q", raw)
}

// ParsePermission converts a stored permission name into a Permission.
func ParsePermission(raw string) (Permission, error) {
	perm := Permission(strings.ToUpper(strings.TrimSpace(raw)))
	switch perm {
	case PermViewInfrastructure, PermEditInfrastructure, PermProposeModification, PermManageUsers, PermExportData:
		return perm, nil
	}
	return "", fmt.Errorf("rbac: unknown permission %q", raw)
}

// EffectivePermissions returns the actor's role-derived permissions unioned
// with explicit grants. The result is a fresh set on every call.
func EffectivePermissions(actor Actor) map[Permission]struct{} {
	effective := make(map[Permission]struct{})
	for _, p := range PermissionsFor(actor.Role) {
		effective[p] = struct{}{}
	}
	for _, p := range actor.Grants {
		effective[p] = struct{}{}
	}
	return effective
}

// Has reports whether the actor's effective set contains the permission.
func (a Actor) Has(perm Permission) bool {
	_, ok := EffectivePermissions(a)[perm]
	return ok
}
