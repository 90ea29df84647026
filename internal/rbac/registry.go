package rbac

// rolePermissions is the closed role → permission-set table. Sets are fixed
// per role; per-actor additions go through explicit grants, never through
// mutation of this table.
var rolePermissions = map[Role][]Permission{
	RoleAdmin: {
		PermViewInfrastructure,
		PermEditInfrastructure,
		PermProposeModification,
		PermManageUsers,
		PermExportData,
	},
	RoleNetworkManager: {
		PermViewInfrastructure,
		PermEditInfrastructure,
		PermProposeModification,
		PermExportData,
	},
	RoleTechnician: {
		PermViewInfrastructure,
		PermProposeModification,
		PermExportData,
	},
	RoleContractor: {
		PermViewInfrastructure,
		PermProposeModification,
	},
	RoleViewer: {
		PermViewInfrastructure,
	},
}

// PermissionsFor returns the permission set derived from a role. The function
// is pure and total: every role yields a non-empty copy, unknown roles yield
// the viewer set so a corrupted record can never escalate.
func PermissionsFor(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		perms = rolePermissions[RoleViewer]
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}
