package shared

// Core platform permissions covering RBAC administration itself.
const (
	PermRBACRead   = "rbac.read"
	PermRBACWrite  = "rbac.write"
	PermRBACDelete = "rbac.delete"

	PermAdminsRead   = "admins.read"
	PermAdminsWrite  = "admins.write"
	PermAdminsDelete = "admins.delete"
)

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermRBACRead,
		PermRBACWrite,
		PermRBACDelete,
		PermAdminsRead,
		PermAdminsWrite,
		PermAdminsDelete,
	}
}
