package shared

// End-user management permissions.
const (
	PermUsersRead   = "users.read"
	PermUsersWrite  = "users.write"
	PermUsersDelete = "users.delete"
	PermUsersExport = "users.export"
)

// UserScopes lists all permissions related to end-user management.
func UserScopes() []string {
	return []string{
		PermUsersRead,
		PermUsersWrite,
		PermUsersDelete,
		PermUsersExport,
	}
}
