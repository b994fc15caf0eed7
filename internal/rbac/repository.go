package rbac

import (
	"context"
	"time"
)

// Repository defines the persistence surface the resolver and the
// administrative operations run against.
type Repository interface {
	// Catalog.
	ListResources(ctx context.Context) ([]Resource, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	AllPermissionNames(ctx context.Context) ([]string, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	GetPermissionByName(ctx context.Context, name string) (Permission, error)

	// Roles.
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, displayName, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, displayName, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) (int64, error)
	RolePermissions(ctx context.Context, roleID int64) ([]Permission, error)
	CountRoleAssignments(ctx context.Context, roleID int64) (int64, error)

	// Grants and assignments.
	AttachPermission(ctx context.Context, roleID, permissionID, grantedBy int64) error
	DetachPermission(ctx context.Context, roleID, permissionID int64) (int64, error)
	AssignRole(ctx context.Context, adminID, roleID, assignedBy int64) error
	UnassignRole(ctx context.Context, adminID, roleID int64) (int64, error)
	AdminRoles(ctx context.Context, adminID int64) ([]Role, error)
	AdminFlags(ctx context.Context, adminID int64) (exists bool, superuser bool, err error)

	// Resolution inputs.
	AdminPermissionNames(ctx context.Context, adminID int64) ([]string, error)
	DelegatedPermissionNames(ctx context.Context, adminID int64, now time.Time) ([]string, error)

	// Delegations.
	CreateDelegation(ctx context.Context, d Delegation) (Delegation, error)
	ListDelegations(ctx context.Context, adminID int64) ([]Delegation, error)
	RevokeDelegation(ctx context.Context, id int64, at time.Time) (int64, error)
}
