package rbac

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tripcast/tripcast-admin/internal/platform/db"
)

// Sentinel errors surfaced by the repository.
var (
	// ErrNotFound indicates that the requested record does not exist.
	ErrNotFound = errors.New("rbac: not found")
	// ErrAlreadyExists indicates a duplicate grant, assignment, or role name.
	ErrAlreadyExists = errors.New("rbac: already exists")
)

const pgUniqueViolation = "23505"

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// ListResources returns all protectable resources ordered by module and name.
func (r *PGRepository) ListResources(ctx context.Context) ([]Resource, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, description, module FROM resources ORDER BY module, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var resources []Resource
	for rows.Next() {
		var res Resource
		if err := rows.Scan(&res.ID, &res.Name, &res.DisplayName, &res.Description, &res.Module); err != nil {
			return nil, err
		}
		resources = append(resources, res)
	}
	return resources, rows.Err()
}

const permissionColumns = `p.id, p.resource_id, r.name, p.action, p.name, p.description`

func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.ResourceID, &p.Resource, &p.Action, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// ListPermissions returns the whole permission catalog ordered by name.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+permissionColumns+` FROM permissions p JOIN resources r ON r.id = p.resource_id ORDER BY p.name`)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

// AllPermissionNames returns every permission name currently defined.
func (r *PGRepository) AllPermissionNames(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT name FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// GetPermission fetches a permission by ID.
func (r *PGRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return r.getPermission(ctx, `SELECT `+permissionColumns+` FROM permissions p JOIN resources r ON r.id = p.resource_id WHERE p.id = $1`, id)
}

// GetPermissionByName fetches a permission by its dotted name.
func (r *PGRepository) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	return r.getPermission(ctx, `SELECT `+permissionColumns+` FROM permissions p JOIN resources r ON r.id = p.resource_id WHERE p.name = $1`, name)
}

func (r *PGRepository) getPermission(ctx context.Context, query string, arg any) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, query, arg).Scan(&p.ID, &p.ResourceID, &p.Resource, &p.Action, &p.Name, &p.Description)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return p, nil
}

const roleColumns = `id, name, display_name, description, is_system, created_at, updated_at`

func scanRoles(rows pgx.Rows) ([]Role, error) {
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// CreateRole inserts a new non-system role.
func (r *PGRepository) CreateRole(ctx context.Context, name, displayName, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`INSERT INTO roles (name, display_name, description, is_system) VALUES ($1, $2, $3, FALSE) RETURNING `+roleColumns,
		name, displayName, description).
		Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Role{}, ErrAlreadyExists
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole updates display name and description of an existing role.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, displayName, description string) (Role, error) {
	var role Role
	err := r.pool.QueryRow(ctx,
		`UPDATE roles SET display_name = $2, description = $3, updated_at = NOW() WHERE id = $1 RETURNING `+roleColumns,
		id, displayName, description).
		Scan(&role.ID, &role.Name, &role.DisplayName, &role.Description, &role.IsSystem, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// DeleteRole removes a role and its permission grants, returning affected role rows.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) (int64, error) {
	var affected int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, id); err != nil {
			return err
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return err
		}
		affected = tag.RowsAffected()
		return nil
	})
	return affected, err
}

// RolePermissions returns the permissions granted to a role.
func (r *PGRepository) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+permissionColumns+` FROM permissions p
		 JOIN resources r ON r.id = p.resource_id
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 WHERE rp.role_id = $1 ORDER BY p.name`, roleID)
	if err != nil {
		return nil, err
	}
	return scanPermissions(rows)
}

// CountRoleAssignments counts admins currently holding the role.
func (r *PGRepository) CountRoleAssignments(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM admin_roles WHERE role_id = $1`, roleID).Scan(&count)
	return count, err
}

// AttachPermission grants a permission to a role with provenance.
func (r *PGRepository) AttachPermission(ctx context.Context, roleID, permissionID, grantedBy int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO role_permissions (role_id, permission_id, granted_at, granted_by) VALUES ($1, $2, NOW(), $3)`,
		roleID, permissionID, grantedBy)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// DetachPermission revokes a permission from a role, returning affected rows.
func (r *PGRepository) DetachPermission(ctx context.Context, roleID, permissionID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AssignRole binds a role to an admin with provenance.
func (r *PGRepository) AssignRole(ctx context.Context, adminID, roleID, assignedBy int64) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO admin_roles (admin_id, role_id, assigned_at, assigned_by) VALUES ($1, $2, NOW(), $3)`,
		adminID, roleID, assignedBy)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

// UnassignRole removes a role from an admin, returning affected rows.
func (r *PGRepository) UnassignRole(ctx context.Context, adminID, roleID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM admin_roles WHERE admin_id = $1 AND role_id = $2`, adminID, roleID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// AdminRoles returns the roles assigned to an admin.
func (r *PGRepository) AdminRoles(ctx context.Context, adminID int64) ([]Role, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT r.id, r.name, r.display_name, r.description, r.is_system, r.created_at, r.updated_at
		 FROM roles r JOIN admin_roles ar ON ar.role_id = r.id
		 WHERE ar.admin_id = $1 ORDER BY r.name`, adminID)
	if err != nil {
		return nil, err
	}
	return scanRoles(rows)
}

// AdminFlags reports whether the admin account exists and is a superuser.
func (r *PGRepository) AdminFlags(ctx context.Context, adminID int64) (bool, bool, error) {
	var superuser bool
	err := r.pool.QueryRow(ctx, `SELECT is_superuser FROM admins WHERE id = $1`, adminID).Scan(&superuser)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, superuser, nil
}

// AdminPermissionNames returns the deduplicated union of permission names
// across every role assigned to the admin.
func (r *PGRepository) AdminPermissionNames(ctx context.Context, adminID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT p.name FROM permissions p
		 JOIN role_permissions rp ON rp.permission_id = p.id
		 JOIN admin_roles ar ON ar.role_id = rp.role_id
		 WHERE ar.admin_id = $1 ORDER BY p.name`, adminID)
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

// DelegatedPermissionNames returns names of permissions delegated to the admin
// that are active and inside their validity window at the given time.
func (r *PGRepository) DelegatedPermissionNames(ctx context.Context, adminID int64, now time.Time) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT p.name FROM permissions p
		 JOIN permission_delegations d ON d.permission_id = p.id
		 WHERE d.delegatee_id = $1 AND d.is_active AND $2 BETWEEN d.start_date AND d.end_date
		 ORDER BY p.name`, adminID, now.UTC())
	if err != nil {
		return nil, err
	}
	return scanNames(rows)
}

const delegationColumns = `d.id, d.delegator_id, d.delegatee_id, d.permission_id, p.name, d.reason, d.start_date, d.end_date, d.is_active, COALESCE(d.revoked_at, 'epoch'::timestamptz), d.created_at`

// CreateDelegation inserts a new delegation.
func (r *PGRepository) CreateDelegation(ctx context.Context, d Delegation) (Delegation, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO permission_delegations (delegator_id, delegatee_id, permission_id, reason, start_date, end_date, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, TRUE) RETURNING id, created_at`,
		d.DelegatorID, d.DelegateeID, d.PermissionID, d.Reason, d.StartDate.UTC(), d.EndDate.UTC()).
		Scan(&d.ID, &d.CreatedAt)
	if err != nil {
		return Delegation{}, err
	}
	d.IsActive = true
	return d, nil
}

// ListDelegations returns delegations, optionally filtered by delegatee.
func (r *PGRepository) ListDelegations(ctx context.Context, adminID int64) ([]Delegation, error) {
	query := `SELECT ` + delegationColumns + ` FROM permission_delegations d JOIN permissions p ON p.id = d.permission_id`
	args := []any{}
	if adminID > 0 {
		query += ` WHERE d.delegatee_id = $1`
		args = append(args, adminID)
	}
	query += ` ORDER BY d.created_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var delegations []Delegation
	for rows.Next() {
		var d Delegation
		if err := rows.Scan(&d.ID, &d.DelegatorID, &d.DelegateeID, &d.PermissionID, &d.Permission, &d.Reason, &d.StartDate, &d.EndDate, &d.IsActive, &d.RevokedAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		delegations = append(delegations, d)
	}
	return delegations, rows.Err()
}

// RevokeDelegation deactivates a delegation, returning affected rows.
func (r *PGRepository) RevokeDelegation(ctx context.Context, id int64, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE permission_delegations SET is_active = FALSE, revoked_at = $2 WHERE id = $1 AND is_active`,
		id, at.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func scanNames(rows pgx.Rows) ([]string, error) {
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
