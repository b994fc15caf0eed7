package rbac

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Administrative operation errors beyond the repository sentinels.
var (
	// ErrSystemRole rejects mutation of platform-seeded roles.
	ErrSystemRole = errors.New("rbac: system roles cannot be modified")
	// ErrRoleInUse rejects deleting a role still assigned to at least one admin.
	ErrRoleInUse = errors.New("rbac: role is assigned to one or more admins")
	// ErrDelegatorLacksPermission rejects delegating a permission the delegator does not hold.
	ErrDelegatorLacksPermission = errors.New("rbac: delegator does not hold the permission")
	// ErrInvalidWindow rejects delegations whose end does not follow their start.
	ErrInvalidWindow = errors.New("rbac: delegation end must be after start")
	// ErrInvalidRoleName rejects role names that are not lowercase machine keys.
	ErrInvalidRoleName = errors.New("rbac: role name must be a lowercase machine key")
)

var roleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

// Service orchestrates permission resolution and RBAC administration.
// Every check re-queries storage: there is no in-memory cache, so role and
// delegation changes apply on the very next request.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// EffectivePermissions computes the full permission set the principal can
// exercise right now: the whole catalog for superusers, otherwise the union
// across assigned roles plus currently-active delegations.
func (s *Service) EffectivePermissions(ctx context.Context, principal Principal) ([]string, error) {
	if principal.IsSuperUser() {
		return s.repo.AllPermissionNames(ctx)
	}
	return s.effectiveForAdmin(ctx, principal.GetID())
}

// HasPermission reports whether the principal may exercise the named permission.
func (s *Service) HasPermission(ctx context.Context, principal Principal, name string) (bool, error) {
	if principal.IsSuperUser() {
		return true, nil
	}
	granted, err := s.effectiveForAdmin(ctx, principal.GetID())
	if err != nil {
		return false, err
	}
	for _, p := range granted {
		if p == name {
			return true, nil
		}
	}
	return false, nil
}

// EffectiveForAdmin resolves the effective set for an admin by id, for the
// administrative inspection endpoint.
func (s *Service) EffectiveForAdmin(ctx context.Context, adminID int64) ([]string, error) {
	exists, superuser, err := s.repo.AdminFlags(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	if superuser {
		return s.repo.AllPermissionNames(ctx)
	}
	return s.effectiveForAdmin(ctx, adminID)
}

func (s *Service) effectiveForAdmin(ctx context.Context, adminID int64) ([]string, error) {
	fromRoles, err := s.repo.AdminPermissionNames(ctx, adminID)
	if err != nil {
		return nil, err
	}
	delegated, err := s.repo.DelegatedPermissionNames(ctx, adminID, s.now())
	if err != nil {
		return nil, err
	}
	if len(delegated) == 0 {
		return fromRoles, nil
	}
	set := make(map[string]struct{}, len(fromRoles)+len(delegated))
	for _, p := range fromRoles {
		set[p] = struct{}{}
	}
	for _, p := range delegated {
		set[p] = struct{}{}
	}
	union := make([]string, 0, len(set))
	for p := range set {
		union = append(union, p)
	}
	sort.Strings(union)
	return union, nil
}

// ListResources returns the protectable resource catalog.
func (s *Service) ListResources(ctx context.Context) ([]Resource, error) {
	return s.repo.ListResources(ctx)
}

// ListPermissions returns the permission catalog.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// RoleDetail bundles a role with its granted permissions.
type RoleDetail struct {
	Role        Role
	Permissions []Permission
}

// GetRole fetches a role and its permission bundle.
func (s *Service) GetRole(ctx context.Context, id int64) (RoleDetail, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	perms, err := s.repo.RolePermissions(ctx, id)
	if err != nil {
		return RoleDetail{}, err
	}
	return RoleDetail{Role: role, Permissions: perms}, nil
}

// CreateRole inserts a new non-system role.
func (s *Service) CreateRole(ctx context.Context, name, displayName, description string) (Role, error) {
	name = strings.TrimSpace(name)
	if !roleNamePattern.MatchString(name) {
		return Role{}, fmt.Errorf("%w: %q", ErrInvalidRoleName, name)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = name
	}
	return s.repo.CreateRole(ctx, name, displayName, strings.TrimSpace(description))
}

// UpdateRole updates a role's display name and description. System roles are immutable.
func (s *Service) UpdateRole(ctx context.Context, id int64, displayName, description string) (Role, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if role.IsSystem {
		return Role{}, ErrSystemRole
	}
	return s.repo.UpdateRole(ctx, id, strings.TrimSpace(displayName), strings.TrimSpace(description))
}

// DeleteRole removes a role and its grants. Blocked for system roles and for
// roles still held by any admin.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if role.IsSystem {
		return ErrSystemRole
	}
	holders, err := s.repo.CountRoleAssignments(ctx, id)
	if err != nil {
		return err
	}
	if holders > 0 {
		return ErrRoleInUse
	}
	affected, err := s.repo.DeleteRole(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// GrantPermission grants a permission to a role. Duplicate grants conflict.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID, grantedBy int64) error {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	if _, err := s.repo.GetPermission(ctx, permissionID); err != nil {
		return err
	}
	return s.repo.AttachPermission(ctx, roleID, permissionID, grantedBy)
}

// RevokePermission removes a permission from a role. Revoking a grant that
// does not exist is a not-found, not a no-op.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	affected, err := s.repo.DetachPermission(ctx, roleID, permissionID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AssignRole binds a role to an admin. Re-assigning a held role conflicts.
func (s *Service) AssignRole(ctx context.Context, adminID, roleID, assignedBy int64) error {
	exists, _, err := s.repo.AdminFlags(ctx, adminID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return err
	}
	return s.repo.AssignRole(ctx, adminID, roleID, assignedBy)
}

// UnassignRole removes a role from an admin. Unassigning a role the admin
// does not hold is a not-found.
func (s *Service) UnassignRole(ctx context.Context, adminID, roleID int64) error {
	affected, err := s.repo.UnassignRole(ctx, adminID, roleID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AdminRoles lists the roles assigned to an admin.
func (s *Service) AdminRoles(ctx context.Context, adminID int64) ([]Role, error) {
	exists, _, err := s.repo.AdminFlags(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrNotFound
	}
	return s.repo.AdminRoles(ctx, adminID)
}

// Delegate creates a time-bounded grant of one permission from the delegator
// to another admin. The delegator must hold the permission themselves.
func (s *Service) Delegate(ctx context.Context, delegator Principal, delegateeID int64, permissionName, reason string, start, end time.Time) (Delegation, error) {
	if !end.After(start) {
		return Delegation{}, ErrInvalidWindow
	}
	exists, _, err := s.repo.AdminFlags(ctx, delegateeID)
	if err != nil {
		return Delegation{}, err
	}
	if !exists {
		return Delegation{}, ErrNotFound
	}
	perm, err := s.repo.GetPermissionByName(ctx, permissionName)
	if err != nil {
		return Delegation{}, err
	}
	held, err := s.HasPermission(ctx, delegator, permissionName)
	if err != nil {
		return Delegation{}, err
	}
	if !held {
		return Delegation{}, ErrDelegatorLacksPermission
	}
	return s.repo.CreateDelegation(ctx, Delegation{
		DelegatorID:  delegator.GetID(),
		DelegateeID:  delegateeID,
		PermissionID: perm.ID,
		Permission:   perm.Name,
		Reason:       strings.TrimSpace(reason),
		StartDate:    start,
		EndDate:      end,
	})
}

// ListDelegations lists delegations, optionally filtered by delegatee.
func (s *Service) ListDelegations(ctx context.Context, delegateeID int64) ([]Delegation, error) {
	return s.repo.ListDelegations(ctx, delegateeID)
}

// RevokeDelegation deactivates an active delegation.
func (s *Service) RevokeDelegation(ctx context.Context, id int64) error {
	affected, err := s.repo.RevokeDelegation(ctx, id, s.now())
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
