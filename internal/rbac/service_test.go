package rbac

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripcast/tripcast-admin/internal/shared"
	_ "github.com/tripcast/tripcast-admin/testing"
)

// ============================================================================
// STUB REPOSITORY
// ============================================================================

type stubAdmin struct {
	exists    bool
	superuser bool
}

type stubRepo struct {
	permissions    map[int64]Permission
	roles          map[int64]Role
	rolePerms      map[int64][]int64 // roleID -> permissionIDs
	adminRoles     map[int64][]int64 // adminID -> roleIDs
	admins         map[int64]stubAdmin
	delegations    map[int64]Delegation
	nextRoleID     int64
	nextDelegation int64
}

func newStubRepo() *stubRepo {
	return &stubRepo{
		permissions:    make(map[int64]Permission),
		roles:          make(map[int64]Role),
		rolePerms:      make(map[int64][]int64),
		adminRoles:     make(map[int64][]int64),
		admins:         make(map[int64]stubAdmin),
		delegations:    make(map[int64]Delegation),
		nextRoleID:     1,
		nextDelegation: 1,
	}
}

func (s *stubRepo) addPermission(id int64, name string) Permission {
	p := Permission{ID: id, Name: name, Resource: PermissionResource(name), Action: PermissionAction(name)}
	s.permissions[id] = p
	return p
}

func (s *stubRepo) ListResources(ctx context.Context) ([]Resource, error) { return nil, nil }

func (s *stubRepo) ListPermissions(ctx context.Context) ([]Permission, error) {
	perms := make([]Permission, 0, len(s.permissions))
	for _, p := range s.permissions {
		perms = append(perms, p)
	}
	return perms, nil
}

func (s *stubRepo) AllPermissionNames(ctx context.Context) ([]string, error) {
	names := make([]string, 0, len(s.permissions))
	for _, p := range s.permissions {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *stubRepo) GetPermission(ctx context.Context, id int64) (Permission, error) {
	p, ok := s.permissions[id]
	if !ok {
		return Permission{}, ErrNotFound
	}
	return p, nil
}

func (s *stubRepo) GetPermissionByName(ctx context.Context, name string) (Permission, error) {
	for _, p := range s.permissions {
		if p.Name == name {
			return p, nil
		}
	}
	return Permission{}, ErrNotFound
}

func (s *stubRepo) ListRoles(ctx context.Context) ([]Role, error) {
	roles := make([]Role, 0, len(s.roles))
	for _, r := range s.roles {
		roles = append(roles, r)
	}
	return roles, nil
}

func (s *stubRepo) GetRole(ctx context.Context, id int64) (Role, error) {
	r, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	return r, nil
}

func (s *stubRepo) CreateRole(ctx context.Context, name, displayName, description string) (Role, error) {
	for _, r := range s.roles {
		if r.Name == name {
			return Role{}, ErrAlreadyExists
		}
	}
	role := Role{ID: s.nextRoleID, Name: name, DisplayName: displayName, Description: description}
	s.roles[role.ID] = role
	s.nextRoleID++
	return role, nil
}

func (s *stubRepo) UpdateRole(ctx context.Context, id int64, displayName, description string) (Role, error) {
	r, ok := s.roles[id]
	if !ok {
		return Role{}, ErrNotFound
	}
	r.DisplayName = displayName
	r.Description = description
	s.roles[id] = r
	return r, nil
}

func (s *stubRepo) DeleteRole(ctx context.Context, id int64) (int64, error) {
	if _, ok := s.roles[id]; !ok {
		return 0, nil
	}
	delete(s.roles, id)
	delete(s.rolePerms, id)
	return 1, nil
}

func (s *stubRepo) RolePermissions(ctx context.Context, roleID int64) ([]Permission, error) {
	var perms []Permission
	for _, pid := range s.rolePerms[roleID] {
		perms = append(perms, s.permissions[pid])
	}
	return perms, nil
}

func (s *stubRepo) CountRoleAssignments(ctx context.Context, roleID int64) (int64, error) {
	var count int64
	for _, roleIDs := range s.adminRoles {
		for _, id := range roleIDs {
			if id == roleID {
				count++
			}
		}
	}
	return count, nil
}

func (s *stubRepo) AttachPermission(ctx context.Context, roleID, permissionID, grantedBy int64) error {
	for _, pid := range s.rolePerms[roleID] {
		if pid == permissionID {
			return ErrAlreadyExists
		}
	}
	s.rolePerms[roleID] = append(s.rolePerms[roleID], permissionID)
	return nil
}

func (s *stubRepo) DetachPermission(ctx context.Context, roleID, permissionID int64) (int64, error) {
	perms := s.rolePerms[roleID]
	for i, pid := range perms {
		if pid == permissionID {
			s.rolePerms[roleID] = append(perms[:i], perms[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *stubRepo) AssignRole(ctx context.Context, adminID, roleID, assignedBy int64) error {
	for _, id := range s.adminRoles[adminID] {
		if id == roleID {
			return ErrAlreadyExists
		}
	}
	s.adminRoles[adminID] = append(s.adminRoles[adminID], roleID)
	return nil
}

func (s *stubRepo) UnassignRole(ctx context.Context, adminID, roleID int64) (int64, error) {
	roleIDs := s.adminRoles[adminID]
	for i, id := range roleIDs {
		if id == roleID {
			s.adminRoles[adminID] = append(roleIDs[:i], roleIDs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (s *stubRepo) AdminRoles(ctx context.Context, adminID int64) ([]Role, error) {
	var roles []Role
	for _, id := range s.adminRoles[adminID] {
		roles = append(roles, s.roles[id])
	}
	return roles, nil
}

func (s *stubRepo) AdminFlags(ctx context.Context, adminID int64) (bool, bool, error) {
	a, ok := s.admins[adminID]
	if !ok {
		return false, false, nil
	}
	return a.exists, a.superuser, nil
}

func (s *stubRepo) AdminPermissionNames(ctx context.Context, adminID int64) ([]string, error) {
	seen := make(map[string]struct{})
	for _, roleID := range s.adminRoles[adminID] {
		for _, pid := range s.rolePerms[roleID] {
			seen[s.permissions[pid].Name] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *stubRepo) DelegatedPermissionNames(ctx context.Context, adminID int64, now time.Time) ([]string, error) {
	var names []string
	for _, d := range s.delegations {
		if d.DelegateeID == adminID && d.EffectiveAt(now) {
			names = append(names, s.permissions[d.PermissionID].Name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *stubRepo) CreateDelegation(ctx context.Context, d Delegation) (Delegation, error) {
	d.ID = s.nextDelegation
	d.IsActive = true
	d.CreatedAt = time.Now()
	s.delegations[d.ID] = d
	s.nextDelegation++
	return d, nil
}

func (s *stubRepo) ListDelegations(ctx context.Context, adminID int64) ([]Delegation, error) {
	var out []Delegation
	for _, d := range s.delegations {
		if adminID == 0 || d.DelegateeID == adminID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *stubRepo) RevokeDelegation(ctx context.Context, id int64, at time.Time) (int64, error) {
	d, ok := s.delegations[id]
	if !ok || !d.IsActive {
		return 0, nil
	}
	d.IsActive = false
	d.RevokedAt = at
	s.delegations[id] = d
	return 1, nil
}

// ============================================================================
// FIXTURES
// ============================================================================

type testPrincipal struct {
	id        int64
	superuser bool
}

func (p testPrincipal) GetID() int64      { return p.id }
func (p testPrincipal) GetEmail() string  { return "test@tripcast.local" }
func (p testPrincipal) IsSuperUser() bool { return p.superuser }

// newFixture seeds a catalog with two roles and two admins: admin 1 holds the
// content role, admin 2 holds nothing, admin 9 is a superuser.
func newFixture(t *testing.T) (*stubRepo, *Service) {
	t.Helper()
	repo := newStubRepo()
	repo.addPermission(1, shared.PermDestinationsRead)
	repo.addPermission(2, shared.PermDestinationsWrite)
	repo.addPermission(3, shared.PermUsersRead)
	repo.addPermission(4, shared.PermAuditRead)

	repo.roles[10] = Role{ID: 10, Name: "content_manager", IsSystem: true}
	repo.roles[11] = Role{ID: 11, Name: "helpdesk"}
	repo.rolePerms[10] = []int64{1, 2}
	repo.rolePerms[11] = []int64{3}

	repo.admins[1] = stubAdmin{exists: true}
	repo.admins[2] = stubAdmin{exists: true}
	repo.admins[9] = stubAdmin{exists: true, superuser: true}
	repo.adminRoles[1] = []int64{10}

	return repo, NewService(repo)
}

// ============================================================================
// RESOLUTION
// ============================================================================

func TestEffectivePermissionsFromRoles(t *testing.T) {
	_, svc := newFixture(t)

	perms, err := svc.EffectivePermissions(context.Background(), testPrincipal{id: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermDestinationsRead, shared.PermDestinationsWrite}, perms)
}

func TestEffectivePermissionsSuperuserGetsFullCatalog(t *testing.T) {
	repo, svc := newFixture(t)

	perms, err := svc.EffectivePermissions(context.Background(), testPrincipal{id: 9, superuser: true})
	require.NoError(t, err)
	all, _ := repo.AllPermissionNames(context.Background())
	assert.Equal(t, all, perms)
}

func TestEffectivePermissionsEmptyForUnassignedAdmin(t *testing.T) {
	_, svc := newFixture(t)

	perms, err := svc.EffectivePermissions(context.Background(), testPrincipal{id: 2})
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestEffectivePermissionsUnionAcrossRoles(t *testing.T) {
	repo, svc := newFixture(t)
	repo.adminRoles[1] = []int64{10, 11}

	perms, err := svc.EffectivePermissions(context.Background(), testPrincipal{id: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{shared.PermDestinationsRead, shared.PermDestinationsWrite, shared.PermUsersRead}, perms)
}

func TestEffectivePermissionsIncludeActiveDelegation(t *testing.T) {
	repo, svc := newFixture(t)
	now := time.Now()
	repo.delegations[1] = Delegation{
		ID: 1, DelegatorID: 9, DelegateeID: 1, PermissionID: 4,
		StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), IsActive: true,
	}

	perms, err := svc.EffectivePermissions(context.Background(), testPrincipal{id: 1})
	require.NoError(t, err)
	assert.Contains(t, perms, shared.PermAuditRead)
	assert.Contains(t, perms, shared.PermDestinationsRead)
}

func TestEffectivePermissionsExcludeExpiredDelegation(t *testing.T) {
	repo, svc := newFixture(t)
	now := time.Now()
	repo.delegations[1] = Delegation{
		ID: 1, DelegatorID: 9, DelegateeID: 1, PermissionID: 4,
		StartDate: now.Add(-2 * time.Hour), EndDate: now.Add(-time.Hour), IsActive: true,
	}

	perms, err := svc.EffectivePermissions(context.Background(), testPrincipal{id: 1})
	require.NoError(t, err)
	assert.NotContains(t, perms, shared.PermAuditRead)
}

func TestHasPermission(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	held, err := svc.HasPermission(ctx, testPrincipal{id: 1}, shared.PermDestinationsRead)
	require.NoError(t, err)
	assert.True(t, held)

	held, err = svc.HasPermission(ctx, testPrincipal{id: 1}, shared.PermUsersRead)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestHasPermissionSuperuserBypass(t *testing.T) {
	_, svc := newFixture(t)

	held, err := svc.HasPermission(context.Background(), testPrincipal{id: 9, superuser: true}, "anything.at_all")
	require.NoError(t, err)
	assert.True(t, held)
}

func TestEffectiveForAdminUnknownAdmin(t *testing.T) {
	_, svc := newFixture(t)

	_, err := svc.EffectiveForAdmin(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

// ============================================================================
// ROLE ADMINISTRATION
// ============================================================================

func TestCreateRoleValidatesName(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "Bad Name", "", "")
	assert.ErrorIs(t, err, ErrInvalidRoleName)

	role, err := svc.CreateRole(ctx, "trip_planner", "", "plans trips")
	require.NoError(t, err)
	assert.Equal(t, "trip_planner", role.Name)
	assert.Equal(t, "trip_planner", role.DisplayName)
}

func TestCreateRoleDuplicateName(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	_, err := svc.CreateRole(ctx, "helpdesk", "", "")
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestUpdateRoleSystemRoleImmutable(t *testing.T) {
	_, svc := newFixture(t)

	_, err := svc.UpdateRole(context.Background(), 10, "New Name", "")
	assert.ErrorIs(t, err, ErrSystemRole)
}

func TestDeleteRoleGuards(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.DeleteRole(ctx, 10), ErrSystemRole)

	repo.adminRoles[2] = []int64{11}
	assert.ErrorIs(t, svc.DeleteRole(ctx, 11), ErrRoleInUse)

	repo.adminRoles[2] = nil
	require.NoError(t, svc.DeleteRole(ctx, 11))
	assert.ErrorIs(t, svc.DeleteRole(ctx, 11), ErrNotFound)
}

func TestGrantPermissionDuplicate(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.GrantPermission(ctx, 11, 4, 9))
	assert.ErrorIs(t, svc.GrantPermission(ctx, 11, 4, 9), ErrAlreadyExists)
}

func TestGrantPermissionUnknownTargets(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.GrantPermission(ctx, 404, 1, 9), ErrNotFound)
	assert.ErrorIs(t, svc.GrantPermission(ctx, 11, 404, 9), ErrNotFound)
}

func TestRevokePermissionNotGranted(t *testing.T) {
	_, svc := newFixture(t)

	assert.ErrorIs(t, svc.RevokePermission(context.Background(), 11, 1), ErrNotFound)
}

func TestAssignRoleTwiceConflicts(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()

	require.NoError(t, svc.AssignRole(ctx, 2, 11, 9))
	assert.ErrorIs(t, svc.AssignRole(ctx, 2, 11, 9), ErrAlreadyExists)
}

func TestUnassignRoleNotHeld(t *testing.T) {
	_, svc := newFixture(t)

	assert.ErrorIs(t, svc.UnassignRole(context.Background(), 2, 11), ErrNotFound)
}

// Role changes take effect on the next resolution: no cache sits in between.
func TestResolutionReflectsRoleChangesImmediately(t *testing.T) {
	_, svc := newFixture(t)
	ctx := context.Background()
	principal := testPrincipal{id: 2}

	held, err := svc.HasPermission(ctx, principal, shared.PermUsersRead)
	require.NoError(t, err)
	assert.False(t, held)

	require.NoError(t, svc.AssignRole(ctx, 2, 11, 9))
	held, err = svc.HasPermission(ctx, principal, shared.PermUsersRead)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, svc.UnassignRole(ctx, 2, 11))
	held, err = svc.HasPermission(ctx, principal, shared.PermUsersRead)
	require.NoError(t, err)
	assert.False(t, held)
}

// ============================================================================
// DELEGATION
// ============================================================================

func TestDelegate(t *testing.T) {
	_, svc := newFixture(t)
	now := time.Now()

	d, err := svc.Delegate(context.Background(), testPrincipal{id: 1}, 2,
		shared.PermDestinationsRead, "vacation cover", now, now.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), d.DelegatorID)
	assert.Equal(t, int64(2), d.DelegateeID)
	assert.True(t, d.IsActive)
}

func TestDelegateInvalidWindow(t *testing.T) {
	_, svc := newFixture(t)
	now := time.Now()

	_, err := svc.Delegate(context.Background(), testPrincipal{id: 1}, 2,
		shared.PermDestinationsRead, "", now, now)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = svc.Delegate(context.Background(), testPrincipal{id: 1}, 2,
		shared.PermDestinationsRead, "", now, now.Add(-time.Hour))
	assert.ErrorIs(t, err, ErrInvalidWindow)
}

func TestDelegateRequiresHeldPermission(t *testing.T) {
	_, svc := newFixture(t)
	now := time.Now()

	_, err := svc.Delegate(context.Background(), testPrincipal{id: 1}, 2,
		shared.PermUsersRead, "", now, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrDelegatorLacksPermission)
}

func TestDelegateSuperuserHoldsEverything(t *testing.T) {
	_, svc := newFixture(t)
	now := time.Now()

	_, err := svc.Delegate(context.Background(), testPrincipal{id: 9, superuser: true}, 2,
		shared.PermAuditRead, "audit season", now, now.Add(time.Hour))
	assert.NoError(t, err)
}

func TestDelegateUnknownDelegatee(t *testing.T) {
	_, svc := newFixture(t)
	now := time.Now()

	_, err := svc.Delegate(context.Background(), testPrincipal{id: 1}, 404,
		shared.PermDestinationsRead, "", now, now.Add(time.Hour))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRevokeDelegationEndsGrant(t *testing.T) {
	repo, svc := newFixture(t)
	ctx := context.Background()
	now := time.Now()

	d, err := svc.Delegate(ctx, testPrincipal{id: 9, superuser: true}, 1,
		shared.PermAuditRead, "cover", now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)

	held, err := svc.HasPermission(ctx, testPrincipal{id: 1}, shared.PermAuditRead)
	require.NoError(t, err)
	assert.True(t, held)

	require.NoError(t, svc.RevokeDelegation(ctx, d.ID))
	held, err = svc.HasPermission(ctx, testPrincipal{id: 1}, shared.PermAuditRead)
	require.NoError(t, err)
	assert.False(t, held)

	assert.ErrorIs(t, svc.RevokeDelegation(ctx, d.ID), ErrNotFound)
	assert.False(t, repo.delegations[d.ID].IsActive)
}

func TestDelegationEffectiveAt(t *testing.T) {
	now := time.Now()
	d := Delegation{StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour), IsActive: true}

	assert.True(t, d.EffectiveAt(now))
	assert.True(t, d.EffectiveAt(d.StartDate))
	assert.True(t, d.EffectiveAt(d.EndDate))
	assert.False(t, d.EffectiveAt(d.StartDate.Add(-time.Second)))
	assert.False(t, d.EffectiveAt(d.EndDate.Add(time.Second)))

	d.IsActive = false
	assert.False(t, d.EffectiveAt(now))
}
