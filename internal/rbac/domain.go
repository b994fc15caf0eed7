package rbac

import (
	"time"

	"github.com/tripcast/tripcast-admin/internal/shared"
)

// Resource is a protectable noun of the platform, e.g. "users" or "destinations".
// Reference data: created by seed, never mutated through the admin API.
type Resource struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	Module      string
}

// Permission is one (resource, action) pair identified by its dotted name,
// e.g. "users.read". The action vocabulary is an open string set.
type Permission struct {
	ID          int64
	ResourceID  int64
	Resource    string
	Action      string
	Name        string
	Description string
}

// Role is a named bundle of permissions. System roles cannot be edited or
// deleted through the admin API.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	Description string
	IsSystem    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleGrant ties a permission to a role with provenance.
type RoleGrant struct {
	RoleID       int64
	PermissionID int64
	GrantedAt    time.Time
	GrantedBy    int64
}

// RoleAssignment links an admin to a role with provenance.
type RoleAssignment struct {
	AdminID    int64
	RoleID     int64
	AssignedAt time.Time
	AssignedBy int64
}

// Delegation is a time-bounded, revocable grant of a single permission from
// one admin to another. Effective only while active and inside its window.
type Delegation struct {
	ID           int64
	DelegatorID  int64
	DelegateeID  int64
	PermissionID int64
	Permission   string
	Reason       string
	StartDate    time.Time
	EndDate      time.Time
	IsActive     bool
	RevokedAt    time.Time
	CreatedAt    time.Time
}

// EffectiveAt reports whether the delegation grants its permission at the given time.
func (d Delegation) EffectiveAt(now time.Time) bool {
	return d.IsActive && !now.Before(d.StartDate) && !now.After(d.EndDate)
}

// AuditEntry is one append-only record of a permission check outcome.
type AuditEntry struct {
	ID            int64
	AdminID       int64
	PermissionID  int64
	Permission    string
	Action        string
	ResourceType  string
	ResourceID    string
	Success       bool
	FailureReason string
	IPAddress     string
	UserAgent     string
	CreatedAt     time.Time
}

// Principal describes the authenticated actor every check runs against.
// There is exactly one implementation (the admin entity); no optional
// capability probing happens anywhere in the decision path.
type Principal = shared.Principal
