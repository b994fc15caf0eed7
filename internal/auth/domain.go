package auth

import "time"

// Status enumerates admin account states. Only active accounts may authenticate.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusLocked   Status = "LOCKED"
)

// Admin represents an administrator account.
type Admin struct {
	ID           int64
	Email        string
	PasswordHash string
	Name         string
	Status       Status
	Superuser    bool
	LastLoginAt  time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GetID returns the admin identifier.
func (a *Admin) GetID() int64 { return a.ID }

// GetEmail returns the admin email.
func (a *Admin) GetEmail() string { return a.Email }

// IsSuperUser reports whether the admin bypasses role-based checks.
func (a *Admin) IsSuperUser() bool { return a.Superuser }

// IsActive reports whether the account may authenticate.
func (a *Admin) IsActive() bool { return a.Status == StatusActive }
