package rbac

import "time"

type resourceView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`
	Module      string `json:"module,omitempty"`
}

type permissionView struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Resource    string `json:"resource"`
	Action      string `json:"action"`
	Description string `json:"description,omitempty"`
}

type roleView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	DisplayName string    `json:"display_name"`
	Description string    `json:"description,omitempty"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type delegationView struct {
	ID          int64      `json:"id"`
	DelegatorID int64      `json:"delegator_id"`
	DelegateeID int64      `json:"delegatee_id"`
	Permission  string     `json:"permission"`
	Reason      string     `json:"reason"`
	StartDate   time.Time  `json:"start_date"`
	EndDate     time.Time  `json:"end_date"`
	IsActive    bool       `json:"is_active"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type auditView struct {
	ID            int64     `json:"id"`
	AdminID       int64     `json:"admin_id"`
	Permission    string    `json:"permission"`
	Action        string    `json:"action"`
	ResourceType  string    `json:"resource_type"`
	ResourceID    string    `json:"resource_id,omitempty"`
	Success       bool      `json:"success"`
	FailureReason string    `json:"failure_reason,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	UserAgent     string    `json:"user_agent,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func toResourceViews(resources []Resource) []resourceView {
	views := make([]resourceView, 0, len(resources))
	for _, res := range resources {
		views = append(views, resourceView{
			ID:          res.ID,
			Name:        res.Name,
			DisplayName: res.DisplayName,
			Description: res.Description,
			Module:      res.Module,
		})
	}
	return views
}

func toPermissionViews(perms []Permission) []permissionView {
	views := make([]permissionView, 0, len(perms))
	for _, p := range perms {
		views = append(views, permissionView{
			ID:          p.ID,
			Name:        p.Name,
			Resource:    p.Resource,
			Action:      p.Action,
			Description: p.Description,
		})
	}
	return views
}

func toRoleView(role Role) roleView {
	return roleView{
		ID:          role.ID,
		Name:        role.Name,
		DisplayName: role.DisplayName,
		Description: role.Description,
		IsSystem:    role.IsSystem,
		CreatedAt:   role.CreatedAt,
		UpdatedAt:   role.UpdatedAt,
	}
}

func toDelegationView(d Delegation) delegationView {
	view := delegationView{
		ID:          d.ID,
		DelegatorID: d.DelegatorID,
		DelegateeID: d.DelegateeID,
		Permission:  d.Permission,
		Reason:      d.Reason,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		IsActive:    d.IsActive,
		CreatedAt:   d.CreatedAt,
	}
	if !d.RevokedAt.IsZero() && d.RevokedAt.Unix() != 0 {
		revoked := d.RevokedAt
		view.RevokedAt = &revoked
	}
	return view
}

func toAuditView(e AuditEntry) auditView {
	return auditView{
		ID:            e.ID,
		AdminID:       e.AdminID,
		Permission:    e.Permission,
		Action:        e.Action,
		ResourceType:  e.ResourceType,
		ResourceID:    e.ResourceID,
		Success:       e.Success,
		FailureReason: e.FailureReason,
		IPAddress:     e.IPAddress,
		UserAgent:     e.UserAgent,
		CreatedAt:     e.CreatedAt,
	}
}
