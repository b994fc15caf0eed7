package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/tripcast/tripcast-admin/internal/platform/httpx"
	"github.com/tripcast/tripcast-admin/internal/shared"
)

// Handler exposes the RBAC administrative API. Authorization for this whole
// surface comes from the access decision middleware's rbac.* method fallback.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	audit     AuditStore
	validator *validator.Validate
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, audit AuditStore) *Handler {
	return &Handler{logger: logger, service: service, audit: audit, validator: validator.New()}
}

// MountRoutes registers RBAC management routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/resources", h.listResources)
	r.Get("/permissions", h.listPermissions)

	r.Get("/roles", h.listRoles)
	r.Post("/roles", h.createRole)
	r.Get("/roles/{roleID}", h.getRole)
	r.Put("/roles/{roleID}", h.updateRole)
	r.Delete("/roles/{roleID}", h.deleteRole)
	r.Post("/roles/{roleID}/permissions", h.grantPermission)
	r.Delete("/roles/{roleID}/permissions/{permissionID}", h.revokePermission)

	r.Get("/admins/{adminID}/roles", h.adminRoles)
	r.Post("/admins/{adminID}/roles", h.assignRole)
	r.Delete("/admins/{adminID}/roles/{roleID}", h.unassignRole)
	r.Get("/admins/{adminID}/permissions", h.adminPermissions)

	r.Get("/audit-logs", h.queryAuditLogs)

	r.Get("/delegations", h.listDelegations)
	r.Post("/delegations", h.createDelegation)
	r.Delete("/delegations/{delegationID}", h.revokeDelegation)
}

// MountSelfRoutes registers self-inspection routes, mounted outside the rbac
// subtree so any authenticated admin can query their own effective set.
func (h *Handler) MountSelfRoutes(r chi.Router) {
	r.Get("/permissions", h.myPermissions)
}

func (h *Handler) myPermissions(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	perms, err := h.service.EffectivePermissions(r.Context(), principal)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"admin_id":    principal.GetID(),
		"email":       principal.GetEmail(),
		"superuser":   principal.IsSuperUser(),
		"permissions": perms,
	})
}

func (h *Handler) listResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.service.ListResources(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"resources": toResourceViews(resources)})
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": toPermissionViews(perms)})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toRoleView(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": views})
}

type createRoleRequest struct {
	Name        string `json:"name" validate:"required"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req createRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Name, req.DisplayName, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleView(role))
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	detail, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		h.respondError(w, err)
		return
	}
	view := struct {
		roleView
		Permissions []permissionView `json:"permissions"`
	}{toRoleView(detail.Role), toPermissionViews(detail.Permissions)}
	httpx.JSON(w, http.StatusOK, view)
}

type updateRoleRequest struct {
	DisplayName string `json:"display_name" validate:"required"`
	Description string `json:"description"`
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req updateRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.DisplayName, req.Description)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleView(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type grantPermissionRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	var req grantPermissionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.GrantPermission(r.Context(), roleID, req.PermissionID, callerID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"role_id": roleID, "permission_id": req.PermissionID})
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	permissionID, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := h.service.RevokePermission(r.Context(), roleID, permissionID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminRoles(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.pathID(w, r, "adminID")
	if !ok {
		return
	}
	roles, err := h.service.AdminRoles(r.Context(), adminID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]roleView, 0, len(roles))
	for _, role := range roles {
		views = append(views, toRoleView(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"admin_id": adminID, "roles": views})
}

type assignRoleRequest struct {
	RoleID int64 `json:"role_id" validate:"required,gt=0"`
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.pathID(w, r, "adminID")
	if !ok {
		return
	}
	var req assignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.AssignRole(r.Context(), adminID, req.RoleID, callerID(r)); err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{"admin_id": adminID, "role_id": req.RoleID})
}

func (h *Handler) unassignRole(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.pathID(w, r, "adminID")
	if !ok {
		return
	}
	roleID, ok := h.pathID(w, r, "roleID")
	if !ok {
		return
	}
	if err := h.service.UnassignRole(r.Context(), adminID, roleID); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adminPermissions(w http.ResponseWriter, r *http.Request) {
	adminID, ok := h.pathID(w, r, "adminID")
	if !ok {
		return
	}
	perms, err := h.service.EffectiveForAdmin(r.Context(), adminID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"admin_id": adminID, "permissions": perms})
}

func (h *Handler) queryAuditLogs(w http.ResponseWriter, r *http.Request) {
	filters := AuditFilters{}
	q := r.URL.Query()
	if v := q.Get("admin_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "admin_id must be an integer")
			return
		}
		filters.AdminID = id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "from must be RFC3339")
			return
		}
		filters.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "to must be RFC3339")
			return
		}
		filters.To = t
	}
	if v := q.Get("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "success must be a boolean")
			return
		}
		filters.Success = &success
	}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.PageSize, _ = strconv.Atoi(q.Get("page_size"))

	page, err := h.audit.Query(r.Context(), filters)
	if err != nil {
		h.respondError(w, err)
		return
	}
	entries := make([]auditView, 0, len(page.Entries))
	for _, e := range page.Entries {
		entries = append(entries, toAuditView(e))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"entries":   entries,
		"page":      page.Page,
		"page_size": page.PageSize,
		"has_next":  page.HasNext,
	})
}

func (h *Handler) listDelegations(w http.ResponseWriter, r *http.Request) {
	var delegateeID int64
	if v := r.URL.Query().Get("delegatee_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "delegatee_id must be an integer")
			return
		}
		delegateeID = id
	}
	delegations, err := h.service.ListDelegations(r.Context(), delegateeID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	views := make([]delegationView, 0, len(delegations))
	for _, d := range delegations {
		views = append(views, toDelegationView(d))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"delegations": views})
}

type createDelegationRequest struct {
	DelegateeID int64     `json:"delegatee_id" validate:"required,gt=0"`
	Permission  string    `json:"permission" validate:"required"`
	Reason      string    `json:"reason" validate:"required"`
	StartDate   time.Time `json:"start_date" validate:"required"`
	EndDate     time.Time `json:"end_date" validate:"required"`
}

func (h *Handler) createDelegation(w http.ResponseWriter, r *http.Request) {
	principal := shared.PrincipalFromContext(r.Context())
	if principal == nil {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
		return
	}
	var req createDelegationRequest
	if !h.decode(w, r, &req) {
		return
	}
	delegation, err := h.service.Delegate(r.Context(), principal, req.DelegateeID, req.Permission, req.Reason, req.StartDate, req.EndDate)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toDelegationView(delegation))
}

func (h *Handler) revokeDelegation(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "delegationID")
	if !ok {
		return
	}
	if err := h.service.RevokeDelegation(r.Context(), id); err != nil {
		h.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "malformed request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrAlreadyExists):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrSystemRole), errors.Is(err, ErrDelegatorLacksPermission):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrRoleInUse), errors.Is(err, ErrInvalidWindow), errors.Is(err, ErrInvalidRoleName):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		if h.logger != nil {
			h.logger.Error("rbac handler", slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// callerID returns the authenticated admin id for provenance columns.
func callerID(r *http.Request) int64 {
	if principal := shared.PrincipalFromContext(r.Context()); principal != nil {
		return principal.GetID()
	}
	return 0
}
