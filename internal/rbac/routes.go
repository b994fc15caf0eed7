package rbac

import (
	"net/http"
	"strings"

	"github.com/tripcast/tripcast-admin/internal/shared"
)

// routeEntry binds one METHOD + path (literal or {param} pattern) to the
// permission required to call it.
type routeEntry struct {
	Method     string
	Path       string
	Permission string
}

// routeTable is the single source of truth mapping protected endpoints to
// permission names. Entry order is load-bearing: pattern matching returns the
// first entry that matches, so more specific patterns must come first.
var routeTable = []routeEntry{
	// End-user management.
	{http.MethodGet, "/api/users", shared.PermUsersRead},
	{http.MethodPost, "/api/users", shared.PermUsersWrite},
	{http.MethodGet, "/api/users/export", shared.PermUsersExport},
	{http.MethodGet, "/api/users/{user_id}", shared.PermUsersRead},
	{http.MethodPut, "/api/users/{user_id}", shared.PermUsersWrite},
	{http.MethodDelete, "/api/users/{user_id}", shared.PermUsersDelete},

	// Admin accounts.
	{http.MethodGet, "/api/admins", shared.PermAdminsRead},
	{http.MethodPost, "/api/admins", shared.PermAdminsWrite},
	{http.MethodGet, "/api/admins/{admin_id}", shared.PermAdminsRead},
	{http.MethodPut, "/api/admins/{admin_id}", shared.PermAdminsWrite},
	{http.MethodDelete, "/api/admins/{admin_id}", shared.PermAdminsDelete},

	// Tourism content.
	{http.MethodGet, "/api/destinations", shared.PermDestinationsRead},
	{http.MethodPost, "/api/destinations", shared.PermDestinationsWrite},
	{http.MethodGet, "/api/destinations/{destination_id}", shared.PermDestinationsRead},
	{http.MethodPut, "/api/destinations/{destination_id}", shared.PermDestinationsWrite},
	{http.MethodDelete, "/api/destinations/{destination_id}", shared.PermDestinationsDelete},
	{http.MethodPost, "/api/destinations/{destination_id}/approve", shared.PermDestinationsApprove},

	{http.MethodGet, "/api/leisure-sports", shared.PermLeisureRead},
	{http.MethodPost, "/api/leisure-sports", shared.PermLeisureWrite},
	{http.MethodGet, "/api/leisure-sports/{sport_id}", shared.PermLeisureRead},
	{http.MethodPut, "/api/leisure-sports/{sport_id}", shared.PermLeisureWrite},
	{http.MethodDelete, "/api/leisure-sports/{sport_id}", shared.PermLeisureDelete},

	{http.MethodGet, "/api/festivals", shared.PermFestivalsRead},
	{http.MethodPost, "/api/festivals", shared.PermFestivalsWrite},
	{http.MethodGet, "/api/festivals/{festival_id}", shared.PermFestivalsRead},
	{http.MethodPut, "/api/festivals/{festival_id}", shared.PermFestivalsWrite},
	{http.MethodDelete, "/api/festivals/{festival_id}", shared.PermFestivalsDelete},

	// Weather proxy and batch dispatch.
	{http.MethodGet, "/api/weather", shared.PermWeatherRead},
	{http.MethodGet, "/api/weather/{region_code}", shared.PermWeatherRead},
	{http.MethodPost, "/api/weather/reports", shared.PermWeatherGenerate},
	{http.MethodGet, "/api/batch-jobs", shared.PermBatchRead},
	{http.MethodPost, "/api/batch-jobs", shared.PermBatchWrite},
	{http.MethodGet, "/api/batch-jobs/{job_id}", shared.PermBatchRead},
}

// rbacPrefix is the subtree resolved by the coarse method fallback rather than
// the table above.
const rbacPrefix = "/api/admin/rbac"

// RequiredPermission maps an inbound method+path to the permission it needs.
// Resolution order: exact table match, then first pattern-entry match in table
// order, then the rbac subtree method fallback. An empty result means no
// permission is required: absence from the table marks an endpoint public.
func RequiredPermission(method, path string) string {
	path = normalizePath(path)

	for _, entry := range routeTable {
		if entry.Method == method && entry.Path == path {
			return entry.Permission
		}
	}

	for _, entry := range routeTable {
		if entry.Method != method || !strings.Contains(entry.Path, "{") {
			continue
		}
		if matchPattern(entry.Path, path) {
			return entry.Permission
		}
	}

	if path == rbacPrefix || strings.HasPrefix(path, rbacPrefix+"/") {
		switch method {
		case http.MethodGet:
			return shared.PermRBACRead
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			return shared.PermRBACWrite
		case http.MethodDelete:
			return shared.PermRBACDelete
		}
	}

	return ""
}

// normalizePath strips a single trailing slash, keeping the root path intact.
func normalizePath(path string) string {
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}

// matchPattern reports whether a {param}-style pattern matches the path.
// Both are split on "/"; segment counts must be equal, placeholder segments
// match exactly one segment, and literal segments must match case-sensitively.
func matchPattern(pattern, path string) bool {
	patternParts := strings.Split(pattern, "/")
	pathParts := strings.Split(path, "/")
	if len(patternParts) != len(pathParts) {
		return false
	}
	for i, part := range patternParts {
		if strings.HasPrefix(part, "{") && strings.HasSuffix(part, "}") {
			continue
		}
		if part != pathParts[i] {
			return false
		}
	}
	return true
}

// PermissionResource returns the resource half of a dotted permission name.
func PermissionResource(name string) string {
	if i := strings.IndexByte(name, '.'); i > 0 {
		return name[:i]
	}
	return name
}

// PermissionAction returns the action half of a dotted permission name.
func PermissionAction(name string) string {
	if i := strings.IndexByte(name, '.'); i >= 0 && i < len(name)-1 {
		return name[i+1:]
	}
	return ""
}
