package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tripcast/tripcast-admin/internal/observability"
	"github.com/tripcast/tripcast-admin/internal/platform/httpx"
	"github.com/tripcast/tripcast-admin/internal/shared"
)

// Verifier resolves a raw bearer token to the authenticated principal.
type Verifier func(ctx context.Context, rawToken string) (Principal, error)

// Middleware is the access decision point: it authenticates the principal,
// maps the request to its required permission, decides allow/deny, and
// records every evaluated decision in the audit log.
type Middleware struct {
	Service *Service
	Audit   AuditStore
	Verify  Verifier
	Logger  *slog.Logger
	Metrics *observability.Metrics

	// PublicPaths are exact paths that skip authentication entirely.
	PublicPaths []string
	// PublicPrefixes are path prefixes (docs and the like) that skip authentication.
	PublicPrefixes []string
}

// DefaultPublicPaths lists the endpoints reachable without a token.
func DefaultPublicPaths() []string {
	return []string{
		"/",
		"/healthz",
		"/metrics",
		"/api/admin/auth/login",
		"/api/admin/auth/refresh",
	}
}

// Handler installs the access decision flow in front of next.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || m.isPublic(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		rawToken := shared.BearerToken(r)
		if rawToken == "" {
			// No principal yet, so nothing to audit.
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing bearer token")
			return
		}
		principal, err := m.Verify(r.Context(), rawToken)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid or expired token")
			return
		}

		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		r = r.WithContext(ctx)

		required := RequiredPermission(r.Method, r.URL.Path)
		if required == "" {
			// Endpoint absent from the table: no permission required.
			next.ServeHTTP(w, r)
			return
		}

		allowed, err := m.Service.HasPermission(ctx, principal, required)
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("rbac permission check", slog.String("permission", required), slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
			return
		}

		m.record(ctx, r, principal, required, allowed)
		m.Metrics.RecordDecision(required, allowed)

		if !allowed {
			httpx.Problem(w, http.StatusForbidden, "Forbidden",
				fmt.Sprintf("missing required permission: %s", required))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission is the per-route enforcement path. It expects the access
// decision middleware to have authenticated the principal already and applies
// the same decision and audit semantics for the named permission.
func (m Middleware) RequirePermission(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			allowed, err := m.Service.HasPermission(r.Context(), principal, name)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac require permission", slog.String("permission", name), slog.Any("error", err))
				}
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			m.record(r.Context(), r, principal, name, allowed)
			m.Metrics.RecordDecision(name, allowed)
			if !allowed {
				httpx.Problem(w, http.StatusForbidden, "Forbidden",
					fmt.Sprintf("missing required permission: %s", name))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperAdmin rejects any non-superuser principal.
func (m Middleware) RequireSuperAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal := shared.PrincipalFromContext(r.Context())
		if principal == nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		if !principal.IsSuperUser() {
			httpx.Problem(w, http.StatusForbidden, "Forbidden", "superuser access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) isPublic(path string) bool {
	path = normalizePath(path)
	paths := m.PublicPaths
	if paths == nil {
		paths = DefaultPublicPaths()
	}
	for _, p := range paths {
		if path == p {
			return true
		}
	}
	for _, prefix := range m.PublicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// record writes the audit row for one evaluated decision. The insert is a
// standalone statement: a granted decision stays recorded even if the guarded
// handler fails later.
func (m Middleware) record(ctx context.Context, r *http.Request, principal Principal, permission string, allowed bool) {
	entry := AuditEntry{
		AdminID:      principal.GetID(),
		Permission:   permission,
		Action:       PermissionAction(permission),
		ResourceType: PermissionResource(permission),
		Success:      allowed,
		IPAddress:    clientIP(r),
		UserAgent:    r.UserAgent(),
	}
	if !allowed {
		entry.FailureReason = fmt.Sprintf("admin lacks permission %s", permission)
	}
	if err := m.Audit.Record(ctx, entry); err != nil && m.Logger != nil {
		m.Logger.Error("rbac audit write", slog.String("permission", permission), slog.Any("error", err))
	}
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from forwarding headers.
	host := r.RemoteAddr
	if i := strings.LastIndexByte(host, ':'); i > 0 {
		host = host[:i]
	}
	return host
}
