package shared

import "context"

// Principal is the authenticated admin identity carried through the request context.
type Principal interface {
	GetID() int64
	GetEmail() string
	IsSuperUser() bool
}

type principalContextKey struct{}

// ContextWithPrincipal stores the authenticated principal in context.
func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the authenticated principal from context.
// Returns nil when the request never passed authentication.
func PrincipalFromContext(ctx context.Context) Principal {
	p, _ := ctx.Value(principalContextKey{}).(Principal)
	return p
}
