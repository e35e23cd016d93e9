// Package requestctx carries the authenticated caller through request contexts.
package requestctx

import "context"

// principalContextKey is the context key for the authenticated caller.
type principalContextKey struct{}

// Principal identifies the authenticated caller of a request.
// Role is empty for callers without a role claim.
type Principal struct {
	SubjectID string
	Role      string
}

// WithPrincipal stores the authenticated caller in context.
func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the authenticated caller stored in context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	value, ok := ctx.Value(principalContextKey{}).(Principal)
	if !ok || value.SubjectID == "" {
		return Principal{}, false
	}
	return value, true
}

// SubjectIDFromContext returns the authenticated subject ID, or "" when absent.
func SubjectIDFromContext(ctx context.Context) string {
	principal, _ := PrincipalFromContext(ctx)
	return principal.SubjectID
}
