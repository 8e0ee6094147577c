package auth

import "context"

// Role identifies the actor category resolved at authentication. Roles are
// mutually exclusive per session.
type Role string

const (
	RoleWorker    Role = "worker"
	RoleClinician Role = "clinician"
	RoleAdmin     Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	return r == RoleWorker || r == RoleClinician || r == RoleAdmin
}

// Principal is an authenticated actor. It is resolved once per request by the
// auth middleware and passed explicitly into every service call; there is no
// ambient current-user state.
type Principal struct {
	ID   int64
	Role Role
}

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal returns a context carrying the authenticated principal.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// PrincipalFromContext retrieves the authenticated principal, or nil when the
// request is unauthenticated. A nil principal denies all actions.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey).(*Principal)
	return p
}
