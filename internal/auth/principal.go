package auth

import "context"

// Principal is the authenticated caller with the permission names granted
// by their role.
type Principal struct {
	UserID      int64
	RoleID      int64
	Permissions map[string]bool
}

// Can reports whether the caller holds a permission.
func (p *Principal) Can(permission string) bool {
	return p != nil && p.Permissions[permission]
}

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the caller stored by WithPrincipal, or nil.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
