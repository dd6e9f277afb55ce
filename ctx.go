package account

import "context"

var userCtxKey = &contextKey{"user"}
var claimsCtxKey = &contextKey{"claims"}

type contextKey struct {
	name string
}

// WithContext sets the User in the given context
func WithContext(r context.Context, user *User) context.Context {
	return context.WithValue(r, userCtxKey, user)
}

// FromContext finds the user from the context.
func FromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok && raw != nil
}

// WithClaimsContext sets the Claims in the given context
func WithClaimsContext(r context.Context, claims *Claims) context.Context {
	return context.WithValue(r, claimsCtxKey, claims)
}

// GetClaims extracts the Claims from the standard context
func GetClaims(ctx context.Context) (*Claims, bool) {
	raw, ok := ctx.Value(claimsCtxKey).(*Claims)
	return raw, ok && raw != nil
}

// LocalsReader reads request locals, router.Context satisfies it
type LocalsReader interface {
	Locals(key any, value ...any) any
}

// ClaimsFromLocals returns the claims attached by VerifyRequest
func ClaimsFromLocals(c LocalsReader) (*Claims, bool) {
	raw := c.Locals(ClaimsLocalsKey)
	if raw == nil {
		return nil, false
	}
	claims, ok := raw.(*Claims)
	return claims, ok && claims != nil
}
