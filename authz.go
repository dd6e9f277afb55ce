package account

import (
	"context"

	"github.com/google/uuid"
)

// DefaultOwnerParam is the path parameter holding the target user id
const DefaultOwnerParam = "id"

// ParamsLocalsReader is a request with path parameters and locals
type ParamsLocalsReader interface {
	LocalsReader
	Param(name string, defaultValue ...string) string
}

// UserFinder loads a user by id
type UserFinder interface {
	GetByID(ctx context.Context, id string) (*User, error)
}

// Gate answers ownership and admin questions about verified requests.
// Both checks require VerifyRequest to have run first; without decoded
// claims they fail with ErrClaimsNotDecoded rather than returning false.
type Gate struct {
	users      UserFinder
	ownerParam string
}

// NewGate creates a gate. An empty ownerParam uses DefaultOwnerParam.
func NewGate(users UserFinder, ownerParam string) *Gate {
	return &Gate{
		users:      users,
		ownerParam: orDefault(ownerParam, DefaultOwnerParam),
	}
}

// IsOwner reports whether the decoded subject is the user the path acts on
func (g *Gate) IsOwner(c ParamsLocalsReader) (bool, error) {
	claims, ok := ClaimsFromLocals(c)
	if !ok {
		return false, ErrClaimsNotDecoded
	}
	return claims.Subject != "" && claims.Subject == c.Param(g.ownerParam), nil
}

// IsAdmin loads the subject and checks for the admin role. Lookup errors
// are returned as is, so callers can tell a failed lookup from a plain no.
func (g *Gate) IsAdmin(ctx context.Context, claims *Claims) (bool, error) {
	if claims == nil || claims.Subject == "" {
		return false, ErrClaimsNotDecoded
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return false, ErrTokenInvalid
	}

	user, err := g.users.GetByID(ctx, claims.Subject)
	if err != nil {
		return false, err
	}
	return IsAdminUser(user), nil
}

// IsAdminRequest runs IsAdmin with the claims attached to the request
func (g *Gate) IsAdminRequest(ctx context.Context, c LocalsReader) (bool, error) {
	claims, ok := ClaimsFromLocals(c)
	if !ok {
		return false, ErrClaimsNotDecoded
	}
	return g.IsAdmin(ctx, claims)
}

// IsAdminUser is the variant for callers that already loaded the record
func IsAdminUser(p Principal) bool {
	if p == nil {
		return false
	}
	return p.IsAdmin()
}
