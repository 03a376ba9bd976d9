package auth

import (
	"context"

	"github.com/go-faster/errors"
)

// Role is the privilege level carried by a bearer token.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

var (
	// ErrInvalidToken is returned for malformed, expired or forged tokens.
	ErrInvalidToken = errors.New("invalid token")
	// ErrUnauthenticated is returned when a request carries no identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrForbidden is returned when the identity lacks the required role.
	ErrForbidden = errors.New("admin access required")
)

// Identity is the authenticated caller of a request.
type Identity struct {
	UserID int64
	Role   Role
}

// IsAdmin reports whether the caller has admin privileges.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

type identityKey struct{}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored in ctx, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}
