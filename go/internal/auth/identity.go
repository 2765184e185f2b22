package auth

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the resolved credential attached to a request or connection.
type Identity struct {
	MemberID uuid.UUID
	Name     string
	Email    string
}

type contextKey struct{}

// WithIdentity returns a context carrying the identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext extracts the identity set by the auth middleware.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}
