package auth

import (
	"context"
	"errors"
)

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID string
	Role   string
}

type ctxKey struct{}

var ErrNoIdentity = errors.New("auth: identity not in context")

func WithIdentity(ctx context.Context, userID, role string) context.Context {
	return context.WithValue(ctx, ctxKey{}, Identity{UserID: userID, Role: role})
}

// FromContext returns the caller; ok is false for unauthenticated paths
// such as provider webhooks.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) (string, error) {
	if id, ok := FromContext(ctx); ok && id.UserID != "" {
		return id.UserID, nil
	}
	return "", ErrNoIdentity
}

func Role(ctx context.Context) (string, error) {
	if id, ok := FromContext(ctx); ok && id.Role != "" {
		return id.Role, nil
	}
	return "", ErrNoIdentity
}
