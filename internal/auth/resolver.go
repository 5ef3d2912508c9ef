package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

var _ Resolver = (*SessionResolver)(nil)
var _ Resolver = (*TestResolver)(nil)

// Resolver turns an already issued session token into a user id.
type Resolver interface {
	Resolve(ctx context.Context, token string) (uuid.UUID, error)
}

type userIDKey struct{}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(userIDKey{}).(uuid.UUID)
	return userID, ok && userID != uuid.Nil
}
