package auth

import (
	"context"

	"github.com/google/uuid"
)

type TestResolver struct {
	Sessions map[string]uuid.UUID
}

func NewTestResolver() *TestResolver {
	return &TestResolver{
		Sessions: map[string]uuid.UUID{},
	}
}

func (r *TestResolver) Resolve(_ context.Context, token string) (uuid.UUID, error) {
	userID, ok := r.Sessions[token]
	if !ok {
		return uuid.Nil, ErrSessionNotFound
	}
	return userID, nil
}
