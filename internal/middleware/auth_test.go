package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/middleware"
)

type brokenResolver struct{}

func (brokenResolver) Resolve(context.Context, string) (uuid.UUID, error) {
	return uuid.Nil, errors.New("redis down")
}

func TestAuthMiddlewareHandler_AuthCheck(t *testing.T) {
	userID := uuid.New()
	resolver := auth.NewTestResolver()
	resolver.Sessions["valid-token"] = userID
	authMiddleware := middleware.NewAuthMiddlewareHandler(resolver)

	testCases := []struct {
		name               string
		path               string
		method             string
		bearer             string
		tokenHeader        string
		expectedStatusCode int
		expectedUserID     uuid.UUID
	}{
		{
			name:               "AllowedPathWithoutToken",
			path:               "/version",
			method:             "GET",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "MCPPathWithoutToken",
			path:               "/mcp",
			method:             "POST",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "Options",
			path:               "/garmin/sync",
			method:             "OPTIONS",
			expectedStatusCode: http.StatusOK,
		},
		{
			name:               "MissingToken",
			path:               "/garmin/status",
			method:             "GET",
			expectedStatusCode: http.StatusUnauthorized,
		},
		{
			name:               "ValidBearerToken",
			path:               "/garmin/status",
			method:             "GET",
			bearer:             "valid-token",
			expectedStatusCode: http.StatusOK,
			expectedUserID:     userID,
		},
		{
			name:               "ValidTokenHeader",
			path:               "/workouts",
			method:             "GET",
			tokenHeader:        "valid-token",
			expectedStatusCode: http.StatusOK,
			expectedUserID:     userID,
		},
		{
			name:               "UnknownToken",
			path:               "/workouts",
			method:             "GET",
			bearer:             "other-token",
			expectedStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, tc.path, nil)
			require.NoError(t, err)
			if tc.bearer != "" {
				req.Header.Add("Authorization", "Bearer "+tc.bearer)
			}
			if tc.tokenHeader != "" {
				req.Header.Add(middleware.TokenHeader, tc.tokenHeader)
			}

			var seenUserID uuid.UUID
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenUserID, _ = auth.UserIDFromContext(r.Context())
			})
			rr := httptest.NewRecorder()
			authMiddleware.AuthCheck()(handler).ServeHTTP(rr, req)

			assert.Equal(t, tc.expectedStatusCode, rr.Code)
			assert.Equal(t, tc.expectedUserID, seenUserID)
		})
	}
}

func TestAuthMiddlewareHandler_ResolverError(t *testing.T) {
	req := httptest.NewRequest("GET", "/garmin/status", nil)
	req.Header.Add("Authorization", "Bearer whatever")

	called := false
	rr := httptest.NewRecorder()
	middleware.NewAuthMiddlewareHandler(brokenResolver{}).AuthCheck()(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }),
	).ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, called)
}
