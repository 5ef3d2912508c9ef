package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/garmin"
	"github.com/2beens/runcoach/internal/users"
	"github.com/2beens/runcoach/internal/vault"
)

type usersMock struct {
	users map[uuid.UUID]*users.User
}

func (m *usersMock) Get(_ context.Context, id uuid.UUID) (*users.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return u, nil
}

func (m *usersMock) UpdateCredential(_ context.Context, id uuid.UUID, sealed []byte) error {
	u, ok := m.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	u.EncryptedCredential = sealed
	u.GarminConnected = true
	return nil
}

func (m *usersMock) ClearCredential(_ context.Context, id uuid.UUID) error {
	u, ok := m.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	u.EncryptedCredential = nil
	u.GarminConnected = false
	return nil
}

type connectedClient struct {
	garmin.Client
	capabilities []string
}

func (c connectedClient) Capabilities() []string {
	return c.capabilities
}

func (c connectedClient) SessionData() json.RawMessage {
	return nil
}

func newTestHandler(t *testing.T) (*Handler, *usersMock, uuid.UUID) {
	t.Helper()
	v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"))
	require.NoError(t, err)

	userID := uuid.New()
	um := &usersMock{users: map[uuid.UUID]*users.User{
		userID: {ID: userID, Email: "runner@example.com"},
	}}
	connector := func(_ context.Context, creds garmin.Credentials, _ ...garmin.Option) (garmin.Client, error) {
		if creds.Password != "secret" {
			return nil, garmin.Classify(errors.New("401 invalid credentials"))
		}
		return connectedClient{capabilities: []string{garmin.OpGetActivities, garmin.OpGetSleepData}}, nil
	}
	return NewHandler(um, v, connector), um, userID
}

func withUser(r *http.Request, userID uuid.UUID) *http.Request {
	return r.WithContext(auth.WithUserID(r.Context(), userID))
}

func TestHandler_ConnectStatusDisconnect(t *testing.T) {
	handler, um, userID := newTestHandler(t)

	rr := httptest.NewRecorder()
	handler.HandleStatus(rr, withUser(httptest.NewRequest(http.MethodGet, "/garmin/status", nil), userID))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"connected":false,"lastSyncAt":null,"capabilities":[]}`, rr.Body.String())

	rr = httptest.NewRecorder()
	body := strings.NewReader(`{"email":"runner@example.com","password":"secret"}`)
	handler.HandleConnect(rr, withUser(httptest.NewRequest(http.MethodPost, "/garmin/connect", body), userID))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"connected":true,"lastSyncAt":null,"capabilities":["getActivities","getSleepData"]}`, rr.Body.String())
	assert.True(t, um.users[userID].HasCredential())
	assert.NotContains(t, string(um.users[userID].EncryptedCredential), "secret")

	syncedAt := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)
	um.users[userID].LastSyncAt = &syncedAt
	rr = httptest.NewRecorder()
	handler.HandleStatus(rr, withUser(httptest.NewRequest(http.MethodGet, "/garmin/status", nil), userID))
	assert.JSONEq(t,
		`{"connected":true,"lastSyncAt":"2026-02-03T10:00:00Z","capabilities":["getActivities","getSleepData"]}`,
		rr.Body.String(),
	)

	rr = httptest.NewRecorder()
	handler.HandleDisconnect(rr, withUser(httptest.NewRequest(http.MethodDelete, "/garmin/connect", nil), userID))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, um.users[userID].GarminConnected)
	assert.Nil(t, um.users[userID].EncryptedCredential)
}

func TestHandler_Connect_Errors(t *testing.T) {
	handler, um, userID := newTestHandler(t)

	testCases := []struct {
		name           string
		userID         uuid.UUID
		body           string
		expectedStatus int
		expectedBody   string
	}{
		{"no session", uuid.Nil, `{}`, http.StatusUnauthorized, `{"error":"no session"}`},
		{"malformed", userID, `{"email":`, http.StatusBadRequest, `{"error":"malformed connect request"}`},
		{"missing password", userID, `{"email":"runner@example.com"}`, http.StatusBadRequest, `{"error":"email and password are required"}`},
		{
			"wrong password", userID, `{"email":"runner@example.com","password":"nope"}`,
			http.StatusUnauthorized, `{"error":"Garmin authentication failed, check your email and password"}`,
		},
		{"unknown user", uuid.New(), `{"email":"runner@example.com","password":"secret"}`, http.StatusNotFound, `{"error":"user not found"}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/garmin/connect", strings.NewReader(tc.body))
			if tc.userID != uuid.Nil {
				req = withUser(req, tc.userID)
			}
			rr := httptest.NewRecorder()
			handler.HandleConnect(rr, req)
			assert.Equal(t, tc.expectedStatus, rr.Code)
			assert.JSONEq(t, tc.expectedBody, rr.Body.String())
		})
	}
	assert.False(t, um.users[userID].GarminConnected)
}
