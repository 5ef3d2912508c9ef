// Package account manages the Garmin credential lifecycle of a user.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/fitsync"
	"github.com/2beens/runcoach/internal/garmin"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/internal/users"
	"github.com/2beens/runcoach/internal/vault"
	"github.com/2beens/runcoach/pkg"
)

type userStore interface {
	Get(ctx context.Context, id uuid.UUID) (*users.User, error)
	UpdateCredential(ctx context.Context, id uuid.UUID, sealed []byte) error
	ClearCredential(ctx context.Context, id uuid.UUID) error
}

type credentialVault interface {
	OpenPayload(blob []byte) (*vault.CredentialPayload, error)
	SealPayload(payload vault.CredentialPayload) ([]byte, error)
}

type ConnectRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type StatusResponse struct {
	Connected    bool       `json:"connected"`
	LastSyncAt   *time.Time `json:"lastSyncAt"`
	Capabilities []string   `json:"capabilities"`
}

type Handler struct {
	users   userStore
	vault   credentialVault
	connect fitsync.Connector
	now     func() time.Time
}

func NewHandler(users userStore, vault credentialVault, connect fitsync.Connector) *Handler {
	return &Handler{
		users:   users,
		vault:   vault,
		connect: connect,
		now:     time.Now,
	}
}

// HandleConnect logs in to Garmin once to validate the credentials, then stores them sealed
// together with the detected capabilities and session.
func (handler *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.garmin.connect")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("garmin connect for user %s, unmarshal body: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusBadRequest, "malformed connect request")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Password == "" {
		pkg.WriteJSONError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	client, err := handler.connect(ctx, garmin.Credentials{Email: req.Email, Password: req.Password})
	if err != nil {
		log.Warnf("garmin connect for user %s failed: %s", userID, err)
		apperror.WriteHTTP(w, err)
		return
	}

	capabilities := client.Capabilities()
	sealed, err := handler.vault.SealPayload(vault.CredentialPayload{
		Provider:     vault.ProviderGarmin,
		ConnectedAt:  handler.now(),
		Credentials:  vault.Credentials{Email: req.Email, Password: req.Password},
		SessionData:  client.SessionData(),
		Capabilities: capabilities,
	})
	if err != nil {
		log.Errorf("seal credential for user %s: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusInternalServerError, "failed to store Garmin credentials")
		return
	}

	if err := handler.users.UpdateCredential(ctx, userID, sealed); err != nil {
		log.Errorf("store credential for user %s: %s", userID, err)
		if errors.Is(err, users.ErrUserNotFound) {
			pkg.WriteJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		pkg.WriteJSONError(w, http.StatusInternalServerError, "failed to store Garmin credentials")
		return
	}

	log.Infof("user %s connected Garmin, capabilities: %v", userID, capabilities)
	pkg.WriteJSON(w, http.StatusOK, StatusResponse{
		Connected:    true,
		Capabilities: capabilities,
	})
}

func (handler *Handler) HandleDisconnect(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.garmin.disconnect")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	if err := handler.users.ClearCredential(ctx, userID); err != nil {
		log.Errorf("clear credential for user %s: %s", userID, err)
		if errors.Is(err, users.ErrUserNotFound) {
			pkg.WriteJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		pkg.WriteJSONError(w, http.StatusInternalServerError, "failed to disconnect Garmin")
		return
	}

	pkg.WriteJSON(w, http.StatusOK, StatusResponse{
		Connected:    false,
		Capabilities: []string{},
	})
}

func (handler *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.garmin.status")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	user, err := handler.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			pkg.WriteJSONError(w, http.StatusNotFound, "user not found")
			return
		}
		log.Errorf("get user %s: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusInternalServerError, "failed to get Garmin status")
		return
	}

	resp := StatusResponse{
		Connected:    user.HasCredential(),
		LastSyncAt:   user.LastSyncAt,
		Capabilities: []string{},
	}
	if resp.Connected {
		payload, err := handler.vault.OpenPayload(user.EncryptedCredential)
		if err != nil {
			// still reported as connected, the next sync surfaces the corrupted credential
			log.Warnf("open credential for user %s: %s", userID, err)
		} else {
			resp.Capabilities = payload.Capabilities
		}
	}

	pkg.WriteJSON(w, http.StatusOK, resp)
}
