package fitsync

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/garmin"
	"github.com/2beens/runcoach/internal/garmin/connect"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/internal/users"
	"github.com/2beens/runcoach/internal/vault"
)

// Connector builds a logged in Garmin client for one set of credentials.
type Connector func(ctx context.Context, creds garmin.Credentials, opts ...garmin.Option) (garmin.Client, error)

// NewConnector connects through the default Garmin Connect HTTP client.
func NewConnector(factory connect.Factory, onFallback func(op string)) Connector {
	return func(ctx context.Context, creds garmin.Credentials, opts ...garmin.Option) (garmin.Client, error) {
		base := []garmin.Option{
			garmin.WithConstructors(garmin.Constructor{Name: "garmin-connect", Fn: factory.New}),
			garmin.WithHTTPClient(factory.HTTPClient),
			garmin.WithFallbackHook(onFallback),
		}
		adapter, err := garmin.Connect(ctx, creds, append(base, opts...)...)
		if err != nil {
			return nil, err
		}
		return adapter, nil
	}
}

// Session is one connected adapter shared by the operations of a single sync request.
type Session struct {
	UserID uuid.UUID
	Client garmin.Client
}

var (
	errNotConnected = apperror.Validation("Garmin account not connected")
	errUnknownUser  = apperror.New(apperror.KindValidation, http.StatusNotFound, "user not found", nil)
)

// CreateSyncContext logs in once for userID, reusing the persisted capabilities and session.
// The sealed payload is rewritten when the session or the capabilities changed.
func (s *Service) CreateSyncContext(ctx context.Context, userID uuid.UUID) (_ *Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitsync.createSyncContext")
	defer tracing.EndSpanWithErrCheck(span, &err)

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			return nil, errUnknownUser
		}
		return nil, err
	}
	if !user.HasCredential() {
		return nil, errNotConnected
	}

	payload, err := s.vault.OpenPayload(user.EncryptedCredential)
	if err != nil {
		log.Errorf("open credential payload for user %s: %s", userID, err)
		return nil, apperror.New(apperror.KindValidation, http.StatusBadRequest, vault.ErrCorrupted.Error(), err)
	}

	client, err := s.connect(ctx, garmin.Credentials{
		Email:    payload.Credentials.Email,
		Password: payload.Credentials.Password,
	},
		garmin.WithCapabilities(payload.Capabilities),
		garmin.WithSessionData(payload.SessionData),
	)
	if err != nil {
		return nil, err
	}

	s.resealIfChanged(ctx, userID, payload, client)

	return &Session{
		UserID: userID,
		Client: client,
	}, nil
}

func (s *Service) resealIfChanged(ctx context.Context, userID uuid.UUID, payload *vault.CredentialPayload, client garmin.Client) {
	capabilities := client.Capabilities()
	sessionData := client.SessionData()
	if slices.Equal(capabilities, payload.Capabilities) && bytes.Equal(sessionData, payload.SessionData) {
		return
	}

	payload.Capabilities = capabilities
	payload.SessionData = sessionData
	sealed, err := s.vault.SealPayload(*payload)
	if err != nil {
		log.Errorf("reseal credential payload for user %s: %s", userID, err)
		return
	}
	if err := s.users.UpdateCredential(ctx, userID, sealed); err != nil {
		log.Errorf("store resealed credential for user %s: %s", userID, err)
		return
	}
	log.Debugf("credential payload for user %s resealed, capabilities: %v", userID, capabilities)
}

func (s *Service) ensureSession(ctx context.Context, userID uuid.UUID, session *Session) (*Session, error) {
	if session != nil {
		return session, nil
	}
	return s.CreateSyncContext(ctx, userID)
}
