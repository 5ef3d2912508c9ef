package fitsync

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=fitsync_test

// DefaultSyncDays is the trailing window synced when the request names no dates.
const DefaultSyncDays = 30

type syncer interface {
	SyncAll(ctx context.Context, userID uuid.UUID, start, end time.Time) (*AllResult, error)
}

type SyncRequest struct {
	StartDate string `json:"startDate,omitempty"`
	EndDate   string `json:"endDate,omitempty"`
}

type SyncFailureResponse struct {
	Error string `json:"error"`
	*AllResult
}

type Handler struct {
	service syncer
	now     func() time.Time
}

func NewHandler(service syncer) *Handler {
	return &Handler{
		service: service,
		now:     time.Now,
	}
}

// syncRange resolves the requested dates. Missing dates default to the trailing
// DefaultSyncDays ending today.
func (handler *Handler) syncRange(req SyncRequest) (time.Time, time.Time, error) {
	end := pkg.StartOfDay(handler.now())
	if req.EndDate != "" {
		parsed, err := pkg.ParseDate(req.EndDate)
		if err != nil {
			return time.Time{}, time.Time{}, apperror.Validation("endDate must be YYYY-MM-DD")
		}
		end = parsed
	}

	start := end.AddDate(0, 0, -(DefaultSyncDays - 1))
	if req.StartDate != "" {
		parsed, err := pkg.ParseDate(req.StartDate)
		if err != nil {
			return time.Time{}, time.Time{}, apperror.Validation("startDate must be YYYY-MM-DD")
		}
		start = parsed
	}

	if start.After(end) {
		return time.Time{}, time.Time{}, apperror.Validation("startDate must not be after endDate")
	}
	return start, end, nil
}

func (handler *Handler) HandleSync(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.garmin.sync")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Debugf("sync request for user %s, unmarshal body: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusBadRequest, "malformed sync request")
		return
	}

	start, end, err := handler.syncRange(req)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	res, err := handler.service.SyncAll(ctx, userID, start, end)
	if err != nil {
		log.Errorf("sync for user %s: %s", userID, err)
		apperror.WriteHTTP(w, err)
		return
	}

	if !res.Success {
		pkg.WriteJSON(w, http.StatusBadGateway, SyncFailureResponse{
			Error:     "one or more sync operations failed",
			AllResult: res,
		})
		return
	}
	pkg.WriteJSON(w, http.StatusOK, res)
}
