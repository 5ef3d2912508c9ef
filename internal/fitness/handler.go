package fitness

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/pkg"
)

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

type profileGetter interface {
	Get(ctx context.Context, userID uuid.UUID) (*RunningFitnessProfile, error)
}

type activityLister interface {
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]Activity, error)
}

type healthLister interface {
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]DailyHealthReading, error)
}

type PacesResponse struct {
	Predicted10KSeconds float64           `json:"predicted10kSeconds"`
	Paces               TrainingPaces     `json:"paces"`
	Formatted           map[string]string `json:"formatted"`
}

// NewPacesResponse pairs the computed zones with their m:ss rendering.
func NewPacesResponse(predicted10kSeconds float64, paces TrainingPaces) PacesResponse {
	return PacesResponse{
		Predicted10KSeconds: predicted10kSeconds,
		Paces:               paces,
		Formatted: map[string]string{
			"easyPaceLow":    FormatPace(paces.EasyPaceLow),
			"easyPaceHigh":   FormatPace(paces.EasyPaceHigh),
			"tempoPace":      FormatPace(paces.TempoPace),
			"thresholdPace":  FormatPace(paces.ThresholdPace),
			"intervalPace":   FormatPace(paces.IntervalPace),
			"repetitionPace": FormatPace(paces.RepetitionPace),
		},
	}
}

type Handler struct {
	profiles   profileGetter
	activities activityLister
	health     healthLister
}

func NewHandler(profiles profileGetter, activities activityLister, health healthLister) *Handler {
	return &Handler{
		profiles:   profiles,
		activities: activities,
		health:     health,
	}
}

func listLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit < 1 {
		return 0, apperror.Validation("limit must be a positive number")
	}
	return min(limit, maxListLimit), nil
}

func (handler *Handler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitness.profile")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	profile, err := handler.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			pkg.WriteJSONError(w, http.StatusNotFound, "no fitness profile yet, sync your Garmin data first")
			return
		}
		log.Errorf("get fitness profile for user %s: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusInternalServerError, "failed to get fitness profile")
		return
	}
	pkg.WriteJSON(w, http.StatusOK, profile)
}

func (handler *Handler) HandlePaces(w http.ResponseWriter, r *http.Request) {
	_, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitness.paces")
	defer span.End()

	tenKStr := r.URL.Query().Get("tenK")
	if tenKStr == "" {
		pkg.WriteJSONError(w, http.StatusBadRequest, "tenK parameter missing")
		return
	}
	tenK, err := strconv.ParseFloat(tenKStr, 64)
	if err != nil {
		pkg.WriteJSONError(w, http.StatusBadRequest, "tenK must be a number of seconds")
		return
	}

	paces, err := CalculateTrainingPaces(tenK)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}
	pkg.WriteJSON(w, http.StatusOK, NewPacesResponse(tenK, paces))
}

func (handler *Handler) HandleActivities(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitness.activities")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}
	limit, err := listLimit(r)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	activities, err := handler.activities.ListRecent(ctx, userID, limit)
	if err != nil {
		log.Errorf("list activities for user %s: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusInternalServerError, "failed to list activities")
		return
	}
	pkg.WriteJSON(w, http.StatusOK, activities)
}

func (handler *Handler) HandleHealthReadings(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.fitness.healthReadings")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}
	limit, err := listLimit(r)
	if err != nil {
		apperror.WriteHTTP(w, err)
		return
	}

	readings, err := handler.health.ListRecent(ctx, userID, limit)
	if err != nil {
		log.Errorf("list health readings for user %s: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusInternalServerError, "failed to list health readings")
		return
	}
	pkg.WriteJSON(w, http.StatusOK, readings)
}
