package workouts

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/auth"
	"github.com/2beens/runcoach/internal/middleware"
	"github.com/2beens/runcoach/internal/telemetry/metrics"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/pkg"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type generator interface {
	Generate(ctx context.Context, userID uuid.UUID, req Request) (*Workout, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*Workout, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]Workout, error)
	Accept(ctx context.Context, userID, id uuid.UUID) (*Workout, error)
	Reject(ctx context.Context, userID, id uuid.UUID) (*Workout, error)
}

type GenerateResponse struct {
	ID          uuid.UUID       `json:"id"`
	Workout     json.RawMessage `json:"workout"`
	Explanation string          `json:"explanation"`
}

type Handler struct {
	service generator
}

func NewHandler(service generator) *Handler {
	return &Handler{
		service: service,
	}
}

func (handler *Handler) SetupRoutes(
	router *mux.Router,
	rateLimiter middleware.RequestRateLimiter,
	generatePerMin int,
	metricsManager *metrics.Manager,
) {
	// per user limit on AI generation
	generateRouter := router.PathPrefix("/workouts/generate").Subrouter()
	generateRouter.HandleFunc("", handler.HandleGenerate).Methods("POST", "OPTIONS").Name("generate-workout")
	generateRouter.Use(middleware.RateLimit(rateLimiter, "generate", generatePerMin, metricsManager))

	router.HandleFunc("/workouts/{id}/accept", handler.HandleAccept).Methods("POST", "OPTIONS").Name("accept-workout")
	router.HandleFunc("/workouts/{id}/reject", handler.HandleReject).Methods("POST", "OPTIONS").Name("reject-workout")
	router.HandleFunc("/workouts/{id}", handler.HandleGet).Methods("GET").Name("get-workout")
	router.HandleFunc("/workouts", handler.HandleList).Methods("GET").Name("list-workouts")
}

func (handler *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.generate")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Debugf("generate workout for user %s, unmarshal body: %s", userID, err)
		pkg.WriteJSONError(w, http.StatusBadRequest, "malformed workout request")
		return
	}

	workout, err := handler.service.Generate(ctx, userID, req)
	if err != nil {
		if apperror.KindOf(err) != apperror.KindValidation {
			log.Errorf("generate workout for user %s: %s", userID, err)
		}
		apperror.WriteHTTP(w, err)
		return
	}

	pkg.WriteJSON(w, http.StatusCreated, GenerateResponse{
		ID:          workout.ID,
		Workout:     workout.WorkoutJSON,
		Explanation: workout.Explanation,
	})
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	limit := defaultListLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			pkg.WriteJSONError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = min(parsed, maxListLimit)
	}

	list, err := handler.service.List(ctx, userID, limit)
	if err != nil {
		log.Errorf("list workouts for user %s: %s", userID, err)
		apperror.WriteHTTP(w, err)
		return
	}
	if list == nil {
		list = []Workout{}
	}
	pkg.WriteJSON(w, http.StatusOK, list)
}

func (handler *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	handler.withWorkout(w, r, "handler.workouts.get", handler.service.Get)
}

func (handler *Handler) HandleAccept(w http.ResponseWriter, r *http.Request) {
	handler.withWorkout(w, r, "handler.workouts.accept", handler.service.Accept)
}

func (handler *Handler) HandleReject(w http.ResponseWriter, r *http.Request) {
	handler.withWorkout(w, r, "handler.workouts.reject", handler.service.Reject)
}

func (handler *Handler) withWorkout(
	w http.ResponseWriter,
	r *http.Request,
	spanName string,
	action func(ctx context.Context, userID, id uuid.UUID) (*Workout, error),
) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), spanName)
	defer span.End()

	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		pkg.WriteJSONError(w, http.StatusUnauthorized, "no session")
		return
	}

	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		pkg.WriteJSONError(w, http.StatusBadRequest, "invalid workout id")
		return
	}

	workout, err := action(ctx, userID, id)
	if err != nil {
		if apperror.KindOf(err) != apperror.KindValidation {
			log.Errorf("%s, user %s, workout %s: %s", spanName, userID, id, err)
		}
		apperror.WriteHTTP(w, err)
		return
	}
	pkg.WriteJSON(w, http.StatusOK, workout)
}
