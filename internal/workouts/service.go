package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/fitness"
	"github.com/2beens/runcoach/internal/telemetry/metrics"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/internal/workouts/ai"
)

type workoutStore interface {
	Create(ctx context.Context, w *Workout) error
	Get(ctx context.Context, userID, id uuid.UUID) (*Workout, error)
	List(ctx context.Context, userID uuid.UUID, limit int) ([]Workout, error)
	UpdateStatus(ctx context.Context, userID, id uuid.UUID, from, to Status, garminWorkoutID *string) (*Workout, error)
}

type profileGetter interface {
	Get(ctx context.Context, userID uuid.UUID) (*fitness.RunningFitnessProfile, error)
}

type activityLister interface {
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.Activity, error)
}

type healthLister interface {
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]fitness.DailyHealthReading, error)
}

type uploader interface {
	UploadWorkout(ctx context.Context, userID uuid.UUID, workout json.RawMessage) (string, error)
}

var errWorkoutNotFound = apperror.New(apperror.KindValidation, http.StatusNotFound, "workout not found", nil)

type Service struct {
	provider     ai.Provider
	workouts     workoutStore
	profiles     profileGetter
	activities   activityLister
	health       healthLister
	uploader     uploader
	systemPrompt string
	metrics      *metrics.Manager
}

func NewService(
	provider ai.Provider,
	workouts workoutStore,
	profiles profileGetter,
	activities activityLister,
	health healthLister,
	uploader uploader,
	systemPrompt string,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		provider:     provider,
		workouts:     workouts,
		profiles:     profiles,
		activities:   activities,
		health:       health,
		uploader:     uploader,
		systemPrompt: systemPrompt,
		metrics:      metricsManager,
	}
}

func validateRequest(req Request) error {
	if !req.WorkoutType.Valid() {
		return apperror.Validation(fmt.Sprintf("workoutType must be one of %v", AllTypes))
	}
	if req.DistanceKm != nil {
		d := *req.DistanceKm
		if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
			return apperror.Validation("distanceKm must be a positive number")
		}
	}
	return nil
}

func (s *Service) loadContext(ctx context.Context, userID uuid.UUID) (*PromptContext, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, fitness.ErrProfileNotFound) {
			return nil, apperror.Validation("no fitness profile yet, sync your Garmin data first")
		}
		return nil, fmt.Errorf("load fitness profile: %w", err)
	}
	activities, err := s.activities.ListRecent(ctx, userID, PromptActivities)
	if err != nil {
		return nil, fmt.Errorf("load recent activities: %w", err)
	}
	readings, err := s.health.ListRecent(ctx, userID, PromptReadings)
	if err != nil {
		return nil, fmt.Errorf("load recent health readings: %w", err)
	}
	return &PromptContext{
		Profile:    profile,
		Activities: activities,
		Readings:   readings,
	}, nil
}

func (s *Service) observeGeneration(startedAt time.Time, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = string(apperror.KindOf(err))
	}
	s.metrics.CounterWorkoutGenerations.WithLabelValues(s.provider.Name(), outcome).Inc()
	s.metrics.HistogramGenerationDuration.WithLabelValues(s.provider.Name()).Observe(time.Since(startedAt).Seconds())
}

// Generate asks the AI provider for a workout and stores it as generated.
func (s *Service) Generate(ctx context.Context, userID uuid.UUID, req Request) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.generate")
	defer tracing.EndSpanWithErrCheck(span, &err)

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	pc, err := s.loadContext(ctx, userID)
	if err != nil {
		return nil, err
	}
	messages, err := BuildMessages(s.systemPrompt, *pc, req)
	if err != nil {
		return nil, err
	}

	startedAt := time.Now()
	text, err := s.provider.GenerateCompletion(ctx, messages)
	if err == nil {
		var generated *Generated
		generated, err = ParseResponse(text)
		if err == nil {
			s.observeGeneration(startedAt, nil)
			return s.store(ctx, userID, req, generated)
		}
		log.Warnf("unusable %s workout response for user %s: %s", s.provider.Name(), userID, err)
		err = responseError(s.provider.Name(), err)
	}
	s.observeGeneration(startedAt, err)
	return nil, err
}

func responseError(provider string, err error) *apperror.Error {
	message := "the AI response could not be read as JSON, try again"
	if errors.Is(err, ErrMissingFields) {
		message = "the AI workout is missing required fields, try again"
	}
	return apperror.New(apperror.KindUnknown, http.StatusInternalServerError, message, err).WithSource(provider)
}

func (s *Service) store(ctx context.Context, userID uuid.UUID, req Request, generated *Generated) (*Workout, error) {
	w := &Workout{
		UserID:      userID,
		WorkoutType: req.WorkoutType,
		UserPrompt:  req.UserPrompt,
		WorkoutJSON: generated.Workout,
		Explanation: generated.Explanation,
		Status:      StatusGenerated,
		AIProvider:  s.provider.Name(),
	}
	if err := s.workouts.Create(ctx, w); err != nil {
		return nil, err
	}
	log.Debugf("user %s: generated %s workout %s", userID, w.WorkoutType, w.ID)
	return w, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (*Workout, error) {
	w, err := s.workouts.Get(ctx, userID, id)
	if errors.Is(err, ErrWorkoutNotFound) {
		return nil, errWorkoutNotFound
	}
	return w, err
}

func (s *Service) List(ctx context.Context, userID uuid.UUID, limit int) ([]Workout, error) {
	return s.workouts.List(ctx, userID, limit)
}

func transitionError(w *Workout, to Status) *apperror.Error {
	return apperror.New(apperror.KindValidation, http.StatusConflict,
		fmt.Sprintf("workout is %s and cannot become %s", w.Status, to), nil)
}

// Accept uploads a generated workout. The status moves to uploaded only when the upload
// succeeded, otherwise it stays generated and the user can retry.
func (s *Service) Accept(ctx context.Context, userID, id uuid.UUID) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.accept")
	defer tracing.EndSpanWithErrCheck(span, &err)

	w, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !w.Status.CanTransitionTo(StatusUploaded) {
		return nil, transitionError(w, StatusUploaded)
	}

	garminWorkoutID, err := s.uploader.UploadWorkout(ctx, userID, w.WorkoutJSON)
	if err != nil {
		log.Warnf("upload workout %s for user %s: %s", id, userID, err)
		return nil, err
	}

	var idPtr *string
	if garminWorkoutID != "" {
		idPtr = &garminWorkoutID
	}
	updated, err := s.workouts.UpdateStatus(ctx, userID, id, StatusGenerated, StatusUploaded, idPtr)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, apperror.New(apperror.KindValidation, http.StatusConflict, "workout status changed, reload it", err)
		}
		return nil, err
	}
	return updated, nil
}

// Reject marks a workout rejected. Rejecting twice is a no-op, an uploaded workout cannot be
// rejected.
func (s *Service) Reject(ctx context.Context, userID, id uuid.UUID) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "workouts.reject")
	defer tracing.EndSpanWithErrCheck(span, &err)

	w, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if w.Status == StatusRejected {
		return w, nil
	}
	if !w.Status.CanTransitionTo(StatusRejected) {
		return nil, transitionError(w, StatusRejected)
	}

	updated, err := s.workouts.UpdateStatus(ctx, userID, id, StatusGenerated, StatusRejected, nil)
	if err != nil {
		if errors.Is(err, ErrStatusConflict) {
			return nil, apperror.New(apperror.KindValidation, http.StatusConflict, "workout status changed, reload it", err)
		}
		return nil, err
	}
	return updated, nil
}
