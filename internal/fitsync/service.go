// Package fitsync pulls activities, daily health and race predictions from Garmin and stores
// them. Every operation reports a Result and never fails past its own boundary.
package fitsync

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/runcoach/internal/apperror"
	"github.com/2beens/runcoach/internal/fitness"
	"github.com/2beens/runcoach/internal/telemetry/metrics"
	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/internal/users"
	"github.com/2beens/runcoach/internal/vault"
	"github.com/2beens/runcoach/pkg"
)

const (
	OpActivities  = "activities"
	OpDailyHealth = "daily_health"
	OpFitness     = "fitness"
)

type userStore interface {
	Get(ctx context.Context, id uuid.UUID) (*users.User, error)
	UpdateCredential(ctx context.Context, id uuid.UUID, sealed []byte) error
	SetLastSyncAt(ctx context.Context, id uuid.UUID, at time.Time) error
}

type activityStore interface {
	Upsert(ctx context.Context, a *fitness.Activity) error
}

type healthStore interface {
	Upsert(ctx context.Context, reading *fitness.DailyHealthReading) error
	Exists(ctx context.Context, userID uuid.UUID, date time.Time) (bool, error)
}

type profileStore interface {
	Upsert(ctx context.Context, p *fitness.RunningFitnessProfile) error
}

type credentialVault interface {
	OpenPayload(blob []byte) (*vault.CredentialPayload, error)
	SealPayload(payload vault.CredentialPayload) ([]byte, error)
}

type Result struct {
	Success bool   `json:"success"`
	Count   int    `json:"count"`
	Message string `json:"message"`

	Err error `json:"-"`
}

func failure(err error, what string) Result {
	_, msg := apperror.StatusAndMessage(err)
	return Result{
		Success: false,
		Count:   0,
		Message: fmt.Sprintf("%s sync failed: %s", what, msg),
		Err:     err,
	}
}

type AllResult struct {
	Success     bool       `json:"success"`
	Activities  Result     `json:"activities"`
	DailyHealth Result     `json:"dailyHealth"`
	Fitness     Result     `json:"fitness"`
	LastSyncAt  *time.Time `json:"lastSyncAt,omitempty"`
}

type Service struct {
	users      userStore
	activities activityStore
	health     healthStore
	profiles   profileStore
	vault      credentialVault
	connect    Connector
	metrics    *metrics.Manager
	now        func() time.Time
}

func NewService(
	users userStore,
	activities activityStore,
	health healthStore,
	profiles profileStore,
	vault credentialVault,
	connect Connector,
	metricsManager *metrics.Manager,
) *Service {
	return &Service{
		users:      users,
		activities: activities,
		health:     health,
		profiles:   profiles,
		vault:      vault,
		connect:    connect,
		metrics:    metricsManager,
		now:        time.Now,
	}
}

func (s *Service) observe(op string, startedAt time.Time, res *Result) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	if !res.Success {
		outcome = "failure"
	}
	s.metrics.CounterSyncOperations.WithLabelValues(op, outcome).Inc()
	s.metrics.CounterSyncedRecords.WithLabelValues(op).Add(float64(res.Count))
	s.metrics.HistogramSyncDuration.WithLabelValues(op).Observe(time.Since(startedAt).Seconds())
}

// SyncActivities stores running activities between start and end. A nil session logs in first.
func (s *Service) SyncActivities(ctx context.Context, userID uuid.UUID, start, end time.Time, session *Session) (res Result) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitsync.activities")
	defer span.End()
	defer s.observe(OpActivities, time.Now(), &res)

	session, err := s.ensureSession(ctx, userID, session)
	if err != nil {
		return failure(err, OpActivities)
	}

	rawActivities, err := session.Client.GetActivities(ctx, start, end)
	if err != nil {
		log.Errorf("fetch activities for user %s: %s", userID, err)
		span.RecordError(err)
		return failure(err, OpActivities)
	}

	count := 0
	for _, item := range rawActivities {
		raw, ok := item.(map[string]any)
		if !ok {
			continue
		}
		activity, ok := fitness.MapActivity(userID, raw)
		if !ok {
			continue
		}
		if err := s.activities.Upsert(ctx, activity); err != nil {
			log.Errorf("upsert activity %s for user %s: %s", activity.GarminActivityID, userID, err)
			continue
		}
		count++
	}

	span.SetAttributes(attribute.Int("activities.fetched", len(rawActivities)), attribute.Int("activities.synced", count))
	log.Debugf("user %s: synced %d of %d fetched activities", userID, count, len(rawActivities))
	return Result{
		Success: true,
		Count:   count,
		Message: fmt.Sprintf("synced %d running activities", count),
	}
}

// SyncDailyHealth walks every day in [start, end]. Days already stored are skipped, except the
// final day which is always fetched again since it may still be in progress.
func (s *Service) SyncDailyHealth(ctx context.Context, userID uuid.UUID, start, end time.Time, session *Session) (res Result) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitsync.dailyHealth")
	defer span.End()
	defer s.observe(OpDailyHealth, time.Now(), &res)

	session, err := s.ensureSession(ctx, userID, session)
	if err != nil {
		return failure(err, OpDailyHealth)
	}

	firstDay, lastDay := pkg.StartOfDay(start), pkg.StartOfDay(end)
	count, skipped := 0, 0
	for day := firstDay; !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		if !day.Equal(lastDay) {
			exists, err := s.health.Exists(ctx, userID, day)
			if err != nil {
				log.Errorf("check daily health %s for user %s: %s", day.Format(pkg.DateLayout), userID, err)
			} else if exists {
				skipped++
				continue
			}
		}

		reading, ok := fetchDay(ctx, session, day)
		if !ok {
			continue
		}
		if err := s.health.Upsert(ctx, reading); err != nil {
			log.Errorf("upsert daily health %s for user %s: %s", day.Format(pkg.DateLayout), userID, err)
			continue
		}
		count++
	}

	span.SetAttributes(attribute.Int("days.synced", count), attribute.Int("days.skipped", skipped))
	return Result{
		Success: true,
		Count:   count,
		Message: fmt.Sprintf("synced %d days of health data, %d already stored", count, skipped),
	}
}

// fetchDay runs the three per-day fetches concurrently. A failed source only leaves its
// metrics empty.
func fetchDay(ctx context.Context, session *Session, day time.Time) (*fitness.DailyHealthReading, bool) {
	var sleep, hrv, rhr any
	var wg sync.WaitGroup
	fetch := func(name string, dst *any, fn func(context.Context, time.Time) (any, error)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := fn(ctx, day)
			if err != nil {
				log.Debugf("fetch %s for %s: %s", name, day.Format(pkg.DateLayout), err)
				return
			}
			*dst = res
		}()
	}
	fetch("sleep", &sleep, session.Client.GetSleepData)
	fetch("hrv", &hrv, session.Client.GetHrvData)
	fetch("resting heart rate", &rhr, session.Client.GetRestingHeartRate)
	wg.Wait()

	return fitness.MergeDailyHealth(session.UserID, day, sleep, hrv, rhr)
}

// SyncFitness derives the running fitness profile from Garmin race predictions. The volume
// statistics are best effort and left out when the activity fetch fails.
func (s *Service) SyncFitness(ctx context.Context, userID uuid.UUID, session *Session) (res Result) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitsync.fitness")
	defer span.End()
	defer s.observe(OpFitness, time.Now(), &res)

	session, err := s.ensureSession(ctx, userID, session)
	if err != nil {
		return failure(err, OpFitness)
	}

	rawPredictions, err := session.Client.GetRacePredictions(ctx)
	if err != nil {
		log.Errorf("fetch race predictions for user %s: %s", userID, err)
		return failure(err, OpFitness)
	}
	predictions, err := fitness.MapRacePredictions(rawPredictions)
	if err != nil {
		log.Warnf("map race predictions for user %s: %s", userID, err)
		return failure(apperror.Validation("Garmin has no 10K race prediction for this account yet"), OpFitness)
	}

	paces, err := fitness.CalculateTrainingPaces(float64(predictions.Predicted10KSeconds))
	if err != nil {
		return failure(err, OpFitness)
	}

	profile := &fitness.RunningFitnessProfile{
		UserID:          userID,
		RacePredictions: *predictions,
		TrainingPaces:   paces,
	}

	now := s.now()
	recent, err := session.Client.GetActivities(ctx, now.AddDate(0, 0, -fitness.VolumeWindowDays), now)
	if err != nil {
		log.Warnf("running volume for user %s unavailable: %s", userID, err)
	} else {
		profile.Volume = fitness.ComputeRunningVolume(recent)
	}

	if err := s.profiles.Upsert(ctx, profile); err != nil {
		log.Errorf("upsert fitness profile for user %s: %s", userID, err)
		return failure(err, OpFitness)
	}

	return Result{
		Success: true,
		Count:   1,
		Message: fmt.Sprintf("fitness profile updated, 10K prediction %s", formatDuration(predictions.Predicted10KSeconds)),
	}
}

func formatDuration(seconds int) string {
	return (time.Duration(seconds) * time.Second).String()
}

// SyncAll runs the three syncs concurrently on one session. last_sync_at moves only when all
// of them succeed.
func (s *Service) SyncAll(ctx context.Context, userID uuid.UUID, start, end time.Time) (_ *AllResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitsync.all")
	defer tracing.EndSpanWithErrCheck(span, &err)

	session, err := s.CreateSyncContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	res := &AllResult{}
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		res.Activities = s.SyncActivities(ctx, userID, start, end, session)
	}()
	go func() {
		defer wg.Done()
		res.DailyHealth = s.SyncDailyHealth(ctx, userID, start, end, session)
	}()
	go func() {
		defer wg.Done()
		res.Fitness = s.SyncFitness(ctx, userID, session)
	}()
	wg.Wait()

	res.Success = res.Activities.Success && res.DailyHealth.Success && res.Fitness.Success
	if res.Success {
		syncedAt := s.now()
		if err := s.users.SetLastSyncAt(ctx, userID, syncedAt); err != nil {
			log.Errorf("set last sync at for user %s: %s", userID, err)
		} else {
			res.LastSyncAt = &syncedAt
		}
	}

	log.Infof(
		"user %s sync done, success: %t, activities: %d, health days: %d, profile: %d",
		userID, res.Success, res.Activities.Count, res.DailyHealth.Count, res.Fitness.Count,
	)
	return res, nil
}

// UploadWorkout pushes a workout to Garmin and returns the Garmin workout id when the response
// carries one.
func (s *Service) UploadWorkout(ctx context.Context, userID uuid.UUID, workout json.RawMessage) (_ string, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "fitsync.uploadWorkout")
	defer tracing.EndSpanWithErrCheck(span, &err)
	defer func() {
		if s.metrics == nil {
			return
		}
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		s.metrics.CounterWorkoutUploads.WithLabelValues(outcome).Inc()
	}()

	session, err := s.CreateSyncContext(ctx, userID)
	if err != nil {
		return "", err
	}

	res, err := session.Client.UploadWorkout(ctx, workout)
	if err != nil {
		return "", err
	}
	return workoutID(res), nil
}

func workoutID(res any) string {
	obj, ok := fitness.AsObject(res)
	if !ok {
		return ""
	}
	for _, key := range []string{"workoutId", "workout_id", "id"} {
		switch v := obj[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatInt(int64(v), 10)
		case json.Number:
			return v.String()
		}
	}
	return ""
}
