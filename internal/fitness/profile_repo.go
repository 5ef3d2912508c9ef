package fitness

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/2beens/runcoach/internal/telemetry/tracing"
)

type ProfileRepo struct {
	db *pgxpool.Pool
}

func NewProfileRepo(db *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{
		db: db,
	}
}

func (r *ProfileRepo) Upsert(ctx context.Context, p *RunningFitnessProfile) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profile.upsert")
	defer tracing.EndSpanWithErrCheck(span, &err)

	var weekly, longest, avg *float64
	var runs *int
	if p.Volume != nil {
		weekly, longest, avg, runs = &p.Volume.WeeklyVolumeKm, &p.Volume.LongestRunKm, &p.Volume.AvgRunKm, &p.Volume.RunsLast4Weeks
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO running_fitness_profile (
			user_id, predicted_5k_seconds, predicted_10k_seconds, predicted_half_seconds, predicted_marathon_sec,
			easy_pace_low, easy_pace_high, tempo_pace, threshold_pace, interval_pace, repetition_pace,
			weekly_volume_km, longest_run_km, avg_run_km, runs_last_4_weeks, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, now())
		ON CONFLICT (user_id) DO UPDATE SET
			predicted_5k_seconds = EXCLUDED.predicted_5k_seconds,
			predicted_10k_seconds = EXCLUDED.predicted_10k_seconds,
			predicted_half_seconds = EXCLUDED.predicted_half_seconds,
			predicted_marathon_sec = EXCLUDED.predicted_marathon_sec,
			easy_pace_low = EXCLUDED.easy_pace_low,
			easy_pace_high = EXCLUDED.easy_pace_high,
			tempo_pace = EXCLUDED.tempo_pace,
			threshold_pace = EXCLUDED.threshold_pace,
			interval_pace = EXCLUDED.interval_pace,
			repetition_pace = EXCLUDED.repetition_pace,
			weekly_volume_km = EXCLUDED.weekly_volume_km,
			longest_run_km = EXCLUDED.longest_run_km,
			avg_run_km = EXCLUDED.avg_run_km,
			runs_last_4_weeks = EXCLUDED.runs_last_4_weeks,
			updated_at = now()
		RETURNING updated_at
	`,
		p.UserID, p.Predicted5KSeconds, p.Predicted10KSeconds, p.PredictedHalfSeconds, p.PredictedMarathonSeconds,
		p.EasyPaceLow, p.EasyPaceHigh, p.TempoPace, p.ThresholdPace, p.IntervalPace, p.RepetitionPace,
		weekly, longest, avg, runs,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert running fitness profile: %w", err)
	}
	return nil
}

func (r *ProfileRepo) Get(ctx context.Context, userID uuid.UUID) (_ *RunningFitnessProfile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.profile.get")
	defer tracing.EndSpanWithErrCheck(span, &err)

	p := &RunningFitnessProfile{}
	var weekly, longest, avg *float64
	var runs *int
	err = r.db.QueryRow(ctx, `
		SELECT
			user_id, predicted_5k_seconds, predicted_10k_seconds, predicted_half_seconds, predicted_marathon_sec,
			easy_pace_low, easy_pace_high, tempo_pace, threshold_pace, interval_pace, repetition_pace,
			weekly_volume_km, longest_run_km, avg_run_km, runs_last_4_weeks, updated_at
		FROM running_fitness_profile
		WHERE user_id = $1
	`, userID).Scan(
		&p.UserID, &p.Predicted5KSeconds, &p.Predicted10KSeconds, &p.PredictedHalfSeconds, &p.PredictedMarathonSeconds,
		&p.EasyPaceLow, &p.EasyPaceHigh, &p.TempoPace, &p.ThresholdPace, &p.IntervalPace, &p.RepetitionPace,
		&weekly, &longest, &avg, &runs, &p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	if weekly != nil && longest != nil && avg != nil && runs != nil {
		p.Volume = &VolumeStats{
			WeeklyVolumeKm: *weekly,
			LongestRunKm:   *longest,
			AvgRunKm:       *avg,
			RunsLast4Weeks: *runs,
		}
	}
	return p, nil
}
