package fitness

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/2beens/runcoach/internal/telemetry/tracing"
)

type HealthRepo struct {
	db *pgxpool.Pool
}

func NewHealthRepo(db *pgxpool.Pool) *HealthRepo {
	return &HealthRepo{
		db: db,
	}
}

func (r *HealthRepo) Upsert(ctx context.Context, reading *DailyHealthReading) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.health.upsert")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("date", reading.ReadingDate.Format(time.DateOnly)))

	err = r.db.QueryRow(ctx, `
		INSERT INTO daily_health_reading (
			user_id, reading_date, sleep_score, sleep_duration_sec, deep_sleep_sec, light_sleep_sec,
			rem_sleep_sec, awake_sec, hrv_last_night_avg, hrv_weekly_avg, hrv_status, resting_heart_rate, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())
		ON CONFLICT (user_id, reading_date) DO UPDATE SET
			sleep_score = EXCLUDED.sleep_score,
			sleep_duration_sec = EXCLUDED.sleep_duration_sec,
			deep_sleep_sec = EXCLUDED.deep_sleep_sec,
			light_sleep_sec = EXCLUDED.light_sleep_sec,
			rem_sleep_sec = EXCLUDED.rem_sleep_sec,
			awake_sec = EXCLUDED.awake_sec,
			hrv_last_night_avg = EXCLUDED.hrv_last_night_avg,
			hrv_weekly_avg = EXCLUDED.hrv_weekly_avg,
			hrv_status = EXCLUDED.hrv_status,
			resting_heart_rate = EXCLUDED.resting_heart_rate,
			updated_at = now()
		RETURNING id, updated_at
	`,
		reading.UserID, reading.ReadingDate, reading.SleepScore, reading.SleepDurationSec,
		reading.DeepSleepSec, reading.LightSleepSec, reading.RemSleepSec, reading.AwakeSec,
		reading.HRVLastNightAvg, reading.HRVWeeklyAvg, reading.HRVStatus, reading.RestingHeartRate,
	).Scan(&reading.ID, &reading.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert daily health reading: %w", err)
	}
	return nil
}

func (r *HealthRepo) Exists(ctx context.Context, userID uuid.UUID, date time.Time) (exists bool, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.health.exists")
	defer tracing.EndSpanWithErrCheck(span, &err)

	err = r.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM daily_health_reading WHERE user_id = $1 AND reading_date = $2)
	`, userID, date).Scan(&exists)
	return exists, err
}

func (r *HealthRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) (_ []DailyHealthReading, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.health.listRecent")
	defer tracing.EndSpanWithErrCheck(span, &err)

	rows, err := r.db.Query(ctx, `
		SELECT
			id, user_id, reading_date, sleep_score, sleep_duration_sec, deep_sleep_sec, light_sleep_sec,
			rem_sleep_sec, awake_sec, hrv_last_night_avg, hrv_weekly_avg, hrv_status, resting_heart_rate, updated_at
		FROM daily_health_reading
		WHERE user_id = $1
		ORDER BY reading_date DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	readings := make([]DailyHealthReading, 0, limit)
	for rows.Next() {
		var h DailyHealthReading
		if err := rows.Scan(
			&h.ID, &h.UserID, &h.ReadingDate, &h.SleepScore, &h.SleepDurationSec, &h.DeepSleepSec,
			&h.LightSleepSec, &h.RemSleepSec, &h.AwakeSec, &h.HRVLastNightAvg, &h.HRVWeeklyAvg,
			&h.HRVStatus, &h.RestingHeartRate, &h.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan daily health reading: %w", err)
		}
		readings = append(readings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return readings, nil
}
