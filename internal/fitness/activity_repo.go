package fitness

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/runcoach/internal/telemetry/tracing"
)

var ErrActivityOwnedByOtherUser = errors.New("activity belongs to another user")

type ActivityRepo struct {
	db *pgxpool.Pool
}

func NewActivityRepo(db *pgxpool.Pool) *ActivityRepo {
	return &ActivityRepo{
		db: db,
	}
}

// Upsert inserts the activity or rewrites all mutable fields of the existing row with the
// same garmin activity id.
func (r *ActivityRepo) Upsert(ctx context.Context, a *Activity) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activity.upsert")
	defer tracing.EndSpanWithErrCheck(span, &err)
	span.SetAttributes(attribute.String("garmin_activity_id", a.GarminActivityID))

	rawData := a.RawData
	if len(rawData) == 0 {
		rawData = []byte("{}")
	}

	err = r.db.QueryRow(ctx, `
		INSERT INTO activity (
			user_id, garmin_activity_id, name, activity_type, start_time,
			distance_meters, duration_seconds, avg_pace_sec_km, avg_heart_rate, max_heart_rate,
			calories, elevation_gain, avg_cadence, training_effect, vo2max, raw_data, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, now())
		ON CONFLICT (garmin_activity_id) DO UPDATE SET
			name = EXCLUDED.name,
			activity_type = EXCLUDED.activity_type,
			start_time = EXCLUDED.start_time,
			distance_meters = EXCLUDED.distance_meters,
			duration_seconds = EXCLUDED.duration_seconds,
			avg_pace_sec_km = EXCLUDED.avg_pace_sec_km,
			avg_heart_rate = EXCLUDED.avg_heart_rate,
			max_heart_rate = EXCLUDED.max_heart_rate,
			calories = EXCLUDED.calories,
			elevation_gain = EXCLUDED.elevation_gain,
			avg_cadence = EXCLUDED.avg_cadence,
			training_effect = EXCLUDED.training_effect,
			vo2max = EXCLUDED.vo2max,
			raw_data = EXCLUDED.raw_data,
			updated_at = now()
		WHERE activity.user_id = EXCLUDED.user_id
		RETURNING id, updated_at
	`,
		a.UserID, a.GarminActivityID, a.Name, a.ActivityType, a.StartTime,
		a.DistanceMeters, a.DurationSeconds, a.AvgPaceSecKm, a.AvgHeartRate, a.MaxHeartRate,
		a.Calories, a.ElevationGain, a.AvgCadence, a.TrainingEffect, a.VO2Max, rawData,
	).Scan(&a.ID, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrActivityOwnedByOtherUser
	}
	if err != nil {
		return fmt.Errorf("upsert activity %s: %w", a.GarminActivityID, err)
	}
	return nil
}

const activityColumns = `
	id, user_id, garmin_activity_id, COALESCE(name, ''), activity_type, start_time,
	distance_meters, duration_seconds, avg_pace_sec_km, avg_heart_rate, max_heart_rate,
	calories, elevation_gain, avg_cadence, training_effect, vo2max, updated_at`

func scanActivity(row pgx.Row) (*Activity, error) {
	a := &Activity{}
	err := row.Scan(
		&a.ID, &a.UserID, &a.GarminActivityID, &a.Name, &a.ActivityType, &a.StartTime,
		&a.DistanceMeters, &a.DurationSeconds, &a.AvgPaceSecKm, &a.AvgHeartRate, &a.MaxHeartRate,
		&a.Calories, &a.ElevationGain, &a.AvgCadence, &a.TrainingEffect, &a.VO2Max, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *ActivityRepo) ListRecent(ctx context.Context, userID uuid.UUID, limit int) (_ []Activity, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activity.listRecent")
	defer tracing.EndSpanWithErrCheck(span, &err)
	span.SetAttributes(attribute.Int("limit", limit))

	rows, err := r.db.Query(ctx, `
		SELECT `+activityColumns+`
		FROM activity
		WHERE user_id = $1
		ORDER BY start_time DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	activities := make([]Activity, 0, limit)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return activities, nil
}

func (r *ActivityRepo) Count(ctx context.Context, userID uuid.UUID) (count int, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.activity.count")
	defer tracing.EndSpanWithErrCheck(span, &err)

	err = r.db.QueryRow(ctx, `SELECT COUNT(*) FROM activity WHERE user_id = $1`, userID).Scan(&count)
	return count, err
}
