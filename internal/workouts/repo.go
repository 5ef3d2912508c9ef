package workouts

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/pkg"
)

const workoutColumns = `id, user_id, workout_type, user_prompt, workout_json, explanation, status,
	garmin_workout_id, ai_provider, created_at, updated_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func scanWorkout(row pgx.Row) (*Workout, error) {
	w := &Workout{}
	var userPrompt, explanation *string
	err := row.Scan(
		&w.ID, &w.UserID, &w.WorkoutType, &userPrompt, &w.WorkoutJSON, &explanation, &w.Status,
		&w.GarminWorkoutID, &w.AIProvider, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if userPrompt != nil {
		w.UserPrompt = *userPrompt
	}
	if explanation != nil {
		w.Explanation = *explanation
	}
	return w, nil
}

func (r *Repo) Create(ctx context.Context, w *Workout) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.create")
	defer tracing.EndSpanWithErrCheck(span, &err)

	err = r.db.QueryRow(ctx, `
		INSERT INTO workout (user_id, workout_type, user_prompt, workout_json, explanation, status, ai_provider)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`,
		w.UserID, w.WorkoutType, w.UserPrompt, w.WorkoutJSON, w.Explanation, w.Status, w.AIProvider,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert workout: %w", err)
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, userID, id uuid.UUID) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer tracing.EndSpanWithErrCheck(span, &err)
	span.SetAttributes(attribute.String("workout.id", id.String()))

	w, err := scanWorkout(r.db.QueryRow(ctx, `
		SELECT `+workoutColumns+` FROM workout WHERE id = $1 AND user_id = $2
	`, id, userID))
	if err != nil {
		if pkg.IsNoRowsError(err) {
			return nil, ErrWorkoutNotFound
		}
		return nil, fmt.Errorf("get workout: %w", err)
	}
	return w, nil
}

func (r *Repo) List(ctx context.Context, userID uuid.UUID, limit int) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list")
	defer tracing.EndSpanWithErrCheck(span, &err)

	rows, err := r.db.Query(ctx, `
		SELECT `+workoutColumns+`
		FROM workout
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workouts := make([]Workout, 0, limit)
	for rows.Next() {
		w, err := scanWorkout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan workout: %w", err)
		}
		workouts = append(workouts, *w)
	}
	return workouts, rows.Err()
}

// UpdateStatus moves a workout from one status to another. It fails with ErrStatusConflict
// when the stored status is no longer from.
func (r *Repo) UpdateStatus(ctx context.Context, userID, id uuid.UUID, from, to Status, garminWorkoutID *string) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.updateStatus")
	defer tracing.EndSpanWithErrCheck(span, &err)
	span.SetAttributes(attribute.String("status.from", string(from)), attribute.String("status.to", string(to)))

	w, err := scanWorkout(r.db.QueryRow(ctx, `
		UPDATE workout
		SET status = $4, garmin_workout_id = COALESCE($5, garmin_workout_id), updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status = $3
		RETURNING `+workoutColumns,
		id, userID, from, to, garminWorkoutID,
	))
	if err != nil {
		if pkg.IsNoRowsError(err) {
			return nil, ErrStatusConflict
		}
		return nil, fmt.Errorf("update workout status: %w", err)
	}
	return w, nil
}
