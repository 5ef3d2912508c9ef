package users

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/2beens/runcoach/internal/telemetry/tracing"
	"github.com/2beens/runcoach/pkg"
)

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Create(ctx context.Context, email string) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.create")
	defer tracing.EndSpanWithErrCheck(span, &err)

	u := &User{Email: email}
	err = r.db.QueryRow(ctx, `
		INSERT INTO app_user (email) VALUES ($1)
		RETURNING id, created_at
	`, email).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (_ *User, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.get")
	defer tracing.EndSpanWithErrCheck(span, &err)
	span.SetAttributes(attribute.String("user.id", id.String()))

	u := &User{}
	err = r.db.QueryRow(ctx, `
		SELECT id, email, garmin_connected, encrypted_credential, last_sync_at, created_at
		FROM app_user WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.GarminConnected, &u.EncryptedCredential, &u.LastSyncAt, &u.CreatedAt)
	if err != nil {
		if pkg.IsNoRowsError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// UpdateCredential stores a sealed credential payload and marks Garmin as connected.
func (r *Repo) UpdateCredential(ctx context.Context, id uuid.UUID, sealed []byte) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.updateCredential")
	defer tracing.EndSpanWithErrCheck(span, &err)

	tag, err := r.db.Exec(ctx, `
		UPDATE app_user SET encrypted_credential = $2, garmin_connected = true WHERE id = $1
	`, id, sealed)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) ClearCredential(ctx context.Context, id uuid.UUID) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.clearCredential")
	defer tracing.EndSpanWithErrCheck(span, &err)

	tag, err := r.db.Exec(ctx, `
		UPDATE app_user SET encrypted_credential = NULL, garmin_connected = false WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *Repo) SetLastSyncAt(ctx context.Context, id uuid.UUID, at time.Time) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.users.setLastSyncAt")
	defer tracing.EndSpanWithErrCheck(span, &err)

	if _, err := r.db.Exec(ctx, `UPDATE app_user SET last_sync_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("set last sync at: %w", err)
	}
	return nil
}
