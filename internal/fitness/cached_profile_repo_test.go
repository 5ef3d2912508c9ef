package fitness

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProfileStore struct {
	profiles map[uuid.UUID]*RunningFitnessProfile
	gets     int
	upsertErr error
}

func (s *countingProfileStore) Get(_ context.Context, userID uuid.UUID) (*RunningFitnessProfile, error) {
	s.gets++
	p, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *countingProfileStore) Upsert(_ context.Context, p *RunningFitnessProfile) error {
	if s.upsertErr != nil {
		return s.upsertErr
	}
	cp := *p
	s.profiles[p.UserID] = &cp
	return nil
}

func TestCachedProfileRepo(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	store := &countingProfileStore{profiles: map[uuid.UUID]*RunningFitnessProfile{}}
	repo := NewCachedProfileRepo(store, 1, 60)

	_, err := repo.Get(ctx, userID)
	require.ErrorIs(t, err, ErrProfileNotFound)
	assert.Equal(t, 1, store.gets)

	paces, err := CalculateTrainingPaces(2400)
	require.NoError(t, err)
	profile := &RunningFitnessProfile{
		UserID:          userID,
		RacePredictions: RacePredictions{Predicted10KSeconds: 2400},
		TrainingPaces:   paces,
		Volume:          &VolumeStats{WeeklyVolumeKm: 30, LongestRunKm: 15, AvgRunKm: 7.5, RunsLast4Weeks: 16},
	}
	require.NoError(t, repo.Upsert(ctx, profile))

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, store.gets, "served from cache")
	assert.Equal(t, 2400, got.Predicted10KSeconds)
	assert.Equal(t, 297, got.EasyPaceLow)
	require.NotNil(t, got.Volume)
	assert.Equal(t, 16, got.Volume.RunsLast4Weeks)

	repo.Invalidate(userID)
	_, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets)
}

func TestCachedProfileRepo_UpsertErrorDropsEntry(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()
	store := &countingProfileStore{profiles: map[uuid.UUID]*RunningFitnessProfile{
		userID: {UserID: userID, RacePredictions: RacePredictions{Predicted10KSeconds: 2400}},
	}}
	repo := NewCachedProfileRepo(store, 1, 60)

	_, err := repo.Get(ctx, userID)
	require.NoError(t, err)

	store.upsertErr = errors.New("db down")
	err = repo.Upsert(ctx, &RunningFitnessProfile{UserID: userID, RacePredictions: RacePredictions{Predicted10KSeconds: 2000}})
	require.Error(t, err)

	got, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, store.gets)
	assert.Equal(t, 2400, got.Predicted10KSeconds)
}
