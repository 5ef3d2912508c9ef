package fitsync

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2beens/runcoach/internal/fitness"
	"github.com/2beens/runcoach/internal/garmin"
	"github.com/2beens/runcoach/internal/users"
	"github.com/2beens/runcoach/pkg"
)

var _ garmin.Client = (*fakeClient)(nil)

type fakeClient struct {
	mu sync.Mutex

	activities     []any
	activitiesErr  error
	sleepByDate    map[string]any
	hrvByDate      map[string]any
	rhrByDate      map[string]any
	predictions    any
	predictionsErr error
	volumeErr      error
	uploadRes      any
	uploadErr      error
	capabilities   []string
	sessionData    json.RawMessage

	fetchedDays     []string
	activitiesCalls int
}

func (c *fakeClient) GetActivities(_ context.Context, start, _ time.Time) ([]any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activitiesCalls++
	// the volume fetch is the one reaching 28 days back
	if c.volumeErr != nil && start.Before(time.Now().AddDate(0, 0, -fitness.VolumeWindowDays+1)) {
		return nil, c.volumeErr
	}
	if c.activitiesErr != nil {
		return nil, c.activitiesErr
	}
	return c.activities, nil
}

func (c *fakeClient) GetSleepData(_ context.Context, date time.Time) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	day := date.Format(pkg.DateLayout)
	c.fetchedDays = append(c.fetchedDays, day)
	return c.sleepByDate[day], nil
}

func (c *fakeClient) GetHrvData(_ context.Context, date time.Time) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.hrvByDate[date.Format(pkg.DateLayout)]
	if !ok {
		return nil, errors.New("no hrv")
	}
	return res, nil
}

func (c *fakeClient) GetRestingHeartRate(_ context.Context, date time.Time) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rhrByDate[date.Format(pkg.DateLayout)], nil
}

func (c *fakeClient) GetRacePredictions(_ context.Context) (any, error) {
	return c.predictions, c.predictionsErr
}

func (c *fakeClient) UploadWorkout(_ context.Context, _ json.RawMessage) (any, error) {
	return c.uploadRes, c.uploadErr
}

func (c *fakeClient) Capabilities() []string {
	return c.capabilities
}

func (c *fakeClient) SessionData() json.RawMessage {
	return c.sessionData
}

type fakeUsers struct {
	mu          sync.Mutex
	users       map[uuid.UUID]*users.User
	sealUpdates int
}

func newFakeUsers(us ...*users.User) *fakeUsers {
	f := &fakeUsers{users: map[uuid.UUID]*users.User{}}
	for _, u := range us {
		f.users[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Get(_ context.Context, id uuid.UUID) (*users.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) UpdateCredential(_ context.Context, id uuid.UUID, sealed []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return users.ErrUserNotFound
	}
	u.EncryptedCredential = sealed
	u.GarminConnected = true
	f.sealUpdates++
	return nil
}

func (f *fakeUsers) SetLastSyncAt(_ context.Context, id uuid.UUID, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[id].LastSyncAt = &at
	return nil
}

type fakeActivities struct {
	mu   sync.Mutex
	rows map[string]fitness.Activity
}

func (f *fakeActivities) Upsert(_ context.Context, a *fitness.Activity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rows == nil {
		f.rows = map[string]fitness.Activity{}
	}
	f.rows[a.GarminActivityID] = *a
	return nil
}

type fakeHealth struct {
	mu       sync.Mutex
	existing map[string]bool
	upserted []string
}

func (f *fakeHealth) Upsert(_ context.Context, reading *fitness.DailyHealthReading) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	day := reading.ReadingDate.Format(pkg.DateLayout)
	f.upserted = append(f.upserted, day)
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[day] = true
	return nil
}

func (f *fakeHealth) Exists(_ context.Context, _ uuid.UUID, date time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[date.Format(pkg.DateLayout)], nil
}

type fakeProfiles struct {
	mu      sync.Mutex
	profile *fitness.RunningFitnessProfile
}

func (f *fakeProfiles) Upsert(_ context.Context, p *fitness.RunningFitnessProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
	return nil
}
