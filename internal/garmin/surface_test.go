package garmin

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ctxKey struct{}

type loginArgs struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type reflectedClient struct {
	BaseURL     string
	GetSleep    func(date string) (map[string]any, error)
	lastContext context.Context
}

func (c *reflectedClient) GetHRVData(ctx context.Context, date string) (map[string]any, error) {
	c.lastContext = ctx
	return map[string]any{"date": date}, nil
}

func (c *reflectedClient) SignIn(args loginArgs) error {
	if args.Password != "secret" {
		return errors.New("invalid password")
	}
	return nil
}

func (c *reflectedClient) Explode() (string, error) {
	panic("boom")
}

func TestGoName(t *testing.T) {
	assert.Equal(t, "GetHrvData", goName("getHrvData"))
	assert.Equal(t, "GetHrvData", goName("get_hrv_data"))
	assert.Equal(t, "SignIn", goName("signIn"))
	assert.Equal(t, "BaseURL", goName("baseURL"))
	assert.Equal(t, []string{"getHrvData", "getHRV"}, dedupeAliases([]string{"getHrvData", "get_hrv_data", "getHRV", "get_hrv"}))
}

func TestSurface_Member(t *testing.T) {
	client := &reflectedClient{
		BaseURL:  "https://connectapi.garmin.com",
		GetSleep: func(date string) (map[string]any, error) { return map[string]any{"d": date}, nil },
	}
	s := newSurface(client)

	_, ok := s.method("get_hrv_data")
	assert.True(t, ok, "case-insensitive method match")
	_, ok = s.method("getSleep")
	assert.True(t, ok, "func field")
	_, ok = s.method("baseURL")
	assert.False(t, ok, "plain field is not callable")
	_, ok = s.method("uploadWorkout")
	assert.False(t, ok)

	v, ok := s.value(context.Background(), "base_url")
	require.True(t, ok)
	assert.Equal(t, "https://connectapi.garmin.com", v)

	var nilClient *reflectedClient
	_, ok = newSurface(nilClient).member("getHrvData")
	assert.False(t, ok)
}

func TestSurface_MapClient(t *testing.T) {
	client := map[string]any{
		"get_sleep_data": func(date string) (any, error) { return date, nil },
		"domain":         "garmin.com",
	}
	s := newSurface(client)

	fn, ok := s.method("getSleepData")
	require.True(t, ok)
	res, err := callFunc(context.Background(), fn, []any{"2026-02-01"})
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", res)

	v, ok := s.value(context.Background(), "domain")
	require.True(t, ok)
	assert.Equal(t, "garmin.com", v)
}

func TestCallFunc(t *testing.T) {
	ctx := context.WithValue(context.Background(), ctxKey{}, "marker")
	client := &reflectedClient{}
	s := newSurface(client)

	hrv, ok := s.method("getHrvData")
	require.True(t, ok)
	res, err := callFunc(ctx, hrv, []any{"2026-02-01"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"date": "2026-02-01"}, res)
	assert.Equal(t, "marker", client.lastContext.Value(ctxKey{}))

	_, err = callFunc(ctx, hrv, []any{})
	assert.ErrorIs(t, err, errShapeMismatch)
	_, err = callFunc(ctx, hrv, []any{42})
	assert.ErrorIs(t, err, errShapeMismatch)

	signIn, ok := s.method("signIn")
	require.True(t, ok)
	_, err = callFunc(ctx, signIn, []any{map[string]any{"email": "a@b.c", "password": "secret"}})
	assert.NoError(t, err, "object credentials decoded into struct param")
	_, err = callFunc(ctx, signIn, []any{map[string]any{"email": "a@b.c", "password": "nope"}})
	assert.EqualError(t, err, "invalid password")
	_, err = callFunc(ctx, signIn, []any{"a@b.c", "secret"})
	assert.ErrorIs(t, err, errShapeMismatch)

	explode, ok := s.method("explode")
	require.True(t, ok)
	_, err = callFunc(ctx, explode, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client panicked")
}

func TestCallFunc_NumericConversion(t *testing.T) {
	fn := func(start int64, limit int32) []int64 { return []int64{start, int64(limit)} }
	s := newSurface(map[string]any{"page": fn})
	m, ok := s.method("page")
	require.True(t, ok)
	res, err := callFunc(context.Background(), m, []any{50, 50})
	require.NoError(t, err)
	assert.Equal(t, []int64{50, 50}, res)
}

func TestNormalize(t *testing.T) {
	type sleep struct {
		Score int `json:"score"`
	}
	v, err := normalize(&sleep{Score: 80})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"score": float64(80)}, v)

	v, err = normalize(json.RawMessage(`[{"a":1}]`))
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"a": float64(1)}}, v)

	v, err = normalize("12345")
	require.NoError(t, err)
	assert.Equal(t, float64(12345), v)

	v, err = normalize("not json")
	require.NoError(t, err)
	assert.Equal(t, "not json", v)

	var nilSleep *sleep
	v, err = normalize(nilSleep)
	require.NoError(t, err)
	assert.Nil(t, v)

	_, err = normalize([]byte("{broken"))
	require.Error(t, err)
	assert.Equal(t, "unexpected response from Garmin", Classify(err).Message)
}
