package fitness

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestToFloatAndToInt(t *testing.T) {
	for _, v := range []any{12.7, float32(12.7), 12, int64(12), json.Number("12.7"), " 12.7 ", "12"} {
		f, ok := ToFloat(v)
		assert.True(t, ok, "%v", v)
		assert.InDelta(t, 12.5, f, 0.5)
	}
	for _, v := range []any{nil, "abc", "", true, map[string]any{}} {
		_, ok := ToFloat(v)
		assert.False(t, ok, "%v", v)
	}

	i, ok := ToInt("297.9")
	assert.True(t, ok)
	assert.Equal(t, 297, i)
	i, ok = ToInt(-3.7)
	assert.True(t, ok)
	assert.Equal(t, -3, i)
}

func TestActivityType(t *testing.T) {
	assert.Equal(t, "running", ActivityType(map[string]any{"activityType": map[string]any{"typeKey": "running"}}))
	assert.Equal(t, "trail_running", ActivityType(map[string]any{"activityType": "Trail_Running"}))
	assert.Equal(t, "treadmill_running", ActivityType(map[string]any{"activityTypeDTO": map[string]any{"typeKey": "treadmill_running"}}))
	assert.Equal(t, "", ActivityType(map[string]any{}))

	assert.True(t, IsRunningType("running"))
	assert.True(t, IsRunningType("virtual_run"))
	assert.True(t, IsRunningType("some_new_running_type"))
	assert.False(t, IsRunningType("cycling"))
	assert.False(t, IsRunningType(""))
}

func TestMapActivity(t *testing.T) {
	userID := uuid.New()
	raw := decode(t, `{
		"activityId": 123456789,
		"activityName": "Morning Run",
		"startTimeGMT": "2026-02-01 07:30:00",
		"activityType": {"typeKey": "running"},
		"distance": "10000.5",
		"duration": 2999.9,
		"averageSpeed": 3.3333,
		"averageHR": 151.6,
		"maxHR": 178,
		"calories": 650,
		"elevationGain": 42.5,
		"averageRunningCadenceInStepsPerMinute": 172.4,
		"aerobicTrainingEffect": 3.2,
		"vO2MaxValue": 52
	}`).(map[string]any)

	a, ok := MapActivity(userID, raw)
	require.True(t, ok)
	assert.Equal(t, userID, a.UserID)
	assert.Equal(t, "123456789", a.GarminActivityID)
	assert.Equal(t, "Morning Run", a.Name)
	assert.Equal(t, "running", a.ActivityType)
	assert.Equal(t, time.Date(2026, 2, 1, 7, 30, 0, 0, time.UTC), a.StartTime)
	require.NotNil(t, a.DistanceMeters)
	assert.InDelta(t, 10000.5, *a.DistanceMeters, 0.001)
	assert.Equal(t, 2999, *a.DurationSeconds)
	assert.Equal(t, 151, *a.AvgHeartRate)
	assert.Equal(t, 178, *a.MaxHeartRate)
	assert.Equal(t, 172, *a.AvgCadence)
	// speed wins over distance/duration
	assert.Equal(t, 300, *a.AvgPaceSecKm)
	assert.NotEmpty(t, a.RawData)
}

func TestMapActivity_PaceFromDistanceAndDuration(t *testing.T) {
	raw := map[string]any{
		"activityId":     "abc",
		"startTimeLocal": "2026-02-01T07:30:00",
		"activityType":   "running",
		"distance":       5000.0,
		"duration":       1500.0,
	}
	a, ok := MapActivity(uuid.New(), raw)
	require.True(t, ok)
	assert.Equal(t, 300, *a.AvgPaceSecKm)
}

func TestMapActivity_Dropped(t *testing.T) {
	for name, raw := range map[string]map[string]any{
		"cycling":    {"activityId": 1, "startTimeGMT": "2026-02-01 07:30:00", "activityType": map[string]any{"typeKey": "cycling"}},
		"no id":      {"startTimeGMT": "2026-02-01 07:30:00", "activityType": "running"},
		"empty id":   {"activityId": "", "startTimeGMT": "2026-02-01 07:30:00", "activityType": "running"},
		"no start":   {"activityId": 1, "activityType": "running"},
		"no type":    {"activityId": 1, "startTimeGMT": "2026-02-01 07:30:00"},
	} {
		t.Run(name, func(t *testing.T) {
			_, ok := MapActivity(uuid.New(), raw)
			assert.False(t, ok)
		})
	}
}

func TestActivityStartTime_EpochMillis(t *testing.T) {
	ts, ok := ActivityStartTime(map[string]any{"beginTimestamp": float64(1769931000000)})
	require.True(t, ok)
	assert.Equal(t, time.UnixMilli(1769931000000).UTC(), ts)
}

func TestMergeDailyHealth_CurrentSleepShape(t *testing.T) {
	userID := uuid.New()
	date := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	sleep := decode(t, `{"dailySleepDTO": {
		"sleepTimeSeconds": 27000, "deepSleepSeconds": 5400, "lightSleepSeconds": 14400,
		"remSleepSeconds": 6000, "awakeSleepSeconds": 1200,
		"sleepScores": {"overall": {"value": 84}}
	}}`)
	hrv := decode(t, `{"hrvSummary": {"lastNightAvg": 61, "weeklyAvg": 58.5, "status": "BALANCED"}}`)
	rhr := decode(t, `{"allMetrics": {"metricsMap": {"WELLNESS_RESTING_HEART_RATE": [{"value": 48.0, "calendarDate": "2026-02-02"}]}}}`)

	r, ok := MergeDailyHealth(userID, date, sleep, hrv, rhr)
	require.True(t, ok)
	assert.Equal(t, date, r.ReadingDate)
	assert.Equal(t, 84, *r.SleepScore)
	assert.Equal(t, 27000, *r.SleepDurationSec)
	assert.Equal(t, 1200, *r.AwakeSec)
	assert.Equal(t, 61.0, *r.HRVLastNightAvg)
	assert.Equal(t, 58.5, *r.HRVWeeklyAvg)
	assert.Equal(t, "BALANCED", *r.HRVStatus)
	assert.Equal(t, 48, *r.RestingHeartRate)
}

func TestMergeDailyHealth_LegacySleepScore(t *testing.T) {
	sleep := decode(t, `{"dailySleepDTO": {"sleepScores": {"overallScore": 77}}}`)
	r, ok := MergeDailyHealth(uuid.New(), time.Now(), sleep, nil, nil)
	require.True(t, ok)
	assert.Equal(t, 77, *r.SleepScore)
	assert.Nil(t, r.HRVLastNightAvg)
	assert.Nil(t, r.RestingHeartRate)
}

func TestMergeDailyHealth_RestingHeartRateShapes(t *testing.T) {
	for name, rhr := range map[string]any{
		"number":     float64(52),
		"object":     map[string]any{"restingHeartRate": "52"},
		"list":       []any{map[string]any{"value": 52.0}},
		"from sleep": nil,
	} {
		t.Run(name, func(t *testing.T) {
			var sleep any
			if rhr == nil {
				sleep = map[string]any{"restingHeartRate": 52.0}
			}
			r, ok := MergeDailyHealth(uuid.New(), time.Now(), sleep, nil, rhr)
			require.True(t, ok)
			assert.Equal(t, 52, *r.RestingHeartRate)
		})
	}
}

func TestMergeDailyHealth_NothingToMerge(t *testing.T) {
	_, ok := MergeDailyHealth(uuid.New(), time.Now(), nil, nil, nil)
	assert.False(t, ok)

	_, ok = MergeDailyHealth(uuid.New(), time.Now(),
		decode(t, `{"dailySleepDTO": {"id": 1}}`),
		decode(t, `{}`),
		decode(t, `{"allMetrics": {"metricsMap": {"WELLNESS_RESTING_HEART_RATE": []}}}`),
	)
	assert.False(t, ok)
}

func TestMapRacePredictions(t *testing.T) {
	p, err := MapRacePredictions(decode(t, `{"time5K": 1150, "time10K": 2400, "timeHalfMarathon": "5400", "timeMarathon": 11400}`))
	require.NoError(t, err)
	assert.Equal(t, 2400, p.Predicted10KSeconds)
	assert.Equal(t, 1150, *p.Predicted5KSeconds)
	assert.Equal(t, 5400, *p.PredictedHalfSeconds)
	assert.Equal(t, 11400, *p.PredictedMarathonSeconds)

	p, err = MapRacePredictions(decode(t, `[{"time10K": 2500.7}, {"time10K": 1}]`))
	require.NoError(t, err)
	assert.Equal(t, 2500, p.Predicted10KSeconds)
	assert.Nil(t, p.Predicted5KSeconds)
}

func TestMapRacePredictions_Missing10K(t *testing.T) {
	for _, raw := range []string{`{}`, `[]`, `{"time10K": 0}`, `{"time10K": "abc"}`, `"nope"`} {
		_, err := MapRacePredictions(decode(t, raw))
		assert.ErrorIs(t, err, ErrMissing10K, raw)
	}
}
