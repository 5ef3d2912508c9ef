package fitness

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type fieldSpec struct {
	canonical string
	keys      []string
}

// activityFields maps canonical activity fields to the raw keys seen across client versions,
// in lookup order.
var activityFields = []fieldSpec{
	{"id", []string{"activityId", "activity_id", "activityUUID", "id"}},
	{"name", []string{"activityName", "activity_name", "name"}},
	{"startTime", []string{"startTimeGMT", "start_time_gmt", "startTimeLocal", "start_time_local", "startTime", "start_time", "beginTimestamp"}},
	{"distance", []string{"distance", "distanceInMeters", "distance_meters"}},
	{"duration", []string{"duration", "elapsedDuration", "movingDuration", "duration_seconds"}},
	{"averageSpeed", []string{"averageSpeed", "average_speed", "avgSpeed"}},
	{"averageHR", []string{"averageHR", "average_hr", "averageHeartRate", "avgHr"}},
	{"maxHR", []string{"maxHR", "max_hr", "maxHeartRate"}},
	{"calories", []string{"calories", "activeCalories"}},
	{"elevationGain", []string{"elevationGain", "elevation_gain", "totalElevationGain"}},
	{"cadence", []string{"averageRunningCadenceInStepsPerMinute", "averageRunCadence", "avgCadence", "average_cadence"}},
	{"trainingEffect", []string{"aerobicTrainingEffect", "trainingEffect", "training_effect"}},
	{"vo2max", []string{"vO2MaxValue", "vo2MaxValue", "vo2max"}},
}

var racePredictionFields = []fieldSpec{
	{"5k", []string{"time5K", "time5k", "race_time_5k", "fiveK"}},
	{"10k", []string{"time10K", "time10k", "race_time_10k", "tenK"}},
	{"half", []string{"timeHalfMarathon", "time_half_marathon", "halfMarathon"}},
	{"marathon", []string{"timeMarathon", "time_marathon", "marathon"}},
}

var runningTypeKeys = map[string]bool{
	"running":           true,
	"trail_running":     true,
	"treadmill_running": true,
	"track_running":     true,
	"street_running":    true,
	"indoor_running":    true,
	"virtual_run":       true,
	"ultra_run":         true,
	"obstacle_run":      true,
}

var rawTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05.0",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02",
}

func lookup(raw map[string]any, fields []fieldSpec, canonical string) (any, bool) {
	for _, f := range fields {
		if f.canonical != canonical {
			continue
		}
		for _, k := range f.keys {
			if v, ok := raw[k]; ok && v != nil {
				return v, true
			}
		}
	}
	return nil, false
}

// ToFloat coerces native numbers and numeric strings.
func ToFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToInt coerces like ToFloat and truncates toward zero.
func ToInt(v any) (int, bool) {
	f, ok := ToFloat(v)
	if !ok {
		return 0, false
	}
	return int(math.Trunc(f)), true
}

func floatPtr(v any, ok bool) *float64 {
	if !ok {
		return nil
	}
	f, ok := ToFloat(v)
	if !ok {
		return nil
	}
	return &f
}

func intPtr(v any, ok bool) *int {
	if !ok {
		return nil
	}
	i, ok := ToInt(v)
	if !ok {
		return nil
	}
	return &i
}

func toString(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		s = strings.TrimSpace(s)
		return s, s != ""
	case json.Number:
		return s.String(), true
	default:
		f, ok := ToFloat(v)
		if !ok {
			return "", false
		}
		if f == math.Trunc(f) {
			return strconv.FormatInt(int64(f), 10), true
		}
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
}

// AsObject returns v as a JSON object, unwrapping a single-element array.
func AsObject(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case map[string]any:
		return t, true
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		return AsObject(t[0])
	default:
		return nil, false
	}
}

func nested(v any, path ...string) (any, bool) {
	cur := v
	for _, p := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok || cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// ActivityType reads the vendor type key from a nested type object or a bare string.
func ActivityType(raw map[string]any) string {
	for _, key := range []string{"activityType", "activityTypeDTO", "activity_type"} {
		switch t := raw[key].(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return strings.ToLower(s)
			}
		case map[string]any:
			for _, k := range []string{"typeKey", "type_key", "key"} {
				if s, ok := t[k].(string); ok && s != "" {
					return strings.ToLower(s)
				}
			}
		}
	}
	return ""
}

func IsRunningType(typeKey string) bool {
	typeKey = strings.ToLower(typeKey)
	return runningTypeKeys[typeKey] || strings.Contains(typeKey, "running")
}

// ActivityStartTime extracts the start time of a raw activity, in UTC.
func ActivityStartTime(raw map[string]any) (time.Time, bool) {
	v, ok := lookup(raw, activityFields, "startTime")
	if !ok {
		return time.Time{}, false
	}
	return parseRawTime(v)
}

func parseRawTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range rawTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return time.Time{}, false
		}
	}
	// epoch millis
	ms, ok := ToInt(v)
	if !ok || ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)).UTC(), true
}

// MapActivity maps one raw activity. It returns false for non-running records and records
// without an external id or start time.
func MapActivity(userID uuid.UUID, raw map[string]any) (*Activity, bool) {
	typeKey := ActivityType(raw)
	if !IsRunningType(typeKey) {
		return nil, false
	}

	idRaw, ok := lookup(raw, activityFields, "id")
	if !ok {
		return nil, false
	}
	externalID, ok := toString(idRaw)
	if !ok {
		return nil, false
	}

	startTime, ok := ActivityStartTime(raw)
	if !ok {
		return nil, false
	}

	a := &Activity{
		UserID:           userID,
		GarminActivityID: externalID,
		ActivityType:     typeKey,
		StartTime:        startTime,
		DistanceMeters:   floatPtr(lookup(raw, activityFields, "distance")),
		DurationSeconds:  intPtr(lookup(raw, activityFields, "duration")),
		AvgHeartRate:     intPtr(lookup(raw, activityFields, "averageHR")),
		MaxHeartRate:     intPtr(lookup(raw, activityFields, "maxHR")),
		Calories:         intPtr(lookup(raw, activityFields, "calories")),
		ElevationGain:    floatPtr(lookup(raw, activityFields, "elevationGain")),
		AvgCadence:       intPtr(lookup(raw, activityFields, "cadence")),
		TrainingEffect:   floatPtr(lookup(raw, activityFields, "trainingEffect")),
		VO2Max:           floatPtr(lookup(raw, activityFields, "vo2max")),
	}
	if nameRaw, ok := lookup(raw, activityFields, "name"); ok {
		a.Name, _ = toString(nameRaw)
	}
	a.AvgPaceSecKm = activityPace(raw, a)

	if data, err := json.Marshal(raw); err == nil {
		a.RawData = data
	}
	return a, true
}

// activityPace prefers the raw average speed (m/s) and falls back to distance/duration.
func activityPace(raw map[string]any, a *Activity) *int {
	if speed := floatPtr(lookup(raw, activityFields, "averageSpeed")); speed != nil && *speed > 0 {
		pace := int(math.Round(1000 / *speed))
		return &pace
	}
	if a.DistanceMeters != nil && *a.DistanceMeters > 0 && a.DurationSeconds != nil && *a.DurationSeconds > 0 {
		pace := int(math.Round(float64(*a.DurationSeconds) / (*a.DistanceMeters / 1000)))
		return &pace
	}
	return nil
}

// MergeDailyHealth merges the sleep, HRV and resting heart rate sub-records of one day.
// It returns false when none of them carried a metric.
func MergeDailyHealth(userID uuid.UUID, date time.Time, sleep, hrv, rhr any) (*DailyHealthReading, bool) {
	r := &DailyHealthReading{
		UserID:      userID,
		ReadingDate: date,
	}

	if dto, ok := nested(sleep, "dailySleepDTO"); ok {
		r.SleepDurationSec = intPtr(nested(dto, "sleepTimeSeconds"))
		r.DeepSleepSec = intPtr(nested(dto, "deepSleepSeconds"))
		r.LightSleepSec = intPtr(nested(dto, "lightSleepSeconds"))
		r.RemSleepSec = intPtr(nested(dto, "remSleepSeconds"))
		r.AwakeSec = intPtr(nested(dto, "awakeSleepSeconds"))
		r.SleepScore = sleepScore(dto)
	}

	if summary, ok := nested(hrv, "hrvSummary"); ok {
		r.HRVLastNightAvg = floatPtr(nested(summary, "lastNightAvg"))
		r.HRVWeeklyAvg = floatPtr(nested(summary, "weeklyAvg"))
		if status, ok := nested(summary, "status"); ok {
			if s, ok := toString(status); ok {
				r.HRVStatus = &s
			}
		}
	}

	r.RestingHeartRate = restingHeartRate(rhr)
	if r.RestingHeartRate == nil {
		r.RestingHeartRate = positiveIntPtr(nested(sleep, "restingHeartRate"))
	}

	if !r.HasMetrics() {
		return nil, false
	}
	return r, true
}

// sleepScore reads the current shape (sleepScores.overall.value) and the legacy one
// (sleepScores.overallScore).
func sleepScore(dto any) *int {
	if p := intPtr(nested(dto, "sleepScores", "overall", "value")); p != nil {
		return p
	}
	return intPtr(nested(dto, "sleepScores", "overallScore"))
}

func restingHeartRate(v any) *int {
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range t {
			if p := restingHeartRate(item); p != nil {
				return p
			}
		}
		return nil
	case map[string]any:
		if values, ok := nested(t, "allMetrics", "metricsMap", "WELLNESS_RESTING_HEART_RATE"); ok {
			return restingHeartRate(values)
		}
		for _, k := range []string{"restingHeartRate", "resting_heart_rate", "value"} {
			if p := positiveIntPtr(t[k], t[k] != nil); p != nil {
				return p
			}
		}
		return nil
	default:
		return positiveIntPtr(t, true)
	}
}

func positiveIntPtr(v any, ok bool) *int {
	p := intPtr(v, ok)
	if p == nil || *p <= 0 {
		return nil
	}
	return p
}

// MapRacePredictions accepts a bare object or an array whose first element is the prediction.
func MapRacePredictions(raw any) (*RacePredictions, error) {
	obj, ok := AsObject(raw)
	if !ok {
		return nil, fmt.Errorf("unexpected race predictions shape: %w", ErrMissing10K)
	}

	tenK := positiveIntPtr(lookup(obj, racePredictionFields, "10k"))
	if tenK == nil {
		return nil, ErrMissing10K
	}

	return &RacePredictions{
		Predicted5KSeconds:       positiveIntPtr(lookup(obj, racePredictionFields, "5k")),
		Predicted10KSeconds:      *tenK,
		PredictedHalfSeconds:     positiveIntPtr(lookup(obj, racePredictionFields, "half")),
		PredictedMarathonSeconds: positiveIntPtr(lookup(obj, racePredictionFields, "marathon")),
	}, nil
}
