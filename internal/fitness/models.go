package fitness

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrProfileNotFound = errors.New("running fitness profile not found")
	ErrMissing10K      = errors.New("race predictions have no valid 10K time")
)

type Activity struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"userId"`
	GarminActivityID string          `json:"garminActivityId"`
	Name             string          `json:"name,omitempty"`
	ActivityType     string          `json:"activityType"`
	StartTime        time.Time       `json:"startTime"`
	DistanceMeters   *float64        `json:"distanceMeters,omitempty"`
	DurationSeconds  *int            `json:"durationSeconds,omitempty"`
	AvgPaceSecKm     *int            `json:"avgPaceSecPerKm,omitempty"`
	AvgHeartRate     *int            `json:"avgHeartRate,omitempty"`
	MaxHeartRate     *int            `json:"maxHeartRate,omitempty"`
	Calories         *int            `json:"calories,omitempty"`
	ElevationGain    *float64        `json:"elevationGain,omitempty"`
	AvgCadence       *int            `json:"avgCadence,omitempty"`
	TrainingEffect   *float64        `json:"trainingEffect,omitempty"`
	VO2Max           *float64        `json:"vo2max,omitempty"`
	RawData          json.RawMessage `json:"-"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

type DailyHealthReading struct {
	ID               uuid.UUID `json:"id"`
	UserID           uuid.UUID `json:"userId"`
	ReadingDate      time.Time `json:"readingDate"`
	SleepScore       *int      `json:"sleepScore,omitempty"`
	SleepDurationSec *int      `json:"sleepDurationSec,omitempty"`
	DeepSleepSec     *int      `json:"deepSleepSec,omitempty"`
	LightSleepSec    *int      `json:"lightSleepSec,omitempty"`
	RemSleepSec      *int      `json:"remSleepSec,omitempty"`
	AwakeSec         *int      `json:"awakeSec,omitempty"`
	HRVLastNightAvg  *float64  `json:"hrvLastNightAvg,omitempty"`
	HRVWeeklyAvg     *float64  `json:"hrvWeeklyAvg,omitempty"`
	HRVStatus        *string   `json:"hrvStatus,omitempty"`
	RestingHeartRate *int      `json:"restingHeartRate,omitempty"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// HasMetrics reports whether at least one health metric is set.
func (r *DailyHealthReading) HasMetrics() bool {
	return r.SleepScore != nil || r.SleepDurationSec != nil || r.DeepSleepSec != nil ||
		r.LightSleepSec != nil || r.RemSleepSec != nil || r.AwakeSec != nil ||
		r.HRVLastNightAvg != nil || r.HRVWeeklyAvg != nil || r.HRVStatus != nil ||
		r.RestingHeartRate != nil
}

// TrainingPaces are in whole seconds per km.
type TrainingPaces struct {
	EasyPaceLow    int `json:"easyPaceLow"`
	EasyPaceHigh   int `json:"easyPaceHigh"`
	TempoPace      int `json:"tempoPace"`
	ThresholdPace  int `json:"thresholdPace"`
	IntervalPace   int `json:"intervalPace"`
	RepetitionPace int `json:"repetitionPace"`
}

type RacePredictions struct {
	Predicted5KSeconds       *int `json:"predicted5kSeconds,omitempty"`
	Predicted10KSeconds      int  `json:"predicted10kSeconds"`
	PredictedHalfSeconds     *int `json:"predictedHalfMarathonSeconds,omitempty"`
	PredictedMarathonSeconds *int `json:"predictedMarathonSeconds,omitempty"`
}

type VolumeStats struct {
	WeeklyVolumeKm float64 `json:"weeklyVolumeKm"`
	LongestRunKm   float64 `json:"longestRunKm"`
	AvgRunKm       float64 `json:"avgRunKm"`
	RunsLast4Weeks int     `json:"runsLast4Weeks"`
}

type RunningFitnessProfile struct {
	UserID uuid.UUID `json:"userId"`
	RacePredictions
	TrainingPaces
	// nil when the volume fetch failed
	Volume    *VolumeStats `json:"volume,omitempty"`
	UpdatedAt time.Time    `json:"updatedAt"`
}
