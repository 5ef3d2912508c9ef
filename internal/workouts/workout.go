// Package workouts generates structured running workouts with an AI provider and tracks them
// until they are uploaded to Garmin or rejected.
package workouts

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWorkoutNotFound = errors.New("workout not found")
	ErrStatusConflict  = errors.New("workout status changed concurrently")
)

type Status string

const (
	StatusGenerated Status = "generated"
	StatusUploaded  Status = "uploaded"
	StatusRejected  Status = "rejected"
)

// CanTransitionTo reports whether next is reachable from s. Only generated workouts move, and
// uploaded and rejected are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	return s == StatusGenerated && (next == StatusUploaded || next == StatusRejected)
}

type Type string

const (
	TypeEasyRun     Type = "easy_run"
	TypeTempoRun    Type = "tempo_run"
	TypeIntervals   Type = "intervals"
	TypeLongRun     Type = "long_run"
	TypeRecoveryRun Type = "recovery_run"
)

var AllTypes = []Type{TypeEasyRun, TypeTempoRun, TypeIntervals, TypeLongRun, TypeRecoveryRun}

func (t Type) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

type Workout struct {
	ID              uuid.UUID       `json:"id"`
	UserID          uuid.UUID       `json:"userId"`
	WorkoutType     Type            `json:"workoutType"`
	UserPrompt      string          `json:"userPrompt,omitempty"`
	WorkoutJSON     json.RawMessage `json:"workout"`
	Explanation     string          `json:"explanation,omitempty"`
	Status          Status          `json:"status"`
	GarminWorkoutID *string         `json:"garminWorkoutId,omitempty"`
	AIProvider      string          `json:"aiProvider"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}
