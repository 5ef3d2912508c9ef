package workouts

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnparseable   = errors.New("AI response is not a JSON object")
	ErrMissingFields = errors.New("AI workout is missing required fields")
)

const codeFence = "```"

// Generated is a validated AI response.
type Generated struct {
	Workout     json.RawMessage
	Explanation string
}

// StripCodeFence removes a markdown code fence around text, including its language tag.
func StripCodeFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, codeFence) {
		return trimmed
	}

	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, codeFence)
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, codeFence)
	return strings.TrimSpace(trimmed)
}

// ParseResponse accepts a bare workout object or {"workout": ..., "explanation": ...} and
// validates the workout structure.
func ParseResponse(text string) (*Generated, error) {
	var root map[string]any
	if err := json.Unmarshal([]byte(StripCodeFence(text)), &root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	if root == nil {
		return nil, ErrUnparseable
	}

	workout := root
	explanation := ""
	if wrapped, ok := root["workout"].(map[string]any); ok {
		workout = wrapped
		explanation, _ = root["explanation"].(string)
	}

	if err := validateWorkout(workout); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(workout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	return &Generated{
		Workout:     raw,
		Explanation: strings.TrimSpace(explanation),
	}, nil
}

func validateWorkout(w map[string]any) error {
	if name, _ := w["workoutName"].(string); strings.TrimSpace(name) == "" {
		return fmt.Errorf("%w: workoutName", ErrMissingFields)
	}
	if _, ok := w["sportType"].(map[string]any); !ok {
		return fmt.Errorf("%w: sportType", ErrMissingFields)
	}
	segments, ok := w["workoutSegments"].([]any)
	if !ok || len(segments) == 0 {
		return fmt.Errorf("%w: workoutSegments", ErrMissingFields)
	}
	first, ok := segments[0].(map[string]any)
	if !ok {
		return fmt.Errorf("%w: workoutSegments[0]", ErrMissingFields)
	}
	if steps, ok := first["workoutSteps"].([]any); !ok || len(steps) == 0 {
		return fmt.Errorf("%w: workoutSegments[0].workoutSteps", ErrMissingFields)
	}
	return nil
}
