package workouts

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/2beens/runcoach/internal/fitness"
	"github.com/2beens/runcoach/internal/workouts/ai"
)

const (
	PromptActivities = 5
	PromptReadings   = 3

	noActivities = "No recent activities."
	noReadings   = "No recent health data."
)

var userPromptTemplate = template.Must(template.New("workout").Parse(`Athlete fitness profile:
{{.Profile}}

Recent activities (newest first):
{{.Activities}}

Recent health readings (newest first):
{{.Readings}}

Workout request:
{{.Request}}
`))

type Request struct {
	WorkoutType Type     `json:"workoutType"`
	DistanceKm  *float64 `json:"distanceKm,omitempty"`
	UserPrompt  string   `json:"userPrompt,omitempty"`
}

// Describe renders the request as the free text part of the prompt.
func (r Request) Describe() string {
	var sb strings.Builder
	sb.WriteString("Workout type: " + string(r.WorkoutType) + ".")
	if r.DistanceKm != nil {
		sb.WriteString(fmt.Sprintf(" Target distance: %.1f km.", *r.DistanceKm))
	}
	if prompt := strings.TrimSpace(r.UserPrompt); prompt != "" {
		sb.WriteString(" Notes from the athlete: " + prompt)
	}
	return sb.String()
}

type PromptContext struct {
	Profile    *fitness.RunningFitnessProfile
	Activities []fitness.Activity
	Readings   []fitness.DailyHealthReading
}

func BuildMessages(systemPrompt string, pc PromptContext, req Request) ([]ai.Message, error) {
	profileJSON, err := json.MarshalIndent(pc.Profile, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal profile: %w", err)
	}

	activities := noActivities
	if len(pc.Activities) > 0 {
		data, err := json.MarshalIndent(pc.Activities[:min(len(pc.Activities), PromptActivities)], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal activities: %w", err)
		}
		activities = string(data)
	}

	readings := noReadings
	if len(pc.Readings) > 0 {
		data, err := json.MarshalIndent(pc.Readings[:min(len(pc.Readings), PromptReadings)], "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal readings: %w", err)
		}
		readings = string(data)
	}

	var sb strings.Builder
	err = userPromptTemplate.Execute(&sb, map[string]string{
		"Profile":    string(profileJSON),
		"Activities": activities,
		"Readings":   readings,
		"Request":    req.Describe(),
	})
	if err != nil {
		return nil, fmt.Errorf("render prompt: %w", err)
	}

	return []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: sb.String()},
	}, nil
}
