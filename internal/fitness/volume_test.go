package fitness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeRunningVolume(t *testing.T) {
	activities := []any{
		map[string]any{"activityType": map[string]any{"typeKey": "running"}, "distance": 10000.0},
		map[string]any{"activityType": "trail_running", "distance": "21000"},
		map[string]any{"activityType": "running", "distance": 5000},
		// ignored
		map[string]any{"activityType": "cycling", "distance": 40000.0},
		map[string]any{"activityType": "running", "distance": 0.0},
		map[string]any{"activityType": "running"},
		"not an object",
	}

	stats := ComputeRunningVolume(activities)
	assert.Equal(t, 3, stats.RunsLast4Weeks)
	assert.Equal(t, 9.0, stats.WeeklyVolumeKm) // 36km over 4 weeks, not over 3 runs
	assert.Equal(t, 21.0, stats.LongestRunKm)
	assert.Equal(t, 12.0, stats.AvgRunKm)
}

func TestComputeRunningVolume_NoRuns(t *testing.T) {
	stats := ComputeRunningVolume(nil)
	assert.Equal(t, &VolumeStats{}, stats)
}
