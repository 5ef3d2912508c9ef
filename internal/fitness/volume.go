package fitness

import "math"

const volumeWeeks = 4

// VolumeWindowDays is the activity window used for volume statistics.
const VolumeWindowDays = volumeWeeks * 7

// ComputeRunningVolume aggregates running activities with positive distance. The weekly
// average is the window sum divided by four weeks, not by the number of runs.
func ComputeRunningVolume(rawActivities []any) *VolumeStats {
	var (
		sumMeters float64
		maxMeters float64
		runs      int
	)
	for _, item := range rawActivities {
		raw, ok := item.(map[string]any)
		if !ok || !IsRunningType(ActivityType(raw)) {
			continue
		}
		distance := floatPtr(lookup(raw, activityFields, "distance"))
		if distance == nil || *distance <= 0 {
			continue
		}
		sumMeters += *distance
		maxMeters = math.Max(maxMeters, *distance)
		runs++
	}

	stats := &VolumeStats{
		WeeklyVolumeKm: round2(sumMeters / 1000 / volumeWeeks),
		LongestRunKm:   round2(maxMeters / 1000),
		RunsLast4Weeks: runs,
	}
	if runs > 0 {
		stats.AvgRunKm = round2(sumMeters / 1000 / float64(runs))
	}
	return stats
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
