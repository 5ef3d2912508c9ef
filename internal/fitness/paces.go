package fitness

import (
	"fmt"
	"math"

	"github.com/2beens/runcoach/internal/apperror"
)

// Zone multipliers in thousandths, applied to the 10K prediction:
// base (s/km) = p/10, so base*1.24 == p*124/1000. Integer multipliers keep
// exact products such as 2400*95 free of float rounding before the floor.
const (
	easyLowMultiplier    = 124
	easyHighMultiplier   = 136
	tempoMultiplier      = 109
	thresholdMultiplier  = 103
	intervalMultiplier   = 95
	repetitionMultiplier = 89
)

// CalculateTrainingPaces derives six pace zones from a predicted 10K time in seconds.
// Zones are strictly ordered for any realistic prediction (above ~167s); tiny inputs
// collapse adjacent zones after flooring.
func CalculateTrainingPaces(predicted10kSeconds float64) (TrainingPaces, error) {
	if math.IsNaN(predicted10kSeconds) || math.IsInf(predicted10kSeconds, 0) {
		return TrainingPaces{}, apperror.Validation("predicted 10K time must be a finite number")
	}
	if predicted10kSeconds <= 0 {
		return TrainingPaces{}, apperror.Validation("predicted 10K time must be positive")
	}

	zone := func(multiplier int) int {
		return int(math.Floor(predicted10kSeconds * float64(multiplier) / 1000))
	}
	return TrainingPaces{
		EasyPaceLow:    zone(easyLowMultiplier),
		EasyPaceHigh:   zone(easyHighMultiplier),
		TempoPace:      zone(tempoMultiplier),
		ThresholdPace:  zone(thresholdMultiplier),
		IntervalPace:   zone(intervalMultiplier),
		RepetitionPace: zone(repetitionMultiplier),
	}, nil
}

// FormatPace renders seconds per km as m:ss.
func FormatPace(secondsPerKm int) string {
	if secondsPerKm < 0 {
		secondsPerKm = 0
	}
	return fmt.Sprintf("%d:%02d", secondsPerKm/60, secondsPerKm%60)
}
