// Package detection implements the landslide detection core: per-sensor
// risk scoring, spatial correlation of nearby sensors and greedy
// clustering of correlated high-risk groups.
package detection

import (
	"math"

	"github.com/openlews/openlews/internal/database"
)

// Factor weights. They sum to 1.0 so the weighted score stays in [0, 1]
// before the rainfall multiplier is applied.
const (
	weightMoisture     = 0.35
	weightTiltRate     = 0.25
	weightVibration    = 0.15
	weightPorePressure = 0.15
	weightSafetyFactor = 0.10
)

// Defaults used when a reading omits an optional field. Each default sits
// in the safest band of its factor.
const (
	defaultPorePressureKPa  = -10.0
	defaultSafetyFactor     = 2.0
	defaultVibrationBase    = 5.0
	defaultCriticalMoisture = 40.0
)

// Score computes the intrinsic risk of a single reading in [0, 1].
// Five weighted factor scores are summed and the result is amplified by
// the 24h rainfall multiplier, clamped to 1.0.
func Score(r database.SensorReading) float64 {
	critical := defaultCriticalMoisture
	if r.CriticalMoisturePercent != nil && *r.CriticalMoisturePercent > 0 {
		critical = *r.CriticalMoisturePercent
	}
	pore := defaultPorePressureKPa
	if r.PorePressureKPa != nil {
		pore = *r.PorePressureKPa
	}
	safety := defaultSafetyFactor
	if r.SafetyFactor != nil {
		safety = *r.SafetyFactor
	}
	baseline := r.VibrationBaseline
	if baseline <= 0 {
		baseline = defaultVibrationBase
	}

	weighted := weightMoisture*scoreMoisture(r.MoisturePercent, critical) +
		weightTiltRate*scoreTiltRate(r.TiltRateMMPerHour) +
		weightVibration*scoreVibration(r.VibrationCount, baseline) +
		weightPorePressure*scorePorePressure(pore) +
		weightSafetyFactor*scoreSafetyFactor(safety)

	return math.Min(1.0, weighted*rainfallMultiplier(r.RainfallMM24h))
}

// scoreMoisture bands moisture relative to the soil's critical threshold
func scoreMoisture(moisture, critical float64) float64 {
	switch {
	case moisture < 0.8*critical:
		return 0.0
	case moisture < critical:
		return 0.3
	case moisture < 1.2*critical:
		return 0.6
	default:
		return 1.0
	}
}

// scoreTiltRate bands slope movement in mm per hour
func scoreTiltRate(rate float64) float64 {
	switch {
	case rate < 1.0:
		return 0.0
	case rate < 5.0:
		return 0.2
	case rate < 10.0:
		return 0.7
	default:
		return 1.0
	}
}

// scoreVibration bands ground vibration as a multiple of the sensor's own
// baseline
func scoreVibration(count, baseline float64) float64 {
	ratio := count / baseline
	switch {
	case ratio < 2.0:
		return 0.0
	case ratio < 5.0:
		return 0.3
	case ratio < 10.0:
		return 0.7
	default:
		return 1.0
	}
}

// scorePorePressure bands pore water pressure in kPa. Negative values
// indicate suction, which stabilizes the slope.
func scorePorePressure(kpa float64) float64 {
	switch {
	case kpa < 0:
		return 0.0
	case kpa < 5.0:
		return 0.4
	case kpa < 10.0:
		return 0.7
	default:
		return 1.0
	}
}

// scoreSafetyFactor bands the geotechnical factor of safety. Below 1.0
// the slope is analytically unstable.
func scoreSafetyFactor(fos float64) float64 {
	switch {
	case fos > 1.5:
		return 0.0
	case fos > 1.2:
		return 0.3
	case fos >= 1.0:
		return 0.7
	default:
		return 1.0
	}
}

// rainfallMultiplier amplifies the weighted score under antecedent
// rainfall, the dominant landslide trigger in the monitored regions
func rainfallMultiplier(mm24h float64) float64 {
	switch {
	case mm24h < 75.0:
		return 1.0
	case mm24h < 100.0:
		return 1.1
	case mm24h < 150.0:
		return 1.2
	case mm24h < 200.0:
		return 1.3
	default:
		return 1.5
	}
}
