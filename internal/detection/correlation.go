package detection

import (
	"math"

	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/geo"
)

// CorrelationRadiusM bounds the neighborhood used for spatial agreement
// and for clustering.
const CorrelationRadiusM = 50.0

// Agreement bands on the intrinsic risk score. Two sensors agree when
// both sit above the high band or both below the low band.
const (
	agreeHigh = 0.5
	agreeLow  = 0.3
)

// Composite adjustment thresholds
const (
	corroborated = 0.6
	contradicted = 0.3
)

// Assessment is the per-sensor output of one analysis pass
type Assessment struct {
	SensorID           string                 `json:"sensor_id"`
	RiskScore          float64                `json:"risk_score"`
	SpatialCorrelation float64                `json:"spatial_correlation"`
	CompositeRisk      float64                `json:"composite_risk"`
	Reading            database.SensorReading `json:"-"`
}

// Correlate measures how strongly a sensor's risk agrees with its
// neighbors inside the correlation radius. A sensor with fewer than two
// neighbors gets 0: isolated readings cannot corroborate each other.
func Correlate(sensorID string, assessments map[string]*Assessment) float64 {
	self, ok := assessments[sensorID]
	if !ok {
		return 0.0
	}

	neighbors := 0
	agreeing := 0
	for id, other := range assessments {
		if id == sensorID {
			continue
		}
		d := geo.Distance(self.Reading.Latitude, self.Reading.Longitude,
			other.Reading.Latitude, other.Reading.Longitude)
		if d > CorrelationRadiusM {
			continue
		}
		neighbors++
		if bothAbove(self.RiskScore, other.RiskScore, agreeHigh) ||
			bothBelow(self.RiskScore, other.RiskScore, agreeLow) {
			agreeing++
		}
	}

	if neighbors < 2 {
		return 0.0
	}
	return float64(agreeing) / float64(neighbors)
}

func bothAbove(a, b, threshold float64) bool {
	return a > threshold && b > threshold
}

func bothBelow(a, b, threshold float64) bool {
	return a < threshold && b < threshold
}

// Compose folds spatial correlation into an intrinsic risk score. Strong
// agreement boosts the score, strong disagreement suppresses it as a
// likely sensor fault, and the middle band leaves it unchanged.
func Compose(risk, correlation float64) float64 {
	switch {
	case correlation > corroborated:
		return math.Min(1.0, risk*1.3)
	case correlation < contradicted:
		return risk * 0.5
	default:
		return risk
	}
}
