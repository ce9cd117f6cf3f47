package detection

import (
	"math"
	"testing"

	"github.com/openlews/openlews/internal/database"
)

// placeAssessment builds an assessment at an offset (in degrees) from a
// common base point. 0.0002 degrees of latitude is roughly 22 meters.
func placeAssessment(id string, dLat, dLon, risk float64) *Assessment {
	return &Assessment{
		SensorID:  id,
		RiskScore: risk,
		Reading: database.SensorReading{
			SensorID:  id,
			Latitude:  7.1667 + dLat,
			Longitude: 80.2833 + dLon,
		},
	}
}

func TestCorrelate_FewerThanTwoNeighborsIsZero(t *testing.T) {
	assessments := map[string]*Assessment{
		"A": placeAssessment("A", 0, 0, 0.9),
		"B": placeAssessment("B", 0.0002, 0, 0.9),
	}
	if got := Correlate("A", assessments); got != 0.0 {
		t.Errorf("single neighbor should yield 0 correlation, got %f", got)
	}
}

func TestCorrelate_AllNeighborsAgreeHigh(t *testing.T) {
	assessments := map[string]*Assessment{
		"A": placeAssessment("A", 0, 0, 0.7),
		"B": placeAssessment("B", 0.0002, 0, 0.8),
		"C": placeAssessment("C", -0.0002, 0, 0.9),
	}
	if got := Correlate("A", assessments); got != 1.0 {
		t.Errorf("all high-risk neighbors should yield 1.0, got %f", got)
	}
}

func TestCorrelate_AllNeighborsAgreeLow(t *testing.T) {
	assessments := map[string]*Assessment{
		"A": placeAssessment("A", 0, 0, 0.1),
		"B": placeAssessment("B", 0.0002, 0, 0.2),
		"C": placeAssessment("C", -0.0002, 0, 0.05),
	}
	if got := Correlate("A", assessments); got != 1.0 {
		t.Errorf("all quiet neighbors should yield 1.0, got %f", got)
	}
}

func TestCorrelate_MixedNeighborsPartialAgreement(t *testing.T) {
	assessments := map[string]*Assessment{
		"A": placeAssessment("A", 0, 0, 0.7),
		"B": placeAssessment("B", 0.0002, 0, 0.6),
		"C": placeAssessment("C", -0.0002, 0, 0.1),
	}
	if got := Correlate("A", assessments); got != 0.5 {
		t.Errorf("one of two neighbors agreeing should yield 0.5, got %f", got)
	}
}

func TestCorrelate_DistantSensorsAreNotNeighbors(t *testing.T) {
	// 0.01 degrees is over a kilometer, far outside the radius.
	assessments := map[string]*Assessment{
		"A": placeAssessment("A", 0, 0, 0.9),
		"B": placeAssessment("B", 0.01, 0, 0.9),
		"C": placeAssessment("C", -0.01, 0, 0.9),
	}
	if got := Correlate("A", assessments); got != 0.0 {
		t.Errorf("distant sensors must not corroborate, got %f", got)
	}
}

func TestCorrelate_UnknownSensor(t *testing.T) {
	if got := Correlate("missing", map[string]*Assessment{}); got != 0.0 {
		t.Errorf("unknown sensor should yield 0, got %f", got)
	}
}

func TestCompose_BoostSuppressUnchanged(t *testing.T) {
	tests := []struct {
		name        string
		risk        float64
		correlation float64
		want        float64
	}{
		{"corroborated boosts", 0.7, 0.8, 0.91},
		{"contradicted suppresses", 0.8, 0.2, 0.4},
		{"middle band unchanged", 0.7, 0.45, 0.7},
		{"boost clamps at one", 0.9, 0.9, 1.0},
		{"zero risk stays zero", 0.0, 0.9, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compose(tt.risk, tt.correlation)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Compose(%f, %f) = %f, want %f",
					tt.risk, tt.correlation, got, tt.want)
			}
		})
	}
}

func TestCompose_MonotoneInRisk(t *testing.T) {
	// For a fixed correlation, a higher intrinsic score can never
	// produce a lower composite.
	for _, corr := range []float64{0.0, 0.2, 0.45, 0.7, 1.0} {
		prev := -1.0
		for risk := 0.0; risk <= 1.0; risk += 0.05 {
			got := Compose(risk, corr)
			if got < prev {
				t.Fatalf("composite decreased at risk=%f corr=%f: %f < %f",
					risk, corr, got, prev)
			}
			prev = got
		}
	}
}
