package detection

import (
	"math"
	"testing"

	"github.com/openlews/openlews/internal/database"
)

func floatPtr(v float64) *float64 {
	return &v
}

func quietReading(sensorID string) database.SensorReading {
	return database.SensorReading{
		SensorID:                sensorID,
		Timestamp:               1700000000,
		Latitude:                7.1667,
		Longitude:               80.2833,
		MoisturePercent:         20.0,
		TiltRateMMPerHour:       0.2,
		VibrationCount:          5.0,
		VibrationBaseline:       5.0,
		RainfallMM24h:           10.0,
		PorePressureKPa:         floatPtr(-8.0),
		SafetyFactor:            floatPtr(1.8),
		CriticalMoisturePercent: floatPtr(40.0),
	}
}

func TestScore_QuietSlopeIsZero(t *testing.T) {
	if got := Score(quietReading("S1")); got != 0.0 {
		t.Errorf("expected zero risk for quiet slope, got %f", got)
	}
}

func TestScore_SaturatedSlopeIsOne(t *testing.T) {
	r := quietReading("S1")
	r.MoisturePercent = 60.0
	r.TiltRateMMPerHour = 12.0
	r.VibrationCount = 60.0
	r.RainfallMM24h = 250.0
	r.PorePressureKPa = floatPtr(15.0)
	r.SafetyFactor = floatPtr(0.9)

	if got := Score(r); got != 1.0 {
		t.Errorf("expected risk 1.0 for saturated failing slope, got %f", got)
	}
}

func TestScore_WeightedSum(t *testing.T) {
	r := quietReading("S1")
	r.MoisturePercent = 35.0      // below critical band: 0.3
	r.TiltRateMMPerHour = 6.0     // 0.7
	r.VibrationCount = 30.0       // 6x baseline: 0.7
	r.PorePressureKPa = floatPtr(7.0)  // 0.7
	r.SafetyFactor = floatPtr(1.1)     // 0.7

	want := 0.35*0.3 + 0.25*0.7 + 0.15*0.7 + 0.15*0.7 + 0.10*0.7
	if got := Score(r); math.Abs(got-want) > 1e-9 {
		t.Errorf("Score() = %f, want %f", got, want)
	}
}

func TestScore_RainfallAmplifies(t *testing.T) {
	r := quietReading("S1")
	r.MoisturePercent = 35.0
	r.TiltRateMMPerHour = 6.0
	r.VibrationCount = 30.0
	r.PorePressureKPa = floatPtr(7.0)
	r.SafetyFactor = floatPtr(1.1)

	dry := Score(r)

	r.RainfallMM24h = 120.0
	wet := Score(r)
	if math.Abs(wet-dry*1.2) > 1e-9 {
		t.Errorf("expected 1.2x amplification, dry=%f wet=%f", dry, wet)
	}

	r.RainfallMM24h = 300.0
	storm := Score(r)
	if math.Abs(storm-dry*1.5) > 1e-9 {
		t.Errorf("expected 1.5x amplification, dry=%f storm=%f", dry, storm)
	}
}

func TestScore_ClampedToOne(t *testing.T) {
	r := quietReading("S1")
	r.MoisturePercent = 60.0
	r.TiltRateMMPerHour = 12.0
	r.VibrationCount = 60.0
	r.PorePressureKPa = floatPtr(15.0)
	r.SafetyFactor = floatPtr(0.9)
	r.RainfallMM24h = 500.0

	if got := Score(r); got > 1.0 {
		t.Errorf("score must never exceed 1.0, got %f", got)
	}
}

func TestScore_MissingOptionalFieldsUseSafeDefaults(t *testing.T) {
	r := quietReading("S1")
	r.PorePressureKPa = nil
	r.SafetyFactor = nil
	r.CriticalMoisturePercent = nil
	r.VibrationBaseline = 0

	// Defaults put pore pressure and safety factor in their safest
	// bands, critical moisture at 40 and vibration baseline at 5.
	if got := Score(r); got != 0.0 {
		t.Errorf("defaults should keep a quiet slope at zero risk, got %f", got)
	}
}

func TestScore_MoistureBandsFollowCriticalThreshold(t *testing.T) {
	tests := []struct {
		name     string
		moisture float64
		critical float64
		want     float64
	}{
		{"well below critical", 30.0, 40.0, 0.0},
		{"approaching critical", 35.0, 40.0, 0.3},
		{"above critical", 45.0, 40.0, 0.6},
		{"far above critical", 50.0, 40.0, 1.0},
		{"low threshold soil", 28.0, 30.0, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := scoreMoisture(tt.moisture, tt.critical); got != tt.want {
				t.Errorf("scoreMoisture(%f, %f) = %f, want %f",
					tt.moisture, tt.critical, got, tt.want)
			}
		})
	}
}

func TestScore_VibrationIsRelativeToBaseline(t *testing.T) {
	// Same count, different baselines: a noisy site should not alarm on
	// activity a quiet site would.
	if got := scoreVibration(40.0, 30.0); got != 0.0 {
		t.Errorf("40 counts against baseline 30 should score 0, got %f", got)
	}
	if got := scoreVibration(40.0, 5.0); got != 0.7 {
		t.Errorf("40 counts against baseline 5 should score 0.7, got %f", got)
	}
}
