package testhelpers

import (
	"math"

	"github.com/openlews/openlews/internal/database"
)

// Aranayake site coordinates, used by the historical replay scenario
const (
	AranayakeLat = 7.1667
	AranayakeLon = 80.2833
)

// AranayakeReading synthesizes one reading of the 72-hour run-up to the
// May 2016 Aranayake landslide. Hour 0 is a quiet slope; the signature
// degrades progressively until failure around hour 68.
func AranayakeReading(sensorID string, hour int, dLat, dLon float64, timestamp int64) database.SensorReading {
	h := float64(hour)

	moisture := math.Min(95.0, 20.0+(h/72.0)*75.0)

	var tilt float64
	switch {
	case hour < 40:
		tilt = 0.5
	case hour < 60:
		tilt = 2.0 + (h-40.0)*0.2
	default:
		tilt = 6.0 + (h-60.0)*0.5
	}

	var vibration float64
	switch {
	case hour < 50:
		vibration = 8.0
	case hour < 65:
		vibration = 15.0 + (h-50.0)*2.0
	default:
		vibration = 50.0 + (h-65.0)*10.0
	}

	pore := math.Max(-5.0, -10.0+(h/72.0)*25.0)
	safety := math.Max(0.8, 1.8-(h/72.0)*1.0)

	var rainfall float64
	switch {
	case hour < 24:
		rainfall = h * 5.0
	case hour < 48:
		rainfall = 120.0 + (h-24.0)*8.0
	default:
		rainfall = math.Min(400.0, 300.0+(h-48.0)*6.0)
	}

	critical := 40.0
	return database.SensorReading{
		SensorID:                sensorID,
		Timestamp:               timestamp,
		Latitude:                AranayakeLat + dLat,
		Longitude:               AranayakeLon + dLon,
		MoisturePercent:         moisture,
		TiltRateMMPerHour:       tilt,
		VibrationCount:          vibration,
		VibrationBaseline:       10.0,
		RainfallMM24h:           rainfall,
		PorePressureKPa:         &pore,
		SafetyFactor:            &safety,
		CriticalMoisturePercent: &critical,
	}
}
