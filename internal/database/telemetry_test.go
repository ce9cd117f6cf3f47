package database

import (
	"strings"
	"testing"
)

func validReading(sensorID string, ts int64) *SensorReading {
	return &SensorReading{
		SensorID:          sensorID,
		Timestamp:         ts,
		Latitude:          7.1667,
		Longitude:         80.2833,
		MoisturePercent:   25.0,
		TiltRateMMPerHour: 0.5,
		VibrationCount:    6.0,
		VibrationBaseline: 5.0,
		RainfallMM24h:     12.0,
	}
}

func TestSaveReading_StampsGeohash(t *testing.T) {
	store := NewTelemetryStore(setupTestDB(t))

	r := validReading("SENSOR-1", 1700000000)
	if err := store.SaveReading(r); err != nil {
		t.Fatalf("SaveReading failed: %v", err)
	}
	if len(r.Geohash) != 6 {
		t.Errorf("expected 6-character geohash, got %q", r.Geohash)
	}
	if !strings.HasPrefix(r.Geohash, "tc") {
		t.Errorf("unexpected geohash %q for central Sri Lanka", r.Geohash)
	}
}

func TestSaveReading_RejectsInvalidCoordinates(t *testing.T) {
	store := NewTelemetryStore(setupTestDB(t))

	r := validReading("SENSOR-1", 1700000000)
	r.Latitude = 123.0
	if err := store.SaveReading(r); err == nil {
		t.Errorf("expected validation error for latitude 123")
	}

	r = validReading("", 1700000000)
	if err := store.SaveReading(r); err == nil {
		t.Errorf("expected validation error for empty sensor id")
	}
}

func TestLatestWindow_PicksNewestPerSensor(t *testing.T) {
	store := NewTelemetryStore(setupTestDB(t))

	base := int64(1700000000)
	for i, ts := range []int64{base, base + 600, base + 1200} {
		r := validReading("SENSOR-1", ts)
		r.MoisturePercent = 20.0 + float64(i)
		if err := store.SaveReading(r); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.SaveReading(validReading("SENSOR-2", base+300)); err != nil {
		t.Fatal(err)
	}
	// Outside the window entirely.
	if err := store.SaveReading(validReading("SENSOR-3", base-7200)); err != nil {
		t.Fatal(err)
	}

	latest, err := store.LatestWindow(base, base+3600)
	if err != nil {
		t.Fatalf("LatestWindow failed: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("expected 2 sensors in window, got %d", len(latest))
	}
	if got := latest["SENSOR-1"]; got.Timestamp != base+1200 || got.MoisturePercent != 22.0 {
		t.Errorf("expected newest SENSOR-1 reading, got ts=%d moisture=%f",
			got.Timestamp, got.MoisturePercent)
	}
	if _, ok := latest["SENSOR-3"]; ok {
		t.Errorf("reading outside window must be excluded")
	}
}

func TestPruneBefore(t *testing.T) {
	store := NewTelemetryStore(setupTestDB(t))

	if err := store.SaveReading(validReading("SENSOR-1", 1000)); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveReading(validReading("SENSOR-1", 2000)); err != nil {
		t.Fatal(err)
	}

	n, err := store.PruneBefore(1500)
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 reading pruned, got %d", n)
	}
}

func TestRiskLevelOrdering(t *testing.T) {
	if !RiskLevelRed.Above(RiskLevelOrange) || !RiskLevelOrange.Above(RiskLevelYellow) {
		t.Error("level ordering broken")
	}
	if RiskLevelYellow.Above(RiskLevelYellow) {
		t.Error("a level must not be above itself")
	}
	if RiskLevel("Purple").Valid() {
		t.Error("unknown level must be invalid")
	}
	if !RiskLevelYellow.Above(RiskLevel("Purple")) {
		t.Error("known levels must rank above unknown ones")
	}
}
