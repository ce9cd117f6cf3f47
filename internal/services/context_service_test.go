package services

import (
	"testing"

	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/testhelpers"
)

func seedZone(t *testing.T, svc *ContextService, zoneID string, lat, lon float64, hazard, soil string) {
	t.Helper()
	err := database.SaveHazardZone(svc.db, &database.HazardZone{
		ZoneID:      zoneID,
		Latitude:    lat,
		Longitude:   lon,
		HazardLevel: hazard,
		SoilType:    soil,
		SlopeAngle:  32.0,
		LandUse:     "Tea plantation",
		District:    "Kegalle",
	})
	if err != nil {
		t.Fatalf("failed to seed zone %s: %v", zoneID, err)
	}
}

func TestNearest_NoZonesYieldsDefault(t *testing.T) {
	svc := NewContextService(testhelpers.SetupTestDB(t))

	ctx := svc.Nearest(7.1667, 80.2833)
	if ctx.ZoneID != "DEFAULT" || ctx.HazardLevel != "Unknown" {
		t.Errorf("expected default context, got %+v", ctx)
	}
	if ctx.CriticalMoisturePercent != 40.0 {
		t.Errorf("default critical moisture = %f, want 40", ctx.CriticalMoisturePercent)
	}
}

func TestNearest_FindsZoneAndDerivesThreshold(t *testing.T) {
	svc := NewContextService(testhelpers.SetupTestDB(t))
	seedZone(t, svc, "KGL-042", 7.1667, 80.2833, "Very High", "Colluvium")

	ctx := svc.Nearest(7.1670, 80.2835)
	if ctx.ZoneID != "KGL-042" {
		t.Fatalf("expected zone KGL-042, got %s", ctx.ZoneID)
	}
	// Colluvium base 35, Very High adjustment -5.
	if ctx.CriticalMoisturePercent != 30.0 {
		t.Errorf("critical moisture = %f, want 30", ctx.CriticalMoisturePercent)
	}
	if ctx.District != "Kegalle" || ctx.SoilType != "Colluvium" {
		t.Errorf("zone attributes not carried: %+v", ctx)
	}
	if ctx.DistanceM <= 0 || ctx.DistanceM > 100 {
		t.Errorf("implausible distance %f for ~40m offset", ctx.DistanceM)
	}
}

func TestNearest_PicksClosestZone(t *testing.T) {
	svc := NewContextService(testhelpers.SetupTestDB(t))
	seedZone(t, svc, "FAR", 7.20, 80.30, "High", "Residual")
	seedZone(t, svc, "NEAR", 7.1670, 80.2834, "Moderate", "Fill")

	ctx := svc.Nearest(7.1667, 80.2833)
	if ctx.ZoneID != "NEAR" {
		t.Errorf("expected closest zone NEAR, got %s", ctx.ZoneID)
	}
}

func TestEstimateCriticalMoisture(t *testing.T) {
	tests := []struct {
		hazard string
		soil   string
		want   float64
	}{
		{"Very High", "Colluvium", 30.0},
		{"Low", "Residual", 50.0},
		{"Very High", "Fill", 25.0},
		{"Very Low", "Bedrock", 65.0}, // clamped from 70
		{"Moderate", "Unknown", 40.0},
		{"Very High", "Unknown", 35.0},
	}
	for _, tt := range tests {
		if got := estimateCriticalMoisture(tt.hazard, tt.soil); got != tt.want {
			t.Errorf("estimateCriticalMoisture(%s, %s) = %f, want %f",
				tt.hazard, tt.soil, got, tt.want)
		}
	}
}

func TestSaveHazardZone_StampsCoarseGeohash(t *testing.T) {
	db := testhelpers.SetupTestDB(t)
	zone := &database.HazardZone{
		ZoneID:    "KGL-001",
		Latitude:  7.1667,
		Longitude: 80.2833,
	}
	if err := database.SaveHazardZone(db, zone); err != nil {
		t.Fatalf("SaveHazardZone failed: %v", err)
	}
	if len(zone.Geohash) != 4 {
		t.Errorf("expected 4-character bucket geohash, got %q", zone.Geohash)
	}
}
