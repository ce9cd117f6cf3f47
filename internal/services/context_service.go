package services

import (
	"log"

	"gorm.io/gorm"

	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/geo"
)

// GeoContext describes the mapped hazard conditions around a detection
// location. It is advisory: a lookup failure yields DefaultGeoContext,
// never an error, so detection keeps running without the hazard map.
type GeoContext struct {
	ZoneID                  string  `json:"zone_id"`
	HazardLevel             string  `json:"hazard_level"`
	SoilType                string  `json:"soil_type"`
	SlopeAngle              float64 `json:"slope_angle"`
	LandUse                 string  `json:"land_use"`
	District                string  `json:"district"`
	DistanceM               float64 `json:"distance_m"`
	CriticalMoisturePercent float64 `json:"critical_moisture_percent"`
}

// ToJSONB flattens the context for storage on an alert
func (c *GeoContext) ToJSONB() database.JSONB {
	return database.JSONB{
		"zone_id":                   c.ZoneID,
		"hazard_level":              c.HazardLevel,
		"soil_type":                 c.SoilType,
		"slope_angle":               c.SlopeAngle,
		"land_use":                  c.LandUse,
		"district":                  c.District,
		"distance_m":                c.DistanceM,
		"critical_moisture_percent": c.CriticalMoisturePercent,
	}
}

// DefaultGeoContext is returned when no hazard zone covers a location
func DefaultGeoContext() *GeoContext {
	return &GeoContext{
		ZoneID:                  "DEFAULT",
		HazardLevel:             "Unknown",
		SoilType:                "Unknown",
		CriticalMoisturePercent: 40.0,
	}
}

// ContextService resolves detection locations against the hazard zone map
type ContextService struct {
	db *gorm.DB
}

// NewContextService creates a context service
func NewContextService(db *gorm.DB) *ContextService {
	return &ContextService{db: db}
}

// Nearest returns the hazard context of the zone closest to the given
// location. The search buckets by coarse geohash cell and probes the
// cell plus its eight neighbors, so zones just across a cell border are
// still found.
func (s *ContextService) Nearest(lat, lon float64) *GeoContext {
	cell := geo.Encode(lat, lon, geo.PrecisionCoarse)
	zones, err := database.ZonesInCells(s.db, geo.Neighbors(cell))
	if err != nil {
		log.Printf("Warning: hazard zone lookup failed, using default context: %v", err)
		return DefaultGeoContext()
	}
	if len(zones) == 0 {
		return DefaultGeoContext()
	}

	best := zones[0]
	bestDist := geo.Distance(lat, lon, best.Latitude, best.Longitude)
	for _, z := range zones[1:] {
		d := geo.Distance(lat, lon, z.Latitude, z.Longitude)
		if d < bestDist {
			best = z
			bestDist = d
		}
	}

	return &GeoContext{
		ZoneID:                  best.ZoneID,
		HazardLevel:             best.HazardLevel,
		SoilType:                best.SoilType,
		SlopeAngle:              best.SlopeAngle,
		LandUse:                 best.LandUse,
		District:                best.District,
		DistanceM:               bestDist,
		CriticalMoisturePercent: estimateCriticalMoisture(best.HazardLevel, best.SoilType),
	}
}

// Base critical moisture by soil type, in volumetric percent. Values
// follow regional geotechnical guidance for Sri Lankan slopes.
var soilCriticalMoisture = map[string]float64{
	"Colluvium": 35.0,
	"Residual":  45.0,
	"Fill":      30.0,
	"Bedrock":   60.0,
}

// Adjustment by mapped hazard level. Higher-hazard zones fail at lower
// saturation.
var hazardMoistureAdjust = map[string]float64{
	"Very High": -5.0,
	"High":      -2.0,
	"Moderate":  0.0,
	"Low":       5.0,
	"Very Low":  10.0,
}

// estimateCriticalMoisture derives a per-zone failure threshold from soil
// type and hazard level, clamped to the plausible 25-65 percent range.
func estimateCriticalMoisture(hazardLevel, soilType string) float64 {
	base, ok := soilCriticalMoisture[soilType]
	if !ok {
		base = 40.0
	}
	threshold := base + hazardMoistureAdjust[hazardLevel]
	if threshold < 25.0 {
		threshold = 25.0
	}
	if threshold > 65.0 {
		threshold = 65.0
	}
	return threshold
}
