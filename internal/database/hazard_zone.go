package database

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openlews/openlews/internal/geo"
)

// SaveHazardZone upserts a hazard zone record, stamping the coarse
// geohash of its centroid so lookups can bucket by cell.
func SaveHazardZone(db *gorm.DB, zone *HazardZone) error {
	zone.Geohash = geo.Encode(zone.Latitude, zone.Longitude, geo.PrecisionCoarse)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "zone_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"geohash", "latitude", "longitude", "hazard_level",
			"soil_type", "slope_angle", "land_use", "district", "updated_at",
		}),
	}).Create(zone).Error
	if err != nil {
		return fmt.Errorf("failed to save hazard zone %s: %w", zone.ZoneID, err)
	}
	return nil
}

// ZonesInCells returns all hazard zones whose centroid falls into one of
// the given geohash cells.
func ZonesInCells(db *gorm.DB, cells []string) ([]HazardZone, error) {
	if len(cells) == 0 {
		return nil, nil
	}
	var zones []HazardZone
	if err := db.Where("geohash IN ?", cells).Find(&zones).Error; err != nil {
		return nil, fmt.Errorf("failed to query hazard zones: %w", err)
	}
	return zones, nil
}
