package database

import (
	"fmt"
	"log"

	"gorm.io/gorm"

	"github.com/openlews/openlews/internal/geo"
)

// TelemetryStore persists sensor readings and serves the detection loop's
// analysis window queries.
type TelemetryStore struct {
	db *gorm.DB
}

// NewTelemetryStore creates a telemetry store
func NewTelemetryStore(db *gorm.DB) *TelemetryStore {
	return &TelemetryStore{db: db}
}

// SaveReading validates a reading, stamps its fine geohash and stores it
func (s *TelemetryStore) SaveReading(r *SensorReading) error {
	if err := ValidateReading(r); err != nil {
		return err
	}
	if r.Geohash == "" {
		r.Geohash = geo.Encode(r.Latitude, r.Longitude, geo.PrecisionFine)
	}
	if err := s.db.Create(r).Error; err != nil {
		return fmt.Errorf("failed to save reading from %s: %w", r.SensorID, err)
	}
	return nil
}

// LatestWindow returns the most recent reading per sensor inside the
// [start, end] timestamp range. Sensors with no reading in the window are
// absent from the result.
func (s *TelemetryStore) LatestWindow(start, end int64) (map[string]SensorReading, error) {
	var readings []SensorReading
	err := s.db.Where("timestamp >= ? AND timestamp <= ?", start, end).
		Order("timestamp asc").
		Find(&readings).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query readings window: %w", err)
	}

	latest := make(map[string]SensorReading, len(readings))
	for _, r := range readings {
		latest[r.SensorID] = r
	}
	return latest, nil
}

// PruneBefore deletes readings older than the given timestamp. Returns the
// number of rows removed.
func (s *TelemetryStore) PruneBefore(cutoff int64) (int64, error) {
	result := s.db.Where("timestamp < ?", cutoff).Delete(&SensorReading{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune readings: %w", result.Error)
	}
	if result.RowsAffected > 0 {
		log.Printf("Pruned %d readings older than %d", result.RowsAffected, cutoff)
	}
	return result.RowsAffected, nil
}
