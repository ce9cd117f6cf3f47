package database

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// SaveCycle persists the outcome of one detection run
func SaveCycle(db *gorm.DB, cycle *DetectionCycle) error {
	if err := db.Create(cycle).Error; err != nil {
		return fmt.Errorf("failed to save detection cycle %s: %w", cycle.CycleID, err)
	}
	return nil
}

// LatestCycle returns the most recent detection cycle, or nil when no
// cycle has run yet.
func LatestCycle(db *gorm.DB) (*DetectionCycle, error) {
	var cycle DetectionCycle
	err := db.Order("started_at desc").First(&cycle).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest cycle: %w", err)
	}
	return &cycle, nil
}
