package database

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidateReading checks a sensor reading against its field constraints
func ValidateReading(r *SensorReading) error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid sensor reading: %w", err)
	}
	return nil
}

// ValidateDetectionSettings checks tunable detection parameters
func ValidateDetectionSettings(s *DetectionSettings) error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("invalid detection settings: %w", err)
	}
	return nil
}
