package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openlews/openlews/internal/database"
)

// DetectionTuning is an optional YAML override file for detection
// parameters. Absent fields leave the stored settings untouched.
//
//	risk_threshold: 0.65
//	analysis_window_hours: 12
//	interval_minutes: 10
type DetectionTuning struct {
	Enabled             *bool    `yaml:"enabled"`
	RiskThreshold       *float64 `yaml:"risk_threshold"`
	AnalysisWindowHours *int     `yaml:"analysis_window_hours"`
	IntervalMinutes     *int     `yaml:"interval_minutes"`
	AlertTTLHours       *int     `yaml:"alert_ttl_hours"`
	NarrativeEnabled    *bool    `yaml:"narrative_enabled"`
	MaxAssessAttempts   *int     `yaml:"max_assess_attempts"`
}

// LoadTuning parses a detection tuning file
func LoadTuning(path string) (*DetectionTuning, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file %s: %w", path, err)
	}

	var tuning DetectionTuning
	if err := yaml.Unmarshal(data, &tuning); err != nil {
		return nil, fmt.Errorf("failed to parse tuning file %s: %w", path, err)
	}
	return &tuning, nil
}

// Apply overwrites the provided settings with any values set in the
// tuning file and returns true if anything changed.
func (t *DetectionTuning) Apply(settings *database.DetectionSettings) bool {
	changed := false
	if t.Enabled != nil && settings.Enabled != *t.Enabled {
		settings.Enabled = *t.Enabled
		changed = true
	}
	if t.RiskThreshold != nil && settings.RiskThreshold != *t.RiskThreshold {
		settings.RiskThreshold = *t.RiskThreshold
		changed = true
	}
	if t.AnalysisWindowHours != nil && settings.AnalysisWindowHours != *t.AnalysisWindowHours {
		settings.AnalysisWindowHours = *t.AnalysisWindowHours
		changed = true
	}
	if t.IntervalMinutes != nil && settings.IntervalMinutes != *t.IntervalMinutes {
		settings.IntervalMinutes = *t.IntervalMinutes
		changed = true
	}
	if t.AlertTTLHours != nil && settings.AlertTTLHours != *t.AlertTTLHours {
		settings.AlertTTLHours = *t.AlertTTLHours
		changed = true
	}
	if t.NarrativeEnabled != nil && settings.NarrativeEnabled != *t.NarrativeEnabled {
		settings.NarrativeEnabled = *t.NarrativeEnabled
		changed = true
	}
	if t.MaxAssessAttempts != nil && settings.MaxAssessAttempts != *t.MaxAssessAttempts {
		settings.MaxAssessAttempts = *t.MaxAssessAttempts
		changed = true
	}
	return changed
}
