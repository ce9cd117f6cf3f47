package database

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// JSONB is a custom type for PostgreSQL JSONB columns. SQLite stores it
// as TEXT, so Scan accepts both representations.
type JSONB map[string]interface{}

// Scan implements the sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		return fmt.Errorf("cannot scan %T into JSONB", value)
	}
}

// Value implements the driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// StringList stores a JSON-encoded list of strings in a single column
type StringList []string

// Scan implements the sql.Scanner interface
func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into StringList", value)
	}
}

// Value implements the driver.Valuer interface
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	return json.Marshal(l)
}

// RiskLevel is the severity of an alert. Levels are strictly ordered.
type RiskLevel string

const (
	RiskLevelYellow RiskLevel = "Yellow"
	RiskLevelOrange RiskLevel = "Orange"
	RiskLevelRed    RiskLevel = "Red"
)

// Rank returns the numeric ordering of a level. Unknown levels rank below
// Yellow so a malformed level can never displace a real one.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLevelYellow:
		return 1
	case RiskLevelOrange:
		return 2
	case RiskLevelRed:
		return 3
	default:
		return 0
	}
}

// Above returns true if l is strictly more severe than other
func (l RiskLevel) Above(other RiskLevel) bool {
	return l.Rank() > other.Rank()
}

// Valid returns true if l is one of the known levels
func (l RiskLevel) Valid() bool {
	return l.Rank() > 0
}

// Alert status values
const (
	AlertStatusActive   = "active"
	AlertStatusResolved = "resolved"
	AlertStatusExpired  = "expired"
)

// Detection type values
const (
	DetectionTypeIndividual = "individual"
	DetectionTypeCluster    = "cluster"
)

// SensorReading is one telemetry sample from a slope-monitoring station.
// Optional geotechnical fields use pointers so an absent value can be
// told apart from a measured zero.
type SensorReading struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	SensorID  string `gorm:"not null;size:64;index:idx_readings_sensor_time,priority:1" json:"sensor_id" validate:"required"`
	Timestamp int64  `gorm:"not null;index:idx_readings_sensor_time,priority:2" json:"timestamp" validate:"required,gt=0"`

	Latitude  float64 `gorm:"not null" json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `gorm:"not null" json:"longitude" validate:"gte=-180,lte=180"`
	Geohash   string  `gorm:"size:12;index" json:"geohash"`

	MoisturePercent   float64 `json:"moisture_percent" validate:"gte=0,lte=100"`
	TiltRateMMPerHour float64 `json:"tilt_rate_mm_per_hour" validate:"gte=0"`
	VibrationCount    float64 `json:"vibration_count" validate:"gte=0"`
	VibrationBaseline float64 `json:"vibration_baseline" validate:"gte=0"`
	RainfallMM24h     float64 `json:"rainfall_mm_24h" validate:"gte=0"`

	PorePressureKPa         *float64 `json:"pore_pressure_kpa,omitempty"`
	SafetyFactor            *float64 `json:"safety_factor,omitempty"`
	CriticalMoisturePercent *float64 `json:"critical_moisture_percent,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// Alert is a persisted landslide warning. UID is the deterministic public
// identifier; Identity ties the alert back to the sensor or cluster that
// produced it so later detections can find it again.
type Alert struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	UID      string `gorm:"uniqueIndex;not null;size:128" json:"alert_id"`
	Identity string `gorm:"not null;size:96;index" json:"identity"`

	DetectionType string    `gorm:"not null;size:16" json:"detection_type"`
	Status        string    `gorm:"not null;size:16;index;default:active" json:"status"`
	RiskLevel     RiskLevel `gorm:"not null;size:8" json:"risk_level"`
	Confidence    float64   `gorm:"not null" json:"confidence"`

	Reasoning         string     `gorm:"type:text" json:"reasoning"`
	TriggerFactors    StringList `gorm:"type:text" json:"trigger_factors"`
	RecommendedAction string     `gorm:"type:text" json:"recommended_action"`
	TimeToFailure     string     `gorm:"size:128" json:"time_to_failure"`
	Narrative         string     `gorm:"type:text" json:"narrative,omitempty"`

	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	GeologicalContext JSONB   `gorm:"type:jsonb" json:"geological_context,omitempty"`

	ClusterSize     int        `json:"cluster_size,omitempty"`
	SensorsAffected StringList `gorm:"type:text" json:"sensors_affected,omitempty"`
	CenterSensorID  string     `gorm:"size:64" json:"center_sensor_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`

	Escalations []AlertEscalation `gorm:"foreignKey:AlertID" json:"escalations,omitempty"`
}

// TableName overrides the table name
func (Alert) TableName() string {
	return "alerts"
}

// IsActive returns true while the alert has not been resolved or expired
func (a *Alert) IsActive() bool {
	return a.Status == AlertStatusActive
}

// EscalationFromNone marks the seed history entry written at creation
const EscalationFromNone = "NONE"

// AlertEscalation is one append-only entry in an alert's escalation
// history. The first entry for every alert records NONE to the initial
// level.
type AlertEscalation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	AlertID   uint      `gorm:"not null;index" json:"alert_id"`
	FromLevel string    `gorm:"not null;size:8" json:"from_level"`
	ToLevel   string    `gorm:"not null;size:8" json:"to_level"`
	Reason    string    `gorm:"type:text" json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName overrides the table name
func (AlertEscalation) TableName() string {
	return "alert_escalations"
}

// HazardZone is a mapped landslide hazard polygon reduced to its
// centroid. Geohash holds the coarse cell of the centroid for bucketed
// lookup.
type HazardZone struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	ZoneID      string  `gorm:"uniqueIndex;not null;size:64" json:"zone_id"`
	Geohash     string  `gorm:"not null;size:12;index" json:"geohash"`
	Latitude    float64 `gorm:"not null" json:"latitude"`
	Longitude   float64 `gorm:"not null" json:"longitude"`
	HazardLevel string  `gorm:"size:32" json:"hazard_level"`
	SoilType    string  `gorm:"size:64" json:"soil_type"`
	SlopeAngle  float64 `json:"slope_angle"`
	LandUse     string  `gorm:"size:64" json:"land_use"`
	District    string  `gorm:"size:64" json:"district"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (HazardZone) TableName() string {
	return "hazard_zones"
}

// DetectionCycle records the outcome of one detection run
type DetectionCycle struct {
	ID              uint       `gorm:"primaryKey" json:"id"`
	CycleID         string     `gorm:"uniqueIndex;not null;size:36" json:"cycle_id"`
	Status          string     `gorm:"not null;size:16" json:"status"`
	SensorsAnalyzed int        `json:"sensors_analyzed"`
	ClustersFound   int        `json:"clusters_found"`
	AlertsCreated   int        `json:"alerts_created"`
	AlertsEscalated int        `json:"alerts_escalated"`
	Skipped         int        `json:"skipped"`
	Errors          StringList `gorm:"type:text" json:"errors,omitempty"`
	ElapsedMs       int64      `json:"elapsed_ms"`
	StartedAt       time.Time  `gorm:"index" json:"started_at"`
	CreatedAt       time.Time  `json:"created_at"`
}

// TableName overrides the table name
func (DetectionCycle) TableName() string {
	return "detection_cycles"
}

// Cycle status values
const (
	CycleStatusCompleted = "completed"
	CycleStatusPartial   = "partial"
	CycleStatusNoData    = "no_data"
	CycleStatusFailed    = "failed"
)

// DetectionSettings is a singleton row holding the tunable parameters of
// the detection loop
type DetectionSettings struct {
	ID uint `gorm:"primaryKey" json:"id"`

	Enabled             bool    `gorm:"default:true" json:"enabled"`
	RiskThreshold       float64 `gorm:"default:0.6" json:"risk_threshold" validate:"gte=0,lte=1"`
	AnalysisWindowHours int     `gorm:"default:24" json:"analysis_window_hours" validate:"gte=1,lte=168"`
	IntervalMinutes     int     `gorm:"default:15" json:"interval_minutes" validate:"gte=1,lte=1440"`
	AlertTTLHours       int     `gorm:"default:720" json:"alert_ttl_hours" validate:"gte=1"`
	NarrativeEnabled    bool    `gorm:"default:true" json:"narrative_enabled"`
	MaxAssessAttempts   int     `gorm:"default:4" json:"max_assess_attempts" validate:"gte=1,lte=10"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (DetectionSettings) TableName() string {
	return "detection_settings"
}

// NewDefaultDetectionSettings returns settings with default values
func NewDefaultDetectionSettings() *DetectionSettings {
	return &DetectionSettings{
		Enabled:             true,
		RiskThreshold:       0.6,
		AnalysisWindowHours: 24,
		IntervalMinutes:     15,
		AlertTTLHours:       720,
		NarrativeEnabled:    true,
		MaxAssessAttempts:   4,
	}
}

// SlackSettings stores Slack notification configuration
type SlackSettings struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	BotToken      string    `gorm:"type:text" json:"bot_token"`
	AlertsChannel string    `gorm:"type:varchar(255)" json:"alerts_channel"`
	Enabled       bool      `gorm:"default:false" json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (SlackSettings) TableName() string {
	return "slack_settings"
}

// IsConfigured returns true if the bot token and channel are set
func (s *SlackSettings) IsConfigured() bool {
	return s.BotToken != "" && s.AlertsChannel != ""
}

// IsActive returns true if Slack is enabled and configured
func (s *SlackSettings) IsActive() bool {
	return s.Enabled && s.IsConfigured()
}

// LLMSettings stores the risk-assessment model configuration
type LLMSettings struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	APIKey    string    `gorm:"type:text" json:"api_key"`
	BaseURL   string    `gorm:"type:varchar(255);default:'https://api.openai.com/v1'" json:"base_url"`
	Model     string    `gorm:"type:varchar(128);default:'gpt-4o-mini'" json:"model"`
	Enabled   bool      `gorm:"default:false" json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName overrides the table name
func (LLMSettings) TableName() string {
	return "llm_settings"
}

// IsActive returns true if the LLM is enabled and an API key is set
func (s *LLMSettings) IsActive() bool {
	return s.Enabled && s.APIKey != ""
}
