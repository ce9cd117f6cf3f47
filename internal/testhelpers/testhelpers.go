// Package testhelpers provides reusable testing utilities.
//
// This package contains:
// - An in-memory database setup with all models migrated
// - Fluent builders for sensor readings and alerts
// - HTTP test helpers (requests, response assertions)
// - Assertion helpers
package testhelpers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/openlews/openlews/internal/database"
)

// ========================================
// Database Test Helpers
// ========================================

// SetupTestDB creates an in-memory SQLite database with all models
// migrated and default settings rows seeded
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&database.SlackSettings{},
		&database.LLMSettings{},
		&database.DetectionSettings{},
		&database.SensorReading{},
		&database.HazardZone{},
		&database.Alert{},
		&database.AlertEscalation{},
		&database.DetectionCycle{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	// Settings lookups go through the package-level accessors, which use
	// the global handle.
	database.DB = db
	if err := db.Create(&database.LLMSettings{Enabled: false}).Error; err != nil {
		t.Fatalf("failed to seed LLM settings: %v", err)
	}
	if err := db.Create(&database.SlackSettings{Enabled: false}).Error; err != nil {
		t.Fatalf("failed to seed Slack settings: %v", err)
	}

	return db
}

// ========================================
// Sample Data Builders
// ========================================

// ReadingBuilder builds SensorReading instances for testing. Defaults
// describe a quiet, stable slope.
type ReadingBuilder struct {
	reading database.SensorReading
}

// NewReadingBuilder creates a reading builder with quiet-slope defaults
func NewReadingBuilder(sensorID string) *ReadingBuilder {
	pore := -8.0
	safety := 1.8
	critical := 40.0
	return &ReadingBuilder{
		reading: database.SensorReading{
			SensorID:                sensorID,
			Timestamp:               time.Now().Unix(),
			Latitude:                7.1667,
			Longitude:               80.2833,
			MoisturePercent:         20.0,
			TiltRateMMPerHour:       0.2,
			VibrationCount:          5.0,
			VibrationBaseline:       5.0,
			RainfallMM24h:           10.0,
			PorePressureKPa:         &pore,
			SafetyFactor:            &safety,
			CriticalMoisturePercent: &critical,
		},
	}
}

// At sets the location
func (b *ReadingBuilder) At(lat, lon float64) *ReadingBuilder {
	b.reading.Latitude = lat
	b.reading.Longitude = lon
	return b
}

// AtTime sets the timestamp
func (b *ReadingBuilder) AtTime(ts int64) *ReadingBuilder {
	b.reading.Timestamp = ts
	return b
}

// WithMoisture sets the soil moisture percentage
func (b *ReadingBuilder) WithMoisture(pct float64) *ReadingBuilder {
	b.reading.MoisturePercent = pct
	return b
}

// WithTiltRate sets the tilt rate in mm per hour
func (b *ReadingBuilder) WithTiltRate(rate float64) *ReadingBuilder {
	b.reading.TiltRateMMPerHour = rate
	return b
}

// WithVibration sets the vibration count and baseline
func (b *ReadingBuilder) WithVibration(count, baseline float64) *ReadingBuilder {
	b.reading.VibrationCount = count
	b.reading.VibrationBaseline = baseline
	return b
}

// WithRainfall sets the 24h rainfall in mm
func (b *ReadingBuilder) WithRainfall(mm float64) *ReadingBuilder {
	b.reading.RainfallMM24h = mm
	return b
}

// WithPorePressure sets the pore pressure in kPa
func (b *ReadingBuilder) WithPorePressure(kpa float64) *ReadingBuilder {
	b.reading.PorePressureKPa = &kpa
	return b
}

// WithSafetyFactor sets the geotechnical factor of safety
func (b *ReadingBuilder) WithSafetyFactor(fos float64) *ReadingBuilder {
	b.reading.SafetyFactor = &fos
	return b
}

// Failing puts every factor in its worst band
func (b *ReadingBuilder) Failing() *ReadingBuilder {
	return b.WithMoisture(60.0).
		WithTiltRate(12.0).
		WithVibration(60.0, 5.0).
		WithRainfall(250.0).
		WithPorePressure(15.0).
		WithSafetyFactor(0.9)
}

// Build returns the constructed reading
func (b *ReadingBuilder) Build() database.SensorReading {
	return b.reading
}

// AlertBuilder builds Alert instances for testing
type AlertBuilder struct {
	alert database.Alert
}

// NewAlertBuilder creates an alert builder with active Yellow defaults
func NewAlertBuilder(identity string) *AlertBuilder {
	now := time.Now().UTC()
	return &AlertBuilder{
		alert: database.Alert{
			UID:               "ALERT_" + now.Format("20060102_150405") + "_" + identity,
			Identity:          identity,
			DetectionType:     database.DetectionTypeIndividual,
			Status:            database.AlertStatusActive,
			RiskLevel:         database.RiskLevelYellow,
			Confidence:        0.5,
			Reasoning:         "test alert",
			RecommendedAction: "monitor",
			Latitude:          7.1667,
			Longitude:         80.2833,
			ExpiresAt:         now.Add(720 * time.Hour),
		},
	}
}

// WithLevel sets the risk level
func (b *AlertBuilder) WithLevel(level database.RiskLevel) *AlertBuilder {
	b.alert.RiskLevel = level
	return b
}

// WithConfidence sets the confidence
func (b *AlertBuilder) WithConfidence(c float64) *AlertBuilder {
	b.alert.Confidence = c
	return b
}

// WithStatus sets the status
func (b *AlertBuilder) WithStatus(status string) *AlertBuilder {
	b.alert.Status = status
	return b
}

// WithUID sets the public identifier
func (b *AlertBuilder) WithUID(uid string) *AlertBuilder {
	b.alert.UID = uid
	return b
}

// ExpiringAt sets the expiry time
func (b *AlertBuilder) ExpiringAt(at time.Time) *AlertBuilder {
	b.alert.ExpiresAt = at
	return b
}

// Build returns the constructed alert
func (b *AlertBuilder) Build() database.Alert {
	return b.alert
}

// ========================================
// HTTP Test Helpers
// ========================================

// HTTPTestContext holds components for HTTP handler testing
type HTTPTestContext struct {
	T        *testing.T
	Recorder *httptest.ResponseRecorder
	Request  *http.Request
}

// NewHTTPTestContext creates a new HTTP test context
func NewHTTPTestContext(t *testing.T, method, path string, body io.Reader) *HTTPTestContext {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	return &HTTPTestContext{
		T:        t,
		Recorder: httptest.NewRecorder(),
		Request:  req,
	}
}

// WithHeader adds a header to the request
func (ctx *HTTPTestContext) WithHeader(key, value string) *HTTPTestContext {
	ctx.Request.Header.Set(key, value)
	return ctx
}

// WithJSONBody sets JSON body on the request
func (ctx *HTTPTestContext) WithJSONBody(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	body, err := json.Marshal(v)
	if err != nil {
		ctx.T.Fatalf("failed to marshal JSON body: %v", err)
	}
	ctx.Request = httptest.NewRequest(ctx.Request.Method, ctx.Request.URL.String(), bytes.NewReader(body))
	ctx.Request.Header.Set("Content-Type", "application/json")
	return ctx
}

// WithBearerToken adds Authorization Bearer header
func (ctx *HTTPTestContext) WithBearerToken(token string) *HTTPTestContext {
	return ctx.WithHeader("Authorization", "Bearer "+token)
}

// Execute runs the handler and returns the response
func (ctx *HTTPTestContext) Execute(handler http.Handler) *HTTPTestContext {
	handler.ServeHTTP(ctx.Recorder, ctx.Request)
	return ctx
}

// ExecuteFunc runs the handler func and returns the response
func (ctx *HTTPTestContext) ExecuteFunc(handler http.HandlerFunc) *HTTPTestContext {
	handler(ctx.Recorder, ctx.Request)
	return ctx
}

// AssertStatus checks the response status code
func (ctx *HTTPTestContext) AssertStatus(expected int) *HTTPTestContext {
	ctx.T.Helper()
	if ctx.Recorder.Code != expected {
		ctx.T.Errorf("expected status %d, got %d. Body: %s", expected, ctx.Recorder.Code, ctx.Recorder.Body.String())
	}
	return ctx
}

// AssertBodyContains checks if response body contains substring
func (ctx *HTTPTestContext) AssertBodyContains(substr string) *HTTPTestContext {
	ctx.T.Helper()
	body := ctx.Recorder.Body.String()
	if !containsString(body, substr) {
		ctx.T.Errorf("expected body to contain %q, got: %s", substr, body)
	}
	return ctx
}

// DecodeJSON decodes response body as JSON
func (ctx *HTTPTestContext) DecodeJSON(v interface{}) *HTTPTestContext {
	ctx.T.Helper()
	if err := json.NewDecoder(ctx.Recorder.Body).Decode(v); err != nil {
		ctx.T.Fatalf("failed to decode JSON response: %v", err)
	}
	return ctx
}

// ========================================
// Assertion Helpers
// ========================================

// AssertEqual checks equality with a helpful error message
func AssertEqual(t *testing.T, expected, actual interface{}, msg string) {
	t.Helper()
	if expected != actual {
		t.Errorf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// AssertError checks that an error occurred
func AssertError(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Errorf("%s: expected error, got nil", msg)
	}
}

// AssertNoError checks that no error occurred
func AssertNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Errorf("%s: unexpected error: %v", msg, err)
	}
}

// AssertContains checks if string contains substring
func AssertContains(t *testing.T, s, substr string, msg string) {
	t.Helper()
	if !containsString(s, substr) {
		t.Errorf("%s: expected %q to contain %q", msg, s, substr)
	}
}

// ========================================
// Internal helpers
// ========================================

func containsString(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(substr) == 0 ||
		findSubstring(s, substr))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
