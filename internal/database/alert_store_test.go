package database

import (
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}

	err = db.AutoMigrate(
		&SlackSettings{},
		&LLMSettings{},
		&DetectionSettings{},
		&SensorReading{},
		&HazardZone{},
		&Alert{},
		&AlertEscalation{},
		&DetectionCycle{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func testAlert(identity string, level RiskLevel, confidence float64) *Alert {
	now := time.Now().UTC()
	return &Alert{
		UID:               "ALERT_" + now.Format("20060102_150405") + "_" + identity,
		Identity:          identity,
		DetectionType:     DetectionTypeIndividual,
		Status:            AlertStatusActive,
		RiskLevel:         level,
		Confidence:        confidence,
		Reasoning:         "test",
		RecommendedAction: "monitor",
		ExpiresAt:         now.Add(720 * time.Hour),
	}
}

func TestCreateIfAbsent_SeedsEscalationHistory(t *testing.T) {
	store := NewAlertStore(setupTestDB(t))

	alert := testAlert("SENSOR-1", RiskLevelOrange, 0.7)
	if err := store.CreateIfAbsent(alert); err != nil {
		t.Fatalf("CreateIfAbsent failed: %v", err)
	}

	entries, err := store.Escalations(alert.ID)
	if err != nil {
		t.Fatalf("Escalations failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 seed entry, got %d", len(entries))
	}
	if entries[0].FromLevel != EscalationFromNone || entries[0].ToLevel != "Orange" {
		t.Errorf("seed entry = %s -> %s, want NONE -> Orange",
			entries[0].FromLevel, entries[0].ToLevel)
	}
}

func TestCreateIfAbsent_RejectsDuplicateIdentity(t *testing.T) {
	store := NewAlertStore(setupTestDB(t))

	if err := store.CreateIfAbsent(testAlert("SENSOR-1", RiskLevelYellow, 0.5)); err != nil {
		t.Fatalf("first create failed: %v", err)
	}

	dup := testAlert("SENSOR-1", RiskLevelRed, 0.9)
	dup.UID = dup.UID + "_later"
	err := store.CreateIfAbsent(dup)
	if !errors.Is(err, ErrAlertExists) {
		t.Errorf("expected ErrAlertExists, got %v", err)
	}

	// Only the first alert survives.
	active, err := store.ListActive()
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(active) != 1 {
		t.Errorf("expected 1 active alert, got %d", len(active))
	}
}

func TestCreateIfAbsent_AllowsNewAlertAfterExpiry(t *testing.T) {
	db := setupTestDB(t)
	store := NewAlertStore(db)

	old := testAlert("SENSOR-1", RiskLevelYellow, 0.5)
	old.Status = AlertStatusExpired
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("failed to insert expired alert: %v", err)
	}

	fresh := testAlert("SENSOR-1", RiskLevelOrange, 0.7)
	fresh.UID = fresh.UID + "_fresh"
	if err := store.CreateIfAbsent(fresh); err != nil {
		t.Errorf("expired alert must not block a new one: %v", err)
	}
}

func TestFindActive(t *testing.T) {
	store := NewAlertStore(setupTestDB(t))

	got, err := store.FindActive("SENSOR-1")
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for unknown identity, got %+v", got)
	}

	alert := testAlert("SENSOR-1", RiskLevelYellow, 0.5)
	if err := store.CreateIfAbsent(alert); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err = store.FindActive("SENSOR-1")
	if err != nil {
		t.Fatalf("FindActive failed: %v", err)
	}
	if got == nil || got.UID != alert.UID {
		t.Errorf("expected alert %s, got %+v", alert.UID, got)
	}
}

func TestEscalate_UpdatesAlertAndAppendsHistory(t *testing.T) {
	store := NewAlertStore(setupTestDB(t))

	alert := testAlert("SENSOR-1", RiskLevelYellow, 0.5)
	if err := store.CreateIfAbsent(alert); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := store.Escalate(alert, EscalationUpdate{
		ToLevel:           RiskLevelRed,
		Confidence:        0.92,
		Reasoning:         "rapid acceleration",
		TriggerFactors:    StringList{"tilt", "rainfall"},
		RecommendedAction: "evacuate",
		TimeToFailure:     "6-12 hours",
		Narrative:         "warning text",
		Reason:            "Risk level increased from Yellow to Red",
	})
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}

	if alert.RiskLevel != RiskLevelRed || alert.Confidence != 0.92 {
		t.Errorf("in-memory alert not updated: %s %.2f", alert.RiskLevel, alert.Confidence)
	}

	stored, err := store.GetByUID(alert.UID)
	if err != nil {
		t.Fatalf("GetByUID failed: %v", err)
	}
	if stored.RiskLevel != RiskLevelRed {
		t.Errorf("stored level = %s, want Red", stored.RiskLevel)
	}
	if stored.Narrative != "warning text" {
		t.Errorf("narrative not stored: %q", stored.Narrative)
	}
	if len(stored.Escalations) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(stored.Escalations))
	}
	last := stored.Escalations[1]
	if last.FromLevel != "Yellow" || last.ToLevel != "Red" {
		t.Errorf("history entry = %s -> %s, want Yellow -> Red", last.FromLevel, last.ToLevel)
	}
}

func TestEscalate_KeepsNarrativeWhenNewOneEmpty(t *testing.T) {
	store := NewAlertStore(setupTestDB(t))

	alert := testAlert("SENSOR-1", RiskLevelOrange, 0.6)
	alert.Narrative = "original warning"
	if err := store.CreateIfAbsent(alert); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	err := store.Escalate(alert, EscalationUpdate{
		ToLevel:           RiskLevelRed,
		Confidence:        0.9,
		Reasoning:         "worse",
		RecommendedAction: "evacuate",
		Reason:            "Risk level increased from Orange to Red",
	})
	if err != nil {
		t.Fatalf("Escalate failed: %v", err)
	}

	stored, _ := store.GetByUID(alert.UID)
	if stored.Narrative != "original warning" {
		t.Errorf("empty narrative must not erase the stored one, got %q", stored.Narrative)
	}
}

func TestExpireStale(t *testing.T) {
	db := setupTestDB(t)
	store := NewAlertStore(db)

	stale := testAlert("SENSOR-1", RiskLevelYellow, 0.5)
	stale.ExpiresAt = time.Now().UTC().Add(-time.Hour)
	fresh := testAlert("SENSOR-2", RiskLevelYellow, 0.5)
	fresh.UID = fresh.UID + "_2"
	if err := db.Create(stale).Error; err != nil {
		t.Fatal(err)
	}
	if err := db.Create(fresh).Error; err != nil {
		t.Fatal(err)
	}

	n, err := store.ExpireStale(time.Now().UTC())
	if err != nil {
		t.Fatalf("ExpireStale failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 alert expired, got %d", n)
	}

	got, _ := store.FindActive("SENSOR-1")
	if got != nil {
		t.Errorf("stale alert should no longer be active")
	}
	got, _ = store.FindActive("SENSOR-2")
	if got == nil {
		t.Errorf("fresh alert should stay active")
	}
}

func TestGetOrCreateDetectionSettings_Singleton(t *testing.T) {
	db := setupTestDB(t)

	first, err := GetOrCreateDetectionSettings(db)
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if first.RiskThreshold != 0.6 || first.IntervalMinutes != 15 {
		t.Errorf("unexpected defaults: %+v", first)
	}

	first.RiskThreshold = 0.7
	if err := UpdateDetectionSettings(db, first); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	second, err := GetOrCreateDetectionSettings(db)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected singleton row, got ids %d and %d", first.ID, second.ID)
	}
	if second.RiskThreshold != 0.7 {
		t.Errorf("update not persisted, threshold = %f", second.RiskThreshold)
	}
}
