package database

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// ErrAlertExists is returned by CreateIfAbsent when another active alert
// for the same identity was committed first.
var ErrAlertExists = errors.New("active alert already exists for identity")

// AlertStore persists alerts and their escalation history
type AlertStore struct {
	db *gorm.DB
}

// NewAlertStore creates an alert store
func NewAlertStore(db *gorm.DB) *AlertStore {
	return &AlertStore{db: db}
}

// FindActive returns the active alert for a detection identity, or nil
// when none exists.
func (s *AlertStore) FindActive(identity string) (*Alert, error) {
	var alert Alert
	err := s.db.Where("identity = ? AND status = ?", identity, AlertStatusActive).
		Order("created_at desc").
		First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active alert for %s: %w", identity, err)
	}
	return &alert, nil
}

// GetByUID returns an alert with its escalation history loaded
func (s *AlertStore) GetByUID(uid string) (*Alert, error) {
	var alert Alert
	err := s.db.Preload("Escalations", func(db *gorm.DB) *gorm.DB {
		return db.Order("alert_escalations.created_at asc, alert_escalations.id asc")
	}).Where("uid = ?", uid).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load alert %s: %w", uid, err)
	}
	return &alert, nil
}

// ListActive returns all active alerts, most severe first
func (s *AlertStore) ListActive() ([]Alert, error) {
	var alerts []Alert
	err := s.db.Where("status = ?", AlertStatusActive).
		Order("created_at desc").
		Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}
	return alerts, nil
}

// ListRecent returns the most recently created alerts regardless of status
func (s *AlertStore) ListRecent(limit int) ([]Alert, error) {
	if limit <= 0 {
		limit = 50
	}
	var alerts []Alert
	err := s.db.Order("created_at desc").Limit(limit).Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	return alerts, nil
}

// CreateIfAbsent inserts a new alert together with its seed escalation
// entry, unless an active alert for the same identity already exists. The
// existence check and the insert run in one transaction so two concurrent
// detections of the same identity cannot both create an alert.
func (s *AlertStore) CreateIfAbsent(alert *Alert) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		err := tx.Model(&Alert{}).
			Where("identity = ? AND status = ?", alert.Identity, AlertStatusActive).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check for existing alert: %w", err)
		}
		if count > 0 {
			return ErrAlertExists
		}

		if alert.Status == "" {
			alert.Status = AlertStatusActive
		}
		if err := tx.Create(alert).Error; err != nil {
			return fmt.Errorf("failed to create alert %s: %w", alert.UID, err)
		}

		seed := AlertEscalation{
			AlertID:   alert.ID,
			FromLevel: EscalationFromNone,
			ToLevel:   string(alert.RiskLevel),
			Reason:    "Initial detection",
		}
		if err := tx.Create(&seed).Error; err != nil {
			return fmt.Errorf("failed to seed escalation history for %s: %w", alert.UID, err)
		}
		return nil
	})
}

// EscalationUpdate carries the fields rewritten on an alert when a new
// assessment supersedes the current one.
type EscalationUpdate struct {
	ToLevel           RiskLevel
	Confidence        float64
	Reasoning         string
	TriggerFactors    StringList
	RecommendedAction string
	TimeToFailure     string
	Narrative         string
	Reason            string
}

// Escalate rewrites the alert's assessment fields and appends an entry to
// its escalation history in one transaction. The alert's level can only
// move up through this path; callers decide when an escalation is due.
func (s *AlertStore) Escalate(alert *Alert, upd EscalationUpdate) error {
	fromLevel := string(alert.RiskLevel)

	err := s.db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"risk_level":         string(upd.ToLevel),
			"confidence":         upd.Confidence,
			"reasoning":          upd.Reasoning,
			"trigger_factors":    upd.TriggerFactors,
			"recommended_action": upd.RecommendedAction,
			"time_to_failure":    upd.TimeToFailure,
		}
		if upd.Narrative != "" {
			updates["narrative"] = upd.Narrative
		}
		if err := tx.Model(&Alert{}).Where("id = ?", alert.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update alert %s: %w", alert.UID, err)
		}

		entry := AlertEscalation{
			AlertID:   alert.ID,
			FromLevel: fromLevel,
			ToLevel:   string(upd.ToLevel),
			Reason:    upd.Reason,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to append escalation for %s: %w", alert.UID, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	alert.RiskLevel = upd.ToLevel
	alert.Confidence = upd.Confidence
	alert.Reasoning = upd.Reasoning
	alert.TriggerFactors = upd.TriggerFactors
	alert.RecommendedAction = upd.RecommendedAction
	alert.TimeToFailure = upd.TimeToFailure
	if upd.Narrative != "" {
		alert.Narrative = upd.Narrative
	}
	return nil
}

// ExpireStale flips active alerts whose TTL has passed to expired.
// Returns the number of alerts expired.
func (s *AlertStore) ExpireStale(now time.Time) (int64, error) {
	result := s.db.Model(&Alert{}).
		Where("status = ? AND expires_at < ?", AlertStatusActive, now).
		Update("status", AlertStatusExpired)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire alerts: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Resolve marks an alert resolved
func (s *AlertStore) Resolve(uid string) error {
	result := s.db.Model(&Alert{}).
		Where("uid = ? AND status = ?", uid, AlertStatusActive).
		Update("status", AlertStatusResolved)
	if result.Error != nil {
		return fmt.Errorf("failed to resolve alert %s: %w", uid, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("no active alert with uid %s", uid)
	}
	return nil
}

// Escalations returns the full escalation history of an alert, oldest
// entry first.
func (s *AlertStore) Escalations(alertID uint) ([]AlertEscalation, error) {
	var entries []AlertEscalation
	err := s.db.Where("alert_id = ?", alertID).
		Order("created_at asc, id asc").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load escalations for alert %d: %w", alertID, err)
	}
	return entries, nil
}
