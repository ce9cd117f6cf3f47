package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/notify"
)

// EscalationConfidenceDelta is the margin a same-level assessment must
// exceed the current confidence by before it counts as an escalation.
// Below it, repeat detections leave the alert untouched.
const EscalationConfidenceDelta = 0.15

// Lifecycle actions reported by Process
const (
	ActionCreated   = "created"
	ActionEscalated = "escalated"
	ActionUnchanged = "unchanged"
)

// Narrator produces the public warning text attached to Orange and Red
// alerts
type Narrator interface {
	Narrative(ctx context.Context, alert *database.Alert, geoCtx *GeoContext) (string, error)
}

// Outcome reports what the lifecycle did with one detection
type Outcome struct {
	Action string
	Alert  *database.Alert
}

// ProcessOptions carries the per-cycle tunables into the lifecycle
type ProcessOptions struct {
	TTL              time.Duration
	NarrativeEnabled bool
}

// LifecycleService owns alert creation, deduplication and escalation.
// An alert's level only ever moves up; de-escalation happens through
// expiry, never in place.
type LifecycleService struct {
	store    *database.AlertStore
	notifier notify.Notifier
	narrator Narrator
}

// NewLifecycleService creates a lifecycle service
func NewLifecycleService(store *database.AlertStore, notifier notify.Notifier, narrator Narrator) *LifecycleService {
	return &LifecycleService{
		store:    store,
		notifier: notifier,
		narrator: narrator,
	}
}

// AlertUID builds the deterministic public identifier of an alert
func AlertUID(identity string, at time.Time) string {
	return fmt.Sprintf("ALERT_%s_%s", at.UTC().Format("20060102_150405"), identity)
}

// ShouldEscalate decides whether a new assessment supersedes the active
// alert: either a strictly higher level, or the same level with
// confidence grown past the delta.
func ShouldEscalate(existing *database.Alert, next *RiskAssessment) bool {
	if next.RiskLevel.Above(existing.RiskLevel) {
		return true
	}
	return next.RiskLevel == existing.RiskLevel &&
		next.Confidence-existing.Confidence > EscalationConfidenceDelta
}

// Process routes one assessed detection through the lifecycle: create a
// new alert, escalate the active one, or leave it alone.
func (s *LifecycleService) Process(ctx context.Context, det *Detection, assessment *RiskAssessment, geoCtx *GeoContext, opts ProcessOptions) (*Outcome, error) {
	identity := det.Identity()

	existing, err := s.store.FindActive(identity)
	if err != nil {
		return nil, err
	}

	if existing == nil {
		return s.create(ctx, det, assessment, geoCtx, opts)
	}
	if ShouldEscalate(existing, assessment) {
		return s.escalate(ctx, existing, assessment, geoCtx, opts)
	}
	return &Outcome{Action: ActionUnchanged, Alert: existing}, nil
}

func (s *LifecycleService) create(ctx context.Context, det *Detection, assessment *RiskAssessment, geoCtx *GeoContext, opts ProcessOptions) (*Outcome, error) {
	now := time.Now().UTC()
	lat, lon := det.Location()
	identity := det.Identity()

	alert := &database.Alert{
		UID:               AlertUID(identity, now),
		Identity:          identity,
		DetectionType:     det.Type,
		Status:            database.AlertStatusActive,
		RiskLevel:         assessment.RiskLevel,
		Confidence:        assessment.Confidence,
		Reasoning:         assessment.Reasoning,
		TriggerFactors:    assessment.TriggerFactors,
		RecommendedAction: assessment.RecommendedAction,
		TimeToFailure:     assessment.TimeToFailure,
		Latitude:          lat,
		Longitude:         lon,
		GeologicalContext: geoCtx.ToJSONB(),
		ExpiresAt:         now.Add(opts.TTL),
	}
	if det.Cluster != nil {
		alert.ClusterSize = det.Cluster.Size()
		alert.SensorsAffected = det.Cluster.Members
		alert.CenterSensorID = det.Cluster.CenterSensorID
	} else {
		alert.SensorsAffected = database.StringList{det.Assessment.SensorID}
		alert.CenterSensorID = det.Assessment.SensorID
	}

	alert.Narrative = s.narrativeFor(ctx, alert, geoCtx, opts)

	if err := s.store.CreateIfAbsent(alert); err != nil {
		if errors.Is(err, database.ErrAlertExists) {
			// A concurrent cycle won the race. The alert it created is
			// authoritative; treat ours as a duplicate detection.
			log.Printf("Alert for %s created concurrently, skipping duplicate", identity)
			winner, ferr := s.store.FindActive(identity)
			if ferr != nil {
				return nil, ferr
			}
			return &Outcome{Action: ActionUnchanged, Alert: winner}, nil
		}
		return nil, err
	}

	log.Printf("Created %s alert %s (%s, confidence %.2f)",
		alert.RiskLevel, alert.UID, alert.DetectionType, alert.Confidence)
	s.notifier.Notify(notify.EventCreated, alert)
	return &Outcome{Action: ActionCreated, Alert: alert}, nil
}

func (s *LifecycleService) escalate(ctx context.Context, existing *database.Alert, assessment *RiskAssessment, geoCtx *GeoContext, opts ProcessOptions) (*Outcome, error) {
	var reason string
	if assessment.RiskLevel.Above(existing.RiskLevel) {
		reason = fmt.Sprintf("Risk level increased from %s to %s",
			existing.RiskLevel, assessment.RiskLevel)
	} else {
		reason = fmt.Sprintf("Confidence increased from %.2f to %.2f at level %s",
			existing.Confidence, assessment.Confidence, assessment.RiskLevel)
	}

	upd := database.EscalationUpdate{
		ToLevel:           assessment.RiskLevel,
		Confidence:        assessment.Confidence,
		Reasoning:         assessment.Reasoning,
		TriggerFactors:    assessment.TriggerFactors,
		RecommendedAction: assessment.RecommendedAction,
		TimeToFailure:     assessment.TimeToFailure,
		Reason:            reason,
	}

	// Rebuild the narrative against the new assessment before the write
	// so the stored alert stays self-consistent.
	preview := *existing
	preview.RiskLevel = assessment.RiskLevel
	preview.Confidence = assessment.Confidence
	preview.Reasoning = assessment.Reasoning
	preview.RecommendedAction = assessment.RecommendedAction
	preview.TimeToFailure = assessment.TimeToFailure
	upd.Narrative = s.narrativeFor(ctx, &preview, geoCtx, opts)

	if err := s.store.Escalate(existing, upd); err != nil {
		return nil, err
	}

	log.Printf("Escalated alert %s: %s", existing.UID, reason)
	s.notifier.Notify(notify.EventEscalated, existing)
	return &Outcome{Action: ActionEscalated, Alert: existing}, nil
}

// narrativeFor generates the public warning for Orange and Red alerts.
// A generation failure drops the narrative, never the alert.
func (s *LifecycleService) narrativeFor(ctx context.Context, alert *database.Alert, geoCtx *GeoContext, opts ProcessOptions) string {
	if !opts.NarrativeEnabled || s.narrator == nil {
		return ""
	}
	if !alert.RiskLevel.Above(database.RiskLevelYellow) {
		return ""
	}
	narrative, err := s.narrator.Narrative(ctx, alert, geoCtx)
	if err != nil {
		log.Printf("Warning: narrative generation failed for %s: %v", alert.UID, err)
		return ""
	}
	return narrative
}
