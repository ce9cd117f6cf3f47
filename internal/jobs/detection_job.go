package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/detection"
	"github.com/openlews/openlews/internal/observability"
	"github.com/openlews/openlews/internal/services"
)

// maxCycleErrors bounds the error list carried in a cycle summary
const maxCycleErrors = 20

// DetectionJob periodically analyzes the sensor fleet and routes the
// findings through assessment and the alert lifecycle.
type DetectionJob struct {
	db        *gorm.DB
	telemetry *database.TelemetryStore
	alerts    *database.AlertStore
	contexts  *services.ContextService
	assessor  *services.Assessor
	lifecycle *services.LifecycleService
	metrics   *observability.Metrics
}

// NewDetectionJob creates a detection job
func NewDetectionJob(
	db *gorm.DB,
	telemetry *database.TelemetryStore,
	alerts *database.AlertStore,
	contexts *services.ContextService,
	assessor *services.Assessor,
	lifecycle *services.LifecycleService,
	metrics *observability.Metrics,
) *DetectionJob {
	return &DetectionJob{
		db:        db,
		telemetry: telemetry,
		alerts:    alerts,
		contexts:  contexts,
		assessor:  assessor,
		lifecycle: lifecycle,
		metrics:   metrics,
	}
}

// CycleSummary reports the outcome of one detection cycle
type CycleSummary struct {
	CycleID         string
	Status          string
	SensorsAnalyzed int
	ClustersFound   int
	AlertsCreated   int
	AlertsEscalated int
	Skipped         int
	Errors          []string
	Elapsed         time.Duration
	StartedAt       time.Time
}

func (s *CycleSummary) recordError(err error) {
	if len(s.Errors) < maxCycleErrors {
		s.Errors = append(s.Errors, err.Error())
	}
	if len(s.Errors) == maxCycleErrors {
		s.Errors = append(s.Errors, "further errors truncated")
	}
}

// Run executes one detection cycle. Individual detection failures are
// absorbed into the summary; only failures that prevent the cycle from
// running at all are returned as an error. A nil summary means detection
// is disabled.
func (j *DetectionJob) Run(ctx context.Context) (*CycleSummary, error) {
	settings, err := database.GetOrCreateDetectionSettings(j.db)
	if err != nil {
		return nil, fmt.Errorf("failed to load detection settings: %w", err)
	}
	if !settings.Enabled {
		log.Println("Detection is disabled, skipping cycle")
		return nil, nil
	}

	summary := &CycleSummary{
		CycleID:   uuid.New().String(),
		Status:    database.CycleStatusCompleted,
		StartedAt: time.Now().UTC(),
	}
	defer func() {
		summary.Elapsed = time.Since(summary.StartedAt)
		j.observe(summary)
	}()

	end := time.Now().UTC().Unix()
	start := end - int64(settings.AnalysisWindowHours)*3600
	readings, err := j.telemetry.LatestWindow(start, end)
	if err != nil {
		summary.Status = database.CycleStatusFailed
		summary.recordError(err)
		j.persist(summary)
		return summary, err
	}
	if len(readings) == 0 {
		summary.Status = database.CycleStatusNoData
		j.persist(summary)
		return summary, nil
	}

	analysis := detection.Analyze(readings)
	summary.SensorsAnalyzed = len(analysis.Assessments)
	summary.ClustersFound = len(analysis.Clusters)

	opts := services.ProcessOptions{
		TTL:              time.Duration(settings.AlertTTLHours) * time.Hour,
		NarrativeEnabled: settings.NarrativeEnabled,
	}

	// Clusters take precedence: a sensor claimed by a cluster never
	// raises its own individual alert in the same cycle.
	claimed := make(map[string]bool)
	var detections []*services.Detection
	for i := range analysis.Clusters {
		c := &analysis.Clusters[i]
		for _, m := range c.Members {
			claimed[m] = true
		}
		if c.AvgComposite > settings.RiskThreshold {
			detections = append(detections, services.ClusterDetection(c, analysis.Assessments[c.CenterSensorID]))
		}
	}
	for id, a := range analysis.Assessments {
		if claimed[id] || a.CompositeRisk <= settings.RiskThreshold {
			continue
		}
		detections = append(detections, services.IndividualDetection(a))
	}

	for _, det := range detections {
		select {
		case <-ctx.Done():
			summary.Status = database.CycleStatusPartial
			summary.recordError(fmt.Errorf("cycle deadline reached: %w", ctx.Err()))
			j.persist(summary)
			return summary, nil
		default:
		}

		if err := j.processDetection(ctx, det, opts, settings.MaxAssessAttempts, summary); err != nil {
			summary.Skipped++
			summary.recordError(err)
			log.Printf("Warning: detection %s skipped: %v", det.Identity(), err)
		}
	}

	j.persist(summary)
	log.Printf("Detection cycle %s: %d sensors, %d clusters, %d created, %d escalated, %d skipped (%.1fs)",
		summary.CycleID, summary.SensorsAnalyzed, summary.ClustersFound,
		summary.AlertsCreated, summary.AlertsEscalated, summary.Skipped,
		time.Since(summary.StartedAt).Seconds())
	return summary, nil
}

// processDetection runs assessment and lifecycle for one detection.
// Failures here cost the detection, not the cycle.
func (j *DetectionJob) processDetection(ctx context.Context, det *services.Detection, opts services.ProcessOptions, maxAttempts int, summary *CycleSummary) error {
	lat, lon := det.Location()
	geoCtx := j.contexts.Nearest(lat, lon)

	assessment, err := j.assessor.Assess(ctx, det, geoCtx, maxAttempts)
	if err != nil {
		return err
	}

	outcome, err := j.lifecycle.Process(ctx, det, assessment, geoCtx, opts)
	if err != nil {
		return err
	}

	switch outcome.Action {
	case services.ActionCreated:
		summary.AlertsCreated++
	case services.ActionEscalated:
		summary.AlertsEscalated++
	}
	return nil
}

// persist records the cycle for the ops API
func (j *DetectionJob) persist(summary *CycleSummary) {
	cycle := &database.DetectionCycle{
		CycleID:         summary.CycleID,
		Status:          summary.Status,
		SensorsAnalyzed: summary.SensorsAnalyzed,
		ClustersFound:   summary.ClustersFound,
		AlertsCreated:   summary.AlertsCreated,
		AlertsEscalated: summary.AlertsEscalated,
		Skipped:         summary.Skipped,
		Errors:          database.StringList(summary.Errors),
		ElapsedMs:       time.Since(summary.StartedAt).Milliseconds(),
		StartedAt:       summary.StartedAt,
	}
	if err := database.SaveCycle(j.db, cycle); err != nil {
		log.Printf("Warning: failed to persist cycle summary: %v", err)
	}
}

// observe pushes the cycle outcome into the metrics
func (j *DetectionJob) observe(summary *CycleSummary) {
	if j.metrics == nil {
		return
	}
	j.metrics.CyclesTotal.WithLabelValues(summary.Status).Inc()
	j.metrics.AlertsCreated.Add(float64(summary.AlertsCreated))
	j.metrics.AlertsEscalated.Add(float64(summary.AlertsEscalated))
	j.metrics.DetectionsSkipped.Add(float64(summary.Skipped))
	j.metrics.SensorsAnalyzed.Set(float64(summary.SensorsAnalyzed))
	j.metrics.CycleDuration.Observe(summary.Elapsed.Seconds())

	if active, err := j.alerts.ListActive(); err == nil {
		j.metrics.ActiveAlerts.Set(float64(len(active)))
	}
}

// Start begins periodic detection cycles
func (j *DetectionJob) Start(stop <-chan struct{}) {
	settings, err := database.GetOrCreateDetectionSettings(j.db)
	if err != nil {
		log.Printf("Failed to get detection settings, using defaults: %v", err)
		settings = database.NewDefaultDetectionSettings()
	}

	interval := time.Duration(settings.IntervalMinutes) * time.Minute
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// Each cycle gets the tick interval as its deadline so a
			// stalled cycle cannot pile up behind the next one.
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			if _, err := j.Run(ctx); err != nil {
				log.Printf("Detection cycle error: %v", err)
			}
			cancel()

			newSettings, err := database.GetOrCreateDetectionSettings(j.db)
			if err == nil && newSettings.IntervalMinutes != settings.IntervalMinutes {
				settings = newSettings
				interval = time.Duration(settings.IntervalMinutes) * time.Minute
				ticker.Reset(interval)
				log.Printf("Detection interval updated to %d minutes", settings.IntervalMinutes)
			}

		case <-stop:
			log.Println("Detection job stopped")
			return
		}
	}
}
