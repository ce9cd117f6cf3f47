package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/openlews/openlews/internal/api"
	"github.com/openlews/openlews/internal/database"
	"github.com/openlews/openlews/internal/notify"
)

// APIHandler serves the operations API used by the monitoring dashboard:
// alert queries, detection cycle status, tunable settings and telemetry
// ingestion.
type APIHandler struct {
	alerts         *database.AlertStore
	telemetry      *database.TelemetryStore
	hub            *notify.Hub
	metricsHandler http.Handler
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(alerts *database.AlertStore, telemetry *database.TelemetryStore, hub *notify.Hub, metricsHandler http.Handler) *APIHandler {
	return &APIHandler{
		alerts:         alerts,
		telemetry:      telemetry,
		hub:            hub,
		metricsHandler: metricsHandler,
	}
}

// SetupRoutes sets up all API routes
func (h *APIHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", h.handleHealth)

	// Alerts
	mux.HandleFunc("GET /api/alerts", h.handleListAlerts)
	mux.HandleFunc("GET /api/alerts/{uid}", h.handleGetAlert)
	mux.HandleFunc("POST /api/alerts/{uid}/resolve", h.handleResolveAlert)

	// Detection cycles
	mux.HandleFunc("GET /api/cycles/latest", h.handleLatestCycle)

	// Detection settings
	mux.HandleFunc("/api/settings", h.handleSettings)

	// Telemetry ingestion
	mux.HandleFunc("POST /api/readings", h.handleIngestReading)

	// Live alert feed
	if h.hub != nil {
		mux.HandleFunc("/ws/alerts", h.hub.ServeWS)
	}

	if h.metricsHandler != nil {
		mux.Handle("/metrics", h.metricsHandler)
	}
}

// handleHealth handles GET /health
func (h *APIHandler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	api.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": "1.0.0",
	})
}

// handleListAlerts handles GET /api/alerts.
// ?status=active (default) returns open alerts; ?status=recent returns the
// latest alerts regardless of status, capped by ?limit.
func (h *APIHandler) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var (
		alerts []database.Alert
		err    error
	)

	switch r.URL.Query().Get("status") {
	case "", "active":
		alerts, err = h.alerts.ListActive()
	case "recent":
		alerts, err = h.alerts.ListRecent(api.ParseLimit(r, 50, 200))
	default:
		api.RespondError(w, http.StatusBadRequest, "status must be 'active' or 'recent'")
		return
	}
	if err != nil {
		log.Printf("APIHandler: Failed to list alerts: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to list alerts")
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// handleGetAlert handles GET /api/alerts/{uid} including escalation history
func (h *APIHandler) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")

	alert, err := h.alerts.GetByUID(uid)
	if err != nil {
		log.Printf("APIHandler: Failed to load alert %s: %v", uid, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load alert")
		return
	}
	if alert == nil {
		api.RespondError(w, http.StatusNotFound, "Alert not found")
		return
	}

	api.RespondJSON(w, http.StatusOK, alert)
}

// handleResolveAlert handles POST /api/alerts/{uid}/resolve
func (h *APIHandler) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	uid := r.PathValue("uid")

	if err := h.alerts.Resolve(uid); err != nil {
		api.RespondError(w, http.StatusNotFound, "No active alert with that ID")
		return
	}

	log.Printf("APIHandler: Alert %s resolved by operator", uid)

	alert, err := h.alerts.GetByUID(uid)
	if err != nil || alert == nil {
		api.RespondJSON(w, http.StatusOK, map[string]string{"alert_id": uid, "status": database.AlertStatusResolved})
		return
	}
	api.RespondJSON(w, http.StatusOK, alert)
}

// handleLatestCycle handles GET /api/cycles/latest
func (h *APIHandler) handleLatestCycle(w http.ResponseWriter, r *http.Request) {
	cycle, err := database.LatestCycle(database.GetDB())
	if err != nil {
		log.Printf("APIHandler: Failed to load latest cycle: %v", err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to load latest cycle")
		return
	}
	if cycle == nil {
		api.RespondError(w, http.StatusNotFound, "No detection cycle recorded yet")
		return
	}

	api.RespondJSON(w, http.StatusOK, cycle)
}

// UpdateDetectionSettingsRequest is a partial update of the detection
// settings; only the provided fields change.
type UpdateDetectionSettingsRequest struct {
	Enabled             *bool    `json:"enabled"`
	RiskThreshold       *float64 `json:"risk_threshold"`
	AnalysisWindowHours *int     `json:"analysis_window_hours"`
	IntervalMinutes     *int     `json:"interval_minutes"`
	AlertTTLHours       *int     `json:"alert_ttl_hours"`
	NarrativeEnabled    *bool    `json:"narrative_enabled"`
	MaxAssessAttempts   *int     `json:"max_assess_attempts"`
}

// handleSettings handles GET /api/settings and PUT /api/settings
func (h *APIHandler) handleSettings(w http.ResponseWriter, r *http.Request) {
	db := database.GetDB()

	switch r.Method {
	case http.MethodGet:
		settings, err := database.GetOrCreateDetectionSettings(db)
		if err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}
		api.RespondJSON(w, http.StatusOK, settings)

	case http.MethodPut:
		var req UpdateDetectionSettingsRequest
		if err := api.DecodeJSON(r, &req); err != nil {
			api.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}

		settings, err := database.GetOrCreateDetectionSettings(db)
		if err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to load settings")
			return
		}

		if req.Enabled != nil {
			settings.Enabled = *req.Enabled
		}
		if req.RiskThreshold != nil {
			settings.RiskThreshold = *req.RiskThreshold
		}
		if req.AnalysisWindowHours != nil {
			settings.AnalysisWindowHours = *req.AnalysisWindowHours
		}
		if req.IntervalMinutes != nil {
			settings.IntervalMinutes = *req.IntervalMinutes
		}
		if req.AlertTTLHours != nil {
			settings.AlertTTLHours = *req.AlertTTLHours
		}
		if req.NarrativeEnabled != nil {
			settings.NarrativeEnabled = *req.NarrativeEnabled
		}
		if req.MaxAssessAttempts != nil {
			settings.MaxAssessAttempts = *req.MaxAssessAttempts
		}

		if fieldErrors := api.Validate(settings); fieldErrors != nil {
			api.RespondValidationError(w, fieldErrors)
			return
		}

		if err := database.UpdateDetectionSettings(db, settings); err != nil {
			api.RespondError(w, http.StatusInternalServerError, "Failed to update settings")
			return
		}

		log.Printf("APIHandler: Detection settings updated (threshold=%.2f interval=%dm window=%dh)",
			settings.RiskThreshold, settings.IntervalMinutes, settings.AnalysisWindowHours)

		api.RespondJSON(w, http.StatusOK, settings)

	default:
		api.RespondError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleIngestReading handles POST /api/readings
func (h *APIHandler) handleIngestReading(w http.ResponseWriter, r *http.Request) {
	var reading database.SensorReading
	if err := api.DecodeJSON(r, &reading); err != nil {
		api.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if reading.Timestamp == 0 {
		reading.Timestamp = time.Now().UTC().Unix()
	}

	if fieldErrors := api.Validate(&reading); fieldErrors != nil {
		api.RespondValidationError(w, fieldErrors)
		return
	}

	if err := h.telemetry.SaveReading(&reading); err != nil {
		log.Printf("APIHandler: Failed to save reading from %s: %v", reading.SensorID, err)
		api.RespondError(w, http.StatusInternalServerError, "Failed to save reading")
		return
	}

	api.RespondJSON(w, http.StatusCreated, map[string]interface{}{
		"sensor_id": reading.SensorID,
		"timestamp": reading.Timestamp,
		"geohash":   reading.Geohash,
	})
}
