package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"github.com/openlews/openlews/internal/database"
)

// RiskAssessment is the structured judgement produced for one detection,
// by the LLM when configured and by the heuristic fallback otherwise.
type RiskAssessment struct {
	RiskLevel         database.RiskLevel `json:"risk_level"`
	Confidence        float64            `json:"confidence"`
	Reasoning         string             `json:"reasoning"`
	TriggerFactors    []string           `json:"trigger_factors"`
	RecommendedAction string             `json:"recommended_action"`
	TimeToFailure     string             `json:"time_to_failure_estimate"`
	References        []string           `json:"references"`
}

// Assessor turns detections into risk assessments. Calls go to an
// OpenAI-compatible chat completions endpoint; transient failures are
// retried with exponential backoff and anything else falls through to a
// deterministic heuristic so a cycle never stalls on the model.
type Assessor struct {
	httpClient *http.Client
	baseDelay  time.Duration
}

// NewAssessor creates an assessor
func NewAssessor() *Assessor {
	return &Assessor{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		baseDelay: 600 * time.Millisecond,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

const assessmentSystemPrompt = `You are a landslide early-warning analyst for a sensor network monitoring unstable slopes.

You receive the current readings of a slope-monitoring station (or a cluster of stations), the computed risk scores and the mapped geological context of the site. Judge the landslide risk.

Respond with ONLY a JSON object, no prose, with exactly these fields:
{
  "risk_level": "Yellow" | "Orange" | "Red",
  "confidence": <number between 0 and 1>,
  "reasoning": "<2-4 sentences explaining the judgement>",
  "trigger_factors": ["<factor>", ...],
  "recommended_action": "<one actionable instruction for local authorities>",
  "time_to_failure_estimate": "<estimate such as '6-12 hours', or 'unknown'>",
  "references": ["<guideline or case referenced, if any>"]
}

Rules:
- Yellow means elevated monitoring, Orange means prepare evacuation, Red means evacuate now.
- Base the judgement only on the data provided. Do not invent readings.
- Be conservative with Red: reserve it for imminent failure signatures.`

// Assess produces a risk assessment for a detection. When the LLM is not
// configured or permanently fails, the heuristic fallback is returned
// with a nil error; only transient exhaustion surfaces as an error so the
// caller can count the detection as skipped.
func (a *Assessor) Assess(ctx context.Context, det *Detection, geoCtx *GeoContext, maxAttempts int) (*RiskAssessment, error) {
	settings, err := database.GetLLMSettings()
	if err != nil {
		log.Printf("Warning: failed to load LLM settings, using heuristic assessment: %v", err)
		return a.Fallback(det), nil
	}
	if !settings.IsActive() {
		return a.Fallback(det), nil
	}

	content, err := a.complete(ctx, settings, assessmentSystemPrompt, buildAssessmentPrompt(det, geoCtx), maxAttempts)
	if err != nil {
		return nil, fmt.Errorf("risk assessment failed for %s: %w", det.Identity(), err)
	}

	assessment, err := parseAssessment(content)
	if err != nil {
		log.Printf("Warning: unparseable model assessment for %s, using heuristic: %v", det.Identity(), err)
		return a.Fallback(det), nil
	}
	return assessment, nil
}

// Narrative produces a public warning text for an alert. Only called for
// Orange and Red levels; failures are surfaced so the caller can omit
// the narrative rather than block the alert.
func (a *Assessor) Narrative(ctx context.Context, alert *database.Alert, geoCtx *GeoContext) (string, error) {
	settings, err := database.GetLLMSettings()
	if err != nil || !settings.IsActive() {
		return fallbackNarrative(alert), nil
	}

	systemPrompt := `You write public landslide warnings for local authorities in plain language. Two short paragraphs: what is happening and what residents must do. No markdown, no headings.`
	userPrompt := fmt.Sprintf(
		"Risk level: %s\nLocation: %.4f, %.4f (%s district)\nHazard zone: %s, soil %s\nReasoning: %s\nRecommended action: %s\nTime to failure: %s",
		alert.RiskLevel, alert.Latitude, alert.Longitude, geoCtx.District,
		geoCtx.HazardLevel, geoCtx.SoilType,
		alert.Reasoning, alert.RecommendedAction, alert.TimeToFailure)

	content, err := a.complete(ctx, settings, systemPrompt, userPrompt, 2)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

// complete calls the chat completions endpoint with bounded retries.
// Only transient failures (throttling, timeouts, 5xx) are retried.
func (a *Assessor) complete(ctx context.Context, settings *database.LLMSettings, systemPrompt, userPrompt string, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	reqBody := chatRequest{
		Model: settings.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens:   800,
		Temperature: 0.2,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := strings.TrimSuffix(settings.BaseURL, "/") + "/chat/completions"

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			delay := a.baseDelay * time.Duration(1<<(attempt-2))
			delay += time.Duration(rand.Int63n(int64(a.baseDelay)))
			if delay > 10*time.Second {
				delay = 10 * time.Second
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		content, retryable, err := a.doRequest(ctx, url, settings.APIKey, jsonBody)
		if err == nil {
			return content, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
		log.Printf("Warning: model call attempt %d/%d failed: %v", attempt, maxAttempts, err)
	}
	return "", fmt.Errorf("model unavailable after %d attempts: %w", maxAttempts, lastErr)
}

func (a *Assessor) doRequest(ctx context.Context, url, apiKey string, body []byte) (content string, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(body))
	if err != nil {
		return "", false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		// Network errors and timeouts are worth retrying unless the
		// context itself is gone.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", false, err
		}
		return "", true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests ||
		resp.StatusCode == http.StatusRequestTimeout ||
		resp.StatusCode >= 500 {
		return "", true, fmt.Errorf("transient API error: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("API error: status %d: %s", resp.StatusCode, truncateForLog(string(respBody), 200))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", false, fmt.Errorf("failed to parse response: %w", err)
	}
	if parsed.Error != nil {
		return "", false, fmt.Errorf("API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", false, fmt.Errorf("no choices in response")
	}
	return parsed.Choices[0].Message.Content, false, nil
}

// parseAssessment extracts and validates the JSON judgement. Models
// sometimes wrap JSON in code fences, so the first brace-delimited block
// is taken.
func parseAssessment(content string) (*RiskAssessment, error) {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in model output")
	}

	var assessment RiskAssessment
	if err := json.Unmarshal([]byte(content[start:end+1]), &assessment); err != nil {
		return nil, fmt.Errorf("malformed assessment JSON: %w", err)
	}
	if !assessment.RiskLevel.Valid() {
		return nil, fmt.Errorf("unknown risk level %q", assessment.RiskLevel)
	}
	if assessment.Confidence < 0 || assessment.Confidence > 1 {
		return nil, fmt.Errorf("confidence %f out of range", assessment.Confidence)
	}
	if assessment.Reasoning == "" || assessment.RecommendedAction == "" {
		return nil, fmt.Errorf("assessment missing required fields")
	}
	return &assessment, nil
}

// buildAssessmentPrompt renders the detection and its context for the
// model
func buildAssessmentPrompt(det *Detection, geoCtx *GeoContext) string {
	var b strings.Builder

	r := det.Assessment.Reading
	if det.Cluster != nil {
		fmt.Fprintf(&b, "CLUSTER DETECTION: %d co-located sensors, centered on %s\n",
			det.Cluster.Size(), det.Cluster.CenterSensorID)
		fmt.Fprintf(&b, "Members: %s\n", strings.Join(det.Cluster.Members, ", "))
		fmt.Fprintf(&b, "Average composite risk: %.2f, maximum: %.2f\n\n",
			det.Cluster.AvgComposite, det.Cluster.MaxComposite)
	} else {
		fmt.Fprintf(&b, "SINGLE SENSOR DETECTION: %s\n\n", r.SensorID)
	}

	fmt.Fprintf(&b, "Center sensor readings:\n")
	fmt.Fprintf(&b, "- Soil moisture: %.1f%%\n", r.MoisturePercent)
	fmt.Fprintf(&b, "- Tilt rate: %.2f mm/hr\n", r.TiltRateMMPerHour)
	fmt.Fprintf(&b, "- Vibration: %.0f counts (baseline %.0f)\n", r.VibrationCount, r.VibrationBaseline)
	fmt.Fprintf(&b, "- Rainfall (24h): %.1f mm\n", r.RainfallMM24h)
	if r.PorePressureKPa != nil {
		fmt.Fprintf(&b, "- Pore pressure: %.1f kPa\n", *r.PorePressureKPa)
	}
	if r.SafetyFactor != nil {
		fmt.Fprintf(&b, "- Factor of safety: %.2f\n", *r.SafetyFactor)
	}

	fmt.Fprintf(&b, "\nComputed scores:\n")
	fmt.Fprintf(&b, "- Intrinsic risk: %.3f\n", det.Assessment.RiskScore)
	fmt.Fprintf(&b, "- Spatial correlation: %.2f\n", det.Assessment.SpatialCorrelation)
	fmt.Fprintf(&b, "- Composite risk: %.3f\n", det.Assessment.CompositeRisk)

	fmt.Fprintf(&b, "\nGeological context:\n")
	fmt.Fprintf(&b, "- Hazard zone: %s (%s)\n", geoCtx.ZoneID, geoCtx.HazardLevel)
	fmt.Fprintf(&b, "- Soil type: %s, slope %.0f degrees\n", geoCtx.SoilType, geoCtx.SlopeAngle)
	fmt.Fprintf(&b, "- Land use: %s, district: %s\n", geoCtx.LandUse, geoCtx.District)
	fmt.Fprintf(&b, "- Critical moisture threshold: %.1f%%\n", geoCtx.CriticalMoisturePercent)

	return b.String()
}

// Fallback derives a deterministic assessment from the composite risk
// when no model is available
func (a *Assessor) Fallback(det *Detection) *RiskAssessment {
	risk := det.Risk()

	var level database.RiskLevel
	var action, ttf string
	switch {
	case risk >= 0.8:
		level = database.RiskLevelRed
		action = "Evacuate the affected slope immediately and close downhill roads"
		ttf = "possibly within hours"
	case risk >= 0.6:
		level = database.RiskLevelOrange
		action = "Prepare evacuation of the affected slope and alert local officers"
		ttf = "unknown"
	default:
		level = database.RiskLevelYellow
		action = "Increase monitoring frequency for the affected sensors"
		ttf = "unknown"
	}

	factors := triggerFactors(det)
	reasoning := fmt.Sprintf(
		"Heuristic assessment: composite risk %.2f with spatial correlation %.2f. Contributing factors: %s.",
		risk, det.Assessment.SpatialCorrelation, strings.Join(factors, ", "))
	if det.Cluster != nil {
		reasoning = fmt.Sprintf("%s Cluster of %d sensors shows a coherent slope-scale signal.",
			reasoning, det.Cluster.Size())
	}

	return &RiskAssessment{
		RiskLevel:         level,
		Confidence:        clamp01(risk),
		Reasoning:         reasoning,
		TriggerFactors:    factors,
		RecommendedAction: action,
		TimeToFailure:     ttf,
	}
}

// triggerFactors names the reading fields in alarming bands
func triggerFactors(det *Detection) []string {
	r := det.Assessment.Reading
	var factors []string
	if r.TiltRateMMPerHour >= 5.0 {
		factors = append(factors, "accelerating slope movement")
	}
	if r.RainfallMM24h >= 100.0 {
		factors = append(factors, "heavy antecedent rainfall")
	}
	if r.PorePressureKPa != nil && *r.PorePressureKPa >= 5.0 {
		factors = append(factors, "elevated pore pressure")
	}
	if r.SafetyFactor != nil && *r.SafetyFactor < 1.2 {
		factors = append(factors, "low factor of safety")
	}
	if len(factors) == 0 {
		factors = append(factors, "elevated soil moisture")
	}
	return factors
}

// fallbackNarrative renders a template warning when no model is
// configured
func fallbackNarrative(alert *database.Alert) string {
	urgency := "Residents should stay alert and follow instructions from local authorities."
	if alert.RiskLevel == database.RiskLevelRed {
		urgency = "Residents must leave the slope area immediately and move to safe ground."
	}
	return fmt.Sprintf(
		"A %s landslide warning is in effect near %.4f, %.4f. %s %s",
		strings.ToLower(string(alert.RiskLevel)), alert.Latitude, alert.Longitude,
		alert.RecommendedAction+".", urgency)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// truncateForLog truncates a string for log output
func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
