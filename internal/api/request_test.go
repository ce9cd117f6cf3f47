package api

import (
	"net/http"
	"strings"
	"testing"
)

func TestDecodeJSON_ValidInput(t *testing.T) {
	body := `{"sensor_id":"KGL-001","moisture_percent":42.5}`
	r := newRequest(body)

	var dst struct {
		SensorID        string  `json:"sensor_id"`
		MoisturePercent float64 `json:"moisture_percent"`
	}
	if err := DecodeJSON(r, &dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dst.SensorID != "KGL-001" {
		t.Errorf("sensor_id = %q, want %q", dst.SensorID, "KGL-001")
	}
	if dst.MoisturePercent != 42.5 {
		t.Errorf("moisture_percent = %v, want %v", dst.MoisturePercent, 42.5)
	}
}

func TestDecodeJSON_NilBody(t *testing.T) {
	r, _ := http.NewRequest(http.MethodPost, "/test", nil)

	var dst struct{}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for nil body")
	}
	if err.Error() != "request body is empty" {
		t.Errorf("error = %q, want %q", err.Error(), "request body is empty")
	}
}

func TestDecodeJSON_MalformedJSON(t *testing.T) {
	r := newRequest(`{invalid}`)

	var dst struct{}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
	if !strings.Contains(err.Error(), "malformed JSON") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "malformed JSON")
	}
}

func TestDecodeJSON_TypeMismatch(t *testing.T) {
	r := newRequest(`{"moisture_percent":"wet"}`)

	var dst struct {
		MoisturePercent float64 `json:"moisture_percent"`
	}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for type mismatch")
	}
	if !strings.Contains(err.Error(), "invalid value") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "invalid value")
	}
}

func TestDecodeJSON_UnknownField(t *testing.T) {
	r := newRequest(`{"sensor_id":"KGL-001","extra":"field"}`)

	var dst struct {
		SensorID string `json:"sensor_id"`
	}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
	if !strings.Contains(err.Error(), "unknown field") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "unknown field")
	}
}

func TestDecodeJSON_OversizedBody(t *testing.T) {
	huge := `{"data":"` + strings.Repeat("x", MaxBodySize+1) + `"}`
	r := newRequest(huge)

	var dst struct {
		Data string `json:"data"`
	}
	err := DecodeJSON(r, &dst)
	if err == nil {
		t.Fatal("expected error for oversized body")
	}
	if !strings.Contains(err.Error(), "exceeds maximum size") {
		t.Errorf("error = %q, want to contain %q", err.Error(), "exceeds maximum size")
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", 50},
		{"limit=10", 10},
		{"limit=500", 200},
		{"limit=0", 50},
		{"limit=-3", 50},
		{"limit=abc", 50},
	}

	for _, tt := range tests {
		r, _ := http.NewRequest(http.MethodGet, "/test?"+tt.query, nil)
		if got := ParseLimit(r, 50, 200); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.query, got, tt.want)
		}
	}
}

// newRequest creates an http.Request with the given JSON body.
func newRequest(body string) *http.Request {
	r, _ := http.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}
