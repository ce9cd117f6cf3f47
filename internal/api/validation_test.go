package api

import (
	"testing"
)

type testReading struct {
	SensorID        string  `json:"sensor_id" validate:"required"`
	MoisturePercent float64 `json:"moisture_percent" validate:"gte=0,lte=100"`
	Status          string  `json:"status" validate:"omitempty,oneof=active resolved expired"`
	Untagged        string  `validate:"omitempty,oneof=a b"`
}

func TestValidate_ValidInput(t *testing.T) {
	errs := Validate(testReading{SensorID: "KGL-001", MoisturePercent: 42})
	if errs != nil {
		t.Errorf("expected no errors, got %v", errs)
	}
}

func TestValidate_MissingRequired(t *testing.T) {
	errs := Validate(testReading{MoisturePercent: 42})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if errs["sensor_id"] != "is required" {
		t.Errorf("sensor_id error = %q, want %q", errs["sensor_id"], "is required")
	}
}

func TestValidate_OutOfRange(t *testing.T) {
	errs := Validate(testReading{SensorID: "KGL-001", MoisturePercent: 120})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if errs["moisture_percent"] != "must be at most 100" {
		t.Errorf("moisture_percent error = %q, want %q", errs["moisture_percent"], "must be at most 100")
	}

	errs = Validate(testReading{SensorID: "KGL-001", MoisturePercent: -1})
	if errs["moisture_percent"] != "must be at least 0" {
		t.Errorf("moisture_percent error = %q, want %q", errs["moisture_percent"], "must be at least 0")
	}
}

func TestValidate_InvalidOneOf(t *testing.T) {
	errs := Validate(testReading{SensorID: "KGL-001", Status: "bogus"})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if errs["status"] != "must be one of: active resolved expired" {
		t.Errorf("status error = %q", errs["status"])
	}
}

func TestValidate_OmitsEmptyOptional(t *testing.T) {
	errs := Validate(testReading{SensorID: "KGL-001"})
	if errs != nil {
		t.Errorf("expected no errors for empty optional field, got %v", errs)
	}
}

func TestValidate_UntaggedFieldFallsBackToName(t *testing.T) {
	errs := Validate(testReading{SensorID: "KGL-001", Untagged: "c"})
	if errs == nil {
		t.Fatal("expected validation errors")
	}
	if _, ok := errs["Untagged"]; !ok {
		t.Errorf("expected error keyed by field name, got %v", errs)
	}
}
