package geo

import (
	"math"
	"testing"
)

func TestEncode_KnownCells(t *testing.T) {
	// Reference point from the canonical geohash example set.
	lat, lon := 57.64911, 10.40744

	if got := Encode(lat, lon, 6); got != "u4pruy" {
		t.Errorf("expected u4pruy, got %s", got)
	}
	if got := Encode(lat, lon, 4); got != "u4pr" {
		t.Errorf("expected u4pr, got %s", got)
	}
	if got := Encode(lat, lon, 9); got != "u4pruydqq" {
		t.Errorf("expected u4pruydqq, got %s", got)
	}
}

func TestEncode_CoarseIsPrefixOfFine(t *testing.T) {
	// Sri Lankan hill country coordinates used throughout the system.
	fine := Encode(7.1667, 80.2833, PrecisionFine)
	coarse := Encode(7.1667, 80.2833, PrecisionCoarse)

	if len(fine) != PrecisionFine {
		t.Fatalf("expected %d chars, got %q", PrecisionFine, fine)
	}
	if fine[:PrecisionCoarse] != coarse {
		t.Errorf("coarse cell %s is not a prefix of fine cell %s", coarse, fine)
	}
}

func TestEncode_ZeroPrecision(t *testing.T) {
	if got := Encode(0, 0, 0); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestNeighbors_ContainsSelfAndSameLength(t *testing.T) {
	cells := []string{"u4pr", "u4pruy", "tc1x", "9q8y"}
	for _, cell := range cells {
		neighbors := Neighbors(cell)

		found := false
		for _, n := range neighbors {
			if n == cell {
				found = true
			}
			if len(n) != len(cell) {
				t.Errorf("neighbor %q of %q has different length", n, cell)
			}
		}
		if !found {
			t.Errorf("neighbors of %q do not contain the cell itself", cell)
		}
		if len(neighbors) > 9 {
			t.Errorf("expected at most 9 cells for %q, got %d", cell, len(neighbors))
		}
	}
}

func TestNeighbors_Deduplicated(t *testing.T) {
	neighbors := Neighbors("u4pr")
	seen := make(map[string]bool)
	for _, n := range neighbors {
		if seen[n] {
			t.Errorf("duplicate neighbor %q", n)
		}
		seen[n] = true
	}
}

func TestNeighbors_AdjacentPointsShareCells(t *testing.T) {
	// Two sensors ~30m apart should land in the same cell or in adjacent
	// cells at fine precision.
	a := Encode(7.1667, 80.2833, PrecisionFine)
	b := Encode(7.16697, 80.2833, PrecisionFine)

	inSet := false
	for _, n := range Neighbors(a) {
		if n == b {
			inSet = true
			break
		}
	}
	if !inSet {
		t.Errorf("cell %s of a nearby point is not in the neighbor set of %s", b, a)
	}
}

func TestNeighbors_EmptyInput(t *testing.T) {
	if got := Neighbors(""); len(got) != 0 {
		t.Errorf("expected no cells for empty input, got %v", got)
	}
}

func TestDistance(t *testing.T) {
	// Same point.
	if d := Distance(7.1667, 80.2833, 7.1667, 80.2833); d != 0 {
		t.Errorf("expected 0, got %f", d)
	}

	// One degree of latitude is ~111.19km on a 6371km sphere.
	d := Distance(0, 0, 1, 0)
	if math.Abs(d-111194.9) > 100 {
		t.Errorf("expected ~111195m for one degree of latitude, got %f", d)
	}

	// Quincunx grid spacing: ~20m offsets must resolve well under the 50m
	// correlation radius.
	d = Distance(7.16670, 80.28330, 7.16688, 80.28330)
	if d < 15 || d > 25 {
		t.Errorf("expected ~20m, got %f", d)
	}
}
