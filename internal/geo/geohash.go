// Package geo provides the spatial primitives shared by telemetry ingestion,
// hazard-zone lookup, and detection-time correlation: geohash encoding,
// geohash cell adjacency, and great-circle distance.
package geo

import "strings"

// base32 alphabet used by the standard geohash encoding
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

// Precisions used across the system. Four characters bucket hazard zones
// into cells of roughly tens of kilometers; six characters place a sensor
// within a few hundred meters.
const (
	PrecisionCoarse = 4
	PrecisionFine   = 6
)

// Lookup tables for computing the adjacent cell in each direction. The row
// depends on whether the cell length is even or odd because geohash
// alternates longitude/latitude bits per character.
var neighborTable = map[string][2]string{
	"right":  {"bc01fg45238967deuvhjyznpkmstqrwx", "p0r21436x8zb9dcf5h7kjnmqesgutwvy"},
	"left":   {"238967debc01fg45kmstqrwxuvhjyznp", "14365h7k9dcfesgujnmqp0r2twvyx8zb"},
	"top":    {"p0r21436x8zb9dcf5h7kjnmqesgutwvy", "bc01fg45238967deuvhjyznpkmstqrwx"},
	"bottom": {"14365h7k9dcfesgujnmqp0r2twvyx8zb", "238967debc01fg45kmstqrwxuvhjyznp"},
}

// Border characters per direction; a cell ending in one of these sits on
// the edge of its parent cell, so adjacency must recurse into the parent.
var borderTable = map[string][2]string{
	"right":  {"bcfguvyz", "prxz"},
	"left":   {"0145hjnp", "028b"},
	"top":    {"prxz", "bcfguvyz"},
	"bottom": {"028b", "0145hjnp"},
}

// Encode returns the geohash cell of the given coordinates at the given
// precision (number of characters). It is a pure function of its inputs.
func Encode(lat, lon float64, precision int) string {
	if precision <= 0 {
		return ""
	}

	latMin, latMax := -90.0, 90.0
	lonMin, lonMax := -180.0, 180.0

	var sb strings.Builder
	sb.Grow(precision)

	evenBit := true // geohash starts with a longitude bit
	idx := 0
	bit := 0

	for sb.Len() < precision {
		if evenBit {
			mid := (lonMin + lonMax) / 2
			if lon >= mid {
				idx = idx*2 + 1
				lonMin = mid
			} else {
				idx = idx * 2
				lonMax = mid
			}
		} else {
			mid := (latMin + latMax) / 2
			if lat >= mid {
				idx = idx*2 + 1
				latMin = mid
			} else {
				idx = idx * 2
				latMax = mid
			}
		}
		evenBit = !evenBit

		bit++
		if bit == 5 {
			sb.WriteByte(base32[idx])
			bit = 0
			idx = 0
		}
	}

	return sb.String()
}

// adjacent returns the same-precision cell bordering the given cell in the
// given direction, or "" when no adjacent cell can be derived.
func adjacent(cell, direction string) string {
	if cell == "" {
		return ""
	}

	cell = strings.ToLower(cell)
	last := cell[len(cell)-1]
	parent := cell[:len(cell)-1]

	row := 1 // odd length
	if len(cell)%2 == 0 {
		row = 0
	}

	if strings.IndexByte(borderTable[direction][row], last) >= 0 && parent != "" {
		parent = adjacent(parent, direction)
	}

	idx := strings.IndexByte(neighborTable[direction][row], last)
	if idx < 0 {
		return ""
	}

	return parent + string(base32[idx])
}

// Neighbors returns the cell itself plus its same-precision neighboring
// cells (up to 8: four direct, four diagonal). Results are de-duplicated
// and any candidate whose length differs from the input (degenerate cells
// at the grid edges) is dropped, so callers must tolerate fewer than nine
// cells. An empty input yields no cells.
func Neighbors(cell string) []string {
	cell = strings.ToLower(cell)
	if cell == "" {
		return nil
	}

	top := adjacent(cell, "top")
	bottom := adjacent(cell, "bottom")
	right := adjacent(cell, "right")
	left := adjacent(cell, "left")

	candidates := []string{cell, top, bottom, right, left}
	if top != "" {
		candidates = append(candidates, adjacent(top, "right"), adjacent(top, "left"))
	}
	if bottom != "" {
		candidates = append(candidates, adjacent(bottom, "right"), adjacent(bottom, "left"))
	}

	seen := make(map[string]bool, len(candidates))
	out := make([]string, 0, 9)
	for _, c := range candidates {
		if c == "" || len(c) != len(cell) || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
