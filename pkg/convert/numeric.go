// Package convert provides the numeric coercion EDIT's Increment/Decrement
// operators need when a metadata.custom value arrives as a float64, an int,
// or a numeric string (spec §4.1 Edit).
package convert

import (
	"strconv"
)

// ToFloat64 converts various numeric types to float64.
// Returns (value, true) on success, (0, false) on failure.
//
// Supported types:
//   - float64 (returned as-is)
//   - float32, int, int64, int32, uint, uint64, uint32 (converted)
//   - string (parsed as decimal, supports scientific notation and NaN/Inf)
//
// Example:
//
//	f, ok := ToFloat64(42)        // Returns (42.0, true)
//	f, ok := ToFloat64("1.5e-3")  // Returns (0.0015, true)
//	f, ok := ToFloat64("invalid") // Returns (0, false)
//
// ELI12:
//
// An EDIT's Increment/Decrement operator gets a delta value and the
// existing value in metadata.custom, and both might arrive as different
// Go types depending on how the document was decoded from JSON. This
// turns whatever number-ish thing shows up into a float64 so the engine
// can just add or subtract, instead of writing a type switch at every
// call site.
func ToFloat64(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint:
		return float64(val), true
	case uint64:
		return float64(val), true
	case uint32:
		return float64(val), true
	case string:
		// Use strconv.ParseFloat - handles scientific notation, NaN, Inf
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
