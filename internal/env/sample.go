package env

import (
	"math"
)

// Sample is a single altimeter reading.
type Sample struct {
	Timestamp        float64 `json:"timestamp"`        // seconds
	RelativeAltitude float64 `json:"relativeAltitude"` // metres since the first reading
	Pressure         float64 `json:"pressure"`         // kPa, 0 if the source has no barometer
}

// Finite reports whether all fields are finite numbers.
func (s Sample) Finite() bool {
	for _, v := range [...]float64{s.Timestamp, s.RelativeAltitude, s.Pressure} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// RelativeAltitude returns the height in metres of a reading at pressure
// above the point where reference was measured, using the international
// barometric formula. Both pressures must use the same unit.
func RelativeAltitude(pressure, reference float64) float64 {
	if pressure <= 0 || reference <= 0 {
		return 0
	}
	return 44330.0 * (1 - math.Pow(pressure/reference, 1/5.255))
}
