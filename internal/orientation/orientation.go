package orientation

import (
	"math"
)

// Pose is the attitude reported by a composite motion reading.
// All angles are radians.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

// FromAccel computes roll and pitch from accelerometer data only.
// Yaw is set to 0 since there is no heading reference.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func FromAccel(ax, ay, az float64) Pose {
	return Pose{
		Roll:  math.Atan2(ay, az),
		Pitch: math.Atan2(-ax, math.Sqrt(ay*ay+az*az)),
		Yaw:   0,
	}
}

// Finite reports whether all three angles are finite numbers.
func (p Pose) Finite() bool {
	return finite(p.Roll) && finite(p.Pitch) && finite(p.Yaw)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
