package imu

import (
	"math"

	"github.com/relabs-tech/motion_collector/internal/orientation"
)

// Sample3 is one vector reading: accelerometer (g), gyroscope (rad/s)
// or magnetometer (µT). Timestamp is in seconds.
type Sample3 struct {
	Timestamp float64 `json:"timestamp"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
}

// Finite reports whether the timestamp and every axis are finite numbers.
func (s Sample3) Finite() bool {
	for _, v := range [...]float64{s.Timestamp, s.X, s.Y, s.Z} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// CompositeMotionSample is one fused reading bundling attitude, rotation
// rate, gravity, user acceleration and magnetic field.
type CompositeMotionSample struct {
	Timestamp        float64          `json:"timestamp"`
	Attitude         orientation.Pose `json:"attitude"`
	RotationRate     Sample3          `json:"rotationRate"`
	Gravity          Sample3          `json:"gravity"`
	UserAcceleration Sample3          `json:"userAcceleration"`
	MagneticField    Sample3          `json:"magneticField"`
}

// Finite reports whether every component of the reading is finite.
func (c CompositeMotionSample) Finite() bool {
	if math.IsNaN(c.Timestamp) || math.IsInf(c.Timestamp, 0) {
		return false
	}
	return c.Attitude.Finite() &&
		c.RotationRate.Finite() &&
		c.Gravity.Finite() &&
		c.UserAcceleration.Finite() &&
		c.MagneticField.Finite()
}
