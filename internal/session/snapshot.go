package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/relabs-tech/motion_collector/internal/env"
	"github.com/relabs-tech/motion_collector/internal/imu"
	"github.com/relabs-tech/motion_collector/internal/stream"
)

// Snapshot is a point-in-time copy of every stream of a recording session.
// It shares no storage with the buffers it was taken from.
type Snapshot struct {
	ID           string                      `json:"id"`
	StartTime    time.Time                   `json:"startTime"`
	TotalSamples int64                       `json:"totalSamples"`
	Accel        []imu.Sample3               `json:"accelerometer"`
	Gyro         []imu.Sample3               `json:"gyroscope"`
	Mag          []imu.Sample3               `json:"magnetometer"`
	DeviceMotion []imu.CompositeMotionSample `json:"deviceMotion"`
	Altimeter    []env.Sample                `json:"altimeter"`
}

// Empty returns a snapshot with every stream present and empty.
func Empty(id string, start time.Time) Snapshot {
	return Snapshot{
		ID:           id,
		StartTime:    start,
		Accel:        []imu.Sample3{},
		Gyro:         []imu.Sample3{},
		Mag:          []imu.Sample3{},
		DeviceMotion: []imu.CompositeMotionSample{},
		Altimeter:    []env.Sample{},
	}
}

// Len returns the number of samples held for kind.
func (s Snapshot) Len(kind stream.Kind) int {
	switch kind {
	case stream.Accelerometer:
		return len(s.Accel)
	case stream.Gyroscope:
		return len(s.Gyro)
	case stream.Magnetometer:
		return len(s.Mag)
	case stream.CompositeMotion:
		return len(s.DeviceMotion)
	case stream.Altitude:
		return len(s.Altimeter)
	}
	return 0
}

// Counts returns the per-stream sample counts.
func (s Snapshot) Counts() map[stream.Kind]int {
	out := make(map[stream.Kind]int, 5)
	for _, k := range stream.Kinds() {
		out[k] = s.Len(k)
	}
	return out
}

// Filename is the name under which uploaders store the session.
func (s Snapshot) Filename() string {
	return "sensor_data_" + s.StartTime.Format("2006-01-02_15-04-05") + ".json"
}

// NewID returns a fresh session identifier.
func NewID() string {
	return uuid.NewString()
}
