package session

import (
	"gonum.org/v1/gonum/stat"

	"github.com/relabs-tech/motion_collector/internal/stream"
)

// StreamStats summarises the timing of one stream in a snapshot.
type StreamStats struct {
	Kind        stream.Kind `json:"-"`
	Name        string      `json:"name"`
	Samples     int         `json:"samples"`
	DurationSec float64     `json:"duration_sec"`
	RateHz      float64     `json:"rate_hz"`
	IntervalSec float64     `json:"interval_mean_sec"`
	JitterSec   float64     `json:"interval_stddev_sec"`
}

// Stats computes per-stream timing statistics in export order.
// Rates are derived from sample timestamps, so streams with fewer than two
// samples report zero rate.
func (s Snapshot) Stats() []StreamStats {
	out := make([]StreamStats, 0, 5)
	for _, k := range stream.Kinds() {
		out = append(out, timing(k, s.timestamps(k)))
	}
	return out
}

func timing(kind stream.Kind, ts []float64) StreamStats {
	st := StreamStats{Kind: kind, Name: kind.String(), Samples: len(ts)}
	if len(ts) < 2 {
		return st
	}

	deltas := make([]float64, len(ts)-1)
	for i := 1; i < len(ts); i++ {
		deltas[i-1] = ts[i] - ts[i-1]
	}
	st.DurationSec = ts[len(ts)-1] - ts[0]
	st.IntervalSec, st.JitterSec = stat.MeanStdDev(deltas, nil)
	if st.IntervalSec > 0 {
		st.RateHz = 1 / st.IntervalSec
	}
	return st
}

func (s Snapshot) timestamps(kind stream.Kind) []float64 {
	var ts []float64
	switch kind {
	case stream.Accelerometer:
		for _, v := range s.Accel {
			ts = append(ts, v.Timestamp)
		}
	case stream.Gyroscope:
		for _, v := range s.Gyro {
			ts = append(ts, v.Timestamp)
		}
	case stream.Magnetometer:
		for _, v := range s.Mag {
			ts = append(ts, v.Timestamp)
		}
	case stream.CompositeMotion:
		for _, v := range s.DeviceMotion {
			ts = append(ts, v.Timestamp)
		}
	case stream.Altitude:
		for _, v := range s.Altimeter {
			ts = append(ts, v.Timestamp)
		}
	}
	return ts
}
