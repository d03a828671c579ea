// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package router fans incoming sensor readings out to the per-stream
// buffers of a recording session.
//
// Every reading is written inside the shared side of an ingest gate.
// Snapshots take the exclusive side, which makes them consistent across
// all buffers: a composite reading and the two sub-streams derived from it
// are either all visible or all absent. Closing the gate waits for writes
// in flight, so once Close returns no buffer changes until Reset.
package router

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/relabs-tech/motion_collector/internal/env"
	"github.com/relabs-tech/motion_collector/internal/imu"
	"github.com/relabs-tech/motion_collector/internal/session"
	"github.com/relabs-tech/motion_collector/internal/stream"
)

// Diagnostics receives human-readable status and error lines.
// *log.Logger satisfies it.
type Diagnostics interface {
	Printf(format string, v ...any)
}

type discard struct{}

func (discard) Printf(string, ...any) {}

// initial capacity: roughly one minute at 100 Hz
const initialCapacity = 6000

// Router owns the buffers of one session and routes readings into them.
type Router struct {
	gate sync.RWMutex
	open bool

	accel  *stream.Buffer[imu.Sample3]
	gyro   *stream.Buffer[imu.Sample3]
	mag    *stream.Buffer[imu.Sample3]
	motion *stream.Buffer[imu.CompositeMotionSample]
	alt    *stream.Buffer[env.Sample]

	total   atomic.Int64
	dropped atomic.Int64

	diag Diagnostics
}

// New returns a closed router with empty buffers. Readings are ignored
// until Open or Reset is called.
func New(diag Diagnostics) *Router {
	if diag == nil {
		diag = discard{}
	}
	return &Router{
		accel:  stream.NewBuffer[imu.Sample3](initialCapacity),
		gyro:   stream.NewBuffer[imu.Sample3](initialCapacity),
		mag:    stream.NewBuffer[imu.Sample3](initialCapacity),
		motion: stream.NewBuffer[imu.CompositeMotionSample](initialCapacity),
		alt:    stream.NewBuffer[env.Sample](initialCapacity),
		diag:   diag,
	}
}

// DeriveSubStreams extracts the gyroscope and magnetometer readings carried
// by a composite reading. Both keep the composite timestamp.
func DeriveSubStreams(c imu.CompositeMotionSample) (gyro, mag imu.Sample3) {
	gyro = imu.Sample3{
		Timestamp: c.Timestamp,
		X:         c.RotationRate.X,
		Y:         c.RotationRate.Y,
		Z:         c.RotationRate.Z,
	}
	mag = imu.Sample3{
		Timestamp: c.Timestamp,
		X:         c.MagneticField.X,
		Y:         c.MagneticField.Y,
		Z:         c.MagneticField.Z,
	}
	return gyro, mag
}

// OnAccelerometer appends a reading to the accelerometer stream.
func (r *Router) OnAccelerometer(s imu.Sample3) {
	r.onSample3(stream.Accelerometer, r.accel, s)
}

// OnGyroscope appends a reading to the gyroscope stream.
func (r *Router) OnGyroscope(s imu.Sample3) {
	r.onSample3(stream.Gyroscope, r.gyro, s)
}

// OnMagnetometer appends a reading to the magnetometer stream.
func (r *Router) OnMagnetometer(s imu.Sample3) {
	r.onSample3(stream.Magnetometer, r.mag, s)
}

// OnCompositeMotion appends a composite reading and the gyroscope and
// magnetometer readings derived from it: three samples per call.
func (r *Router) OnCompositeMotion(c imu.CompositeMotionSample) {
	if !c.Finite() {
		r.drop(stream.CompositeMotion, "non-finite value")
		return
	}
	gyro, mag := DeriveSubStreams(c)

	r.gate.RLock()
	defer r.gate.RUnlock()
	if !r.open {
		return
	}
	r.motion.Append(c)
	r.gyro.Append(gyro)
	r.mag.Append(mag)
	r.total.Add(3)
}

// OnSimulatedTick appends one simulator tick: an accelerometer, a
// gyroscope and a composite reading, three samples in total. Nothing is
// derived from the composite reading, so the gyroscope stream holds one
// sample per tick and the magnetometer stream stays empty.
func (r *Router) OnSimulatedTick(acc, gyro imu.Sample3, motion imu.CompositeMotionSample) {
	switch {
	case !acc.Finite():
		r.drop(stream.Accelerometer, "non-finite simulated value")
		return
	case !gyro.Finite():
		r.drop(stream.Gyroscope, "non-finite simulated value")
		return
	case !motion.Finite():
		r.drop(stream.CompositeMotion, "non-finite simulated value")
		return
	}

	r.gate.RLock()
	defer r.gate.RUnlock()
	if !r.open {
		return
	}
	r.accel.Append(acc)
	r.gyro.Append(gyro)
	r.motion.Append(motion)
	r.total.Add(3)
}

// OnAltitude appends a reading to the altimeter stream.
func (r *Router) OnAltitude(s env.Sample) {
	if !s.Finite() {
		r.drop(stream.Altitude, "non-finite value")
		return
	}

	r.gate.RLock()
	defer r.gate.RUnlock()
	if !r.open {
		return
	}
	r.alt.Append(s)
	r.total.Add(1)
}

func (r *Router) onSample3(kind stream.Kind, buf *stream.Buffer[imu.Sample3], s imu.Sample3) {
	if !s.Finite() {
		r.drop(kind, "non-finite value")
		return
	}

	r.gate.RLock()
	defer r.gate.RUnlock()
	if !r.open {
		return
	}
	buf.Append(s)
	r.total.Add(1)
}

// Drop records a reading that a source flagged as failed.
func (r *Router) Drop(kind stream.Kind, err error) {
	r.drop(kind, err.Error())
}

func (r *Router) drop(kind stream.Kind, reason string) {
	r.dropped.Add(1)
	r.diag.Printf("router: dropped %s reading: %s", kind, reason)
}

// Open starts accepting readings without touching buffered data.
func (r *Router) Open() {
	r.gate.Lock()
	r.open = true
	r.gate.Unlock()
}

// Close stops accepting readings. It returns once every write already in
// progress has finished.
func (r *Router) Close() {
	r.gate.Lock()
	r.open = false
	r.gate.Unlock()
}

// Reset empties every buffer, zeroes the counters and opens the router.
func (r *Router) Reset() {
	r.gate.Lock()
	defer r.gate.Unlock()

	r.accel.Clear()
	r.gyro.Clear()
	r.mag.Clear()
	r.motion.Clear()
	r.alt.Clear()
	r.total.Store(0)
	r.dropped.Store(0)
	r.open = true
}

// Snapshot copies every buffer at a single instant.
func (r *Router) Snapshot(id string, start time.Time) session.Snapshot {
	r.gate.Lock()
	defer r.gate.Unlock()

	return session.Snapshot{
		ID:           id,
		StartTime:    start,
		TotalSamples: r.total.Load(),
		Accel:        r.accel.Snapshot(),
		Gyro:         r.gyro.Snapshot(),
		Mag:          r.mag.Snapshot(),
		DeviceMotion: r.motion.Snapshot(),
		Altimeter:    r.alt.Snapshot(),
	}
}

// TotalSamples returns the number of samples stored since the last Reset,
// derived writes included.
func (r *Router) TotalSamples() int64 {
	return r.total.Load()
}

// Dropped returns the number of readings rejected since the last Reset.
func (r *Router) Dropped() int64 {
	return r.dropped.Load()
}

// Len returns the current length of one stream.
func (r *Router) Len(kind stream.Kind) int {
	switch kind {
	case stream.Accelerometer:
		return r.accel.Len()
	case stream.Gyroscope:
		return r.gyro.Len()
	case stream.Magnetometer:
		return r.mag.Len()
	case stream.CompositeMotion:
		return r.motion.Len()
	case stream.Altitude:
		return r.alt.Len()
	}
	return 0
}
