// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/relabs-tech/motion_collector/internal/imu"
	"github.com/relabs-tech/motion_collector/internal/orientation"
)

// DefaultSimPeriod is the simulator tick period (100 Hz).
const DefaultSimPeriod = 10 * time.Millisecond

// SimJitter bounds the random noise added to every simulated axis.
const SimJitter = 0.02

// Emitter receives the readings produced on every simulator tick.
// *router.Router satisfies it.
type Emitter interface {
	OnSimulatedTick(acc, gyro imu.Sample3, motion imu.CompositeMotionSample)
}

// TickerFunc starts a ticker and returns its channel and a stop function.
type TickerFunc func(d time.Duration) (<-chan time.Time, func())

func realTicker(d time.Duration) (<-chan time.Time, func()) {
	t := time.NewTicker(d)
	return t.C, t.Stop
}

// Simulator produces smooth synthetic motion when no real sensor is
// available. Each tick emits one accelerometer, one gyroscope and one
// composite reading.
//
// Timestamps are tick index × period in seconds, so every run starts at
// zero and never depends on the wall clock.
type Simulator struct {
	period time.Duration
	ticker TickerFunc

	mu   sync.Mutex
	quit chan struct{}
	wg   sync.WaitGroup
	runs uint64
}

// NewSimulator returns a stopped simulator ticking every period.
// A non-positive period selects DefaultSimPeriod.
func NewSimulator(period time.Duration) *Simulator {
	if period <= 0 {
		period = DefaultSimPeriod
	}
	return &Simulator{period: period, ticker: realTicker}
}

// WithTicker replaces the ticker used by subsequent runs.
func (s *Simulator) WithTicker(fn TickerFunc) *Simulator {
	s.mu.Lock()
	s.ticker = fn
	s.mu.Unlock()
	return s
}

// Period returns the tick period.
func (s *Simulator) Period() time.Duration {
	return s.period
}

// Running reports whether a run is in progress.
func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quit != nil
}

// Start begins a fresh run delivering to out. Each run uses a newly seeded
// generator.
func (s *Simulator) Start(out Emitter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.quit != nil {
		return fmt.Errorf("simulator already running: %w", ErrInvalidTransition)
	}

	s.runs++
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), s.runs))
	ticks, stopTicker := s.ticker(s.period)
	quit := make(chan struct{})
	s.quit = quit

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer stopTicker()

		for n := 0; ; n++ {
			select {
			case <-quit:
				return
			case <-ticks:
			}
			acc, gyro, motion := simulate(float64(n)*s.period.Seconds(), rng)
			out.OnSimulatedTick(acc, gyro, motion)
		}
	}()
	return nil
}

// Stop ends the current run and waits until its last tick has been
// delivered. It is a no-op when the simulator is not running.
func (s *Simulator) Stop() {
	s.mu.Lock()
	quit := s.quit
	s.quit = nil
	s.mu.Unlock()

	if quit == nil {
		return
	}
	close(quit)
	s.wg.Wait()
}

// simulate computes the readings for simulated time t.
func simulate(t float64, rng *rand.Rand) (acc, gyro imu.Sample3, motion imu.CompositeMotionSample) {
	jitter := func() float64 { return (rng.Float64()*2 - 1) * SimJitter }
	wave := func(amp, hz float64) float64 { return amp * math.Sin(2*math.Pi*hz*t) }
	cwave := func(amp, hz float64) float64 { return amp * math.Cos(2*math.Pi*hz*t) }

	acc = imu.Sample3{
		Timestamp: t,
		X:         wave(0.3, 0.5) + jitter(),
		Y:         cwave(0.2, 1) + jitter(),
		Z:         -1 + wave(0.05, 2) + jitter(),
	}
	gyro = imu.Sample3{
		Timestamp: t,
		X:         cwave(0.5, 0.5) + jitter(),
		Y:         wave(0.4, 1) + jitter(),
		Z:         wave(0.2, 2) + jitter(),
	}

	pose := orientation.Pose{
		Roll:  wave(0.3, 0.5) + jitter(),
		Pitch: cwave(0.2, 0.5) + jitter(),
		Yaw:   wave(0.5, 0.1) + jitter(),
	}
	gravity := imu.Sample3{
		Timestamp: t,
		X:         -math.Sin(pose.Pitch),
		Y:         math.Sin(pose.Roll) * math.Cos(pose.Pitch),
		Z:         -math.Cos(pose.Roll) * math.Cos(pose.Pitch),
	}
	motion = imu.CompositeMotionSample{
		Timestamp: t,
		Attitude:  pose,
		RotationRate: imu.Sample3{
			Timestamp: t,
			X:         cwave(0.5, 0.5) + jitter(),
			Y:         wave(0.4, 1) + jitter(),
			Z:         wave(0.2, 2) + jitter(),
		},
		Gravity: gravity,
		UserAcceleration: imu.Sample3{
			Timestamp: t,
			X:         wave(0.1, 1) + jitter(),
			Y:         cwave(0.1, 1) + jitter(),
			Z:         wave(0.05, 2) + jitter(),
		},
		MagneticField: imu.Sample3{
			Timestamp: t,
			X:         20 + cwave(5, 0.1) + jitter(),
			Y:         -5 + wave(5, 0.1) + jitter(),
			Z:         -40 + jitter(),
		},
	}
	return acc, gyro, motion
}
