// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package acquisition

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/relabs-tech/motion_collector/internal/router"
	"github.com/relabs-tech/motion_collector/internal/session"
	"github.com/relabs-tech/motion_collector/internal/stream"
)

type state int

const (
	idle state = iota
	collecting
)

type activeSub struct {
	kind stream.Kind
	sub  Subscription
}

// Controller runs recording sessions: Idle → Collecting → Idle.
//
// Start and Stop must be serialised by the caller. Status accessors and
// Snapshot may be called from any goroutine at any time.
type Controller struct {
	mu           sync.Mutex
	state        state
	subs         []activeSub
	simActive    bool
	active       []string
	availability string
	sessionID    string
	startedAt    time.Time

	sources Sources
	router  *router.Router
	sim     *Simulator
	diag    router.Diagnostics
	now     func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithDiagnostics sets where status and error lines go.
func WithDiagnostics(d router.Diagnostics) Option {
	return func(c *Controller) { c.diag = d }
}

// WithSimulator replaces the fallback simulator.
func WithSimulator(s *Simulator) Option {
	return func(c *Controller) { c.sim = s }
}

// WithClock replaces the clock used for session start times.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// New returns an idle controller acquiring from sources.
func New(sources Sources, opts ...Option) *Controller {
	c := &Controller{
		sources: sources,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if c.diag == nil {
		c.diag = nopDiagnostics{}
	}
	if c.sim == nil {
		c.sim = NewSimulator(DefaultSimPeriod)
	}
	c.router = router.New(c.diag)
	c.availability = "idle"
	return c
}

type nopDiagnostics struct{}

func (nopDiagnostics) Printf(string, ...any) {}

// Start clears all buffered data and begins a new session.
//
// Accelerometer, composite motion and altimeter are always attempted.
// Standalone gyroscope and magnetometer are only used when composite
// motion could not be subscribed, since composite readings already feed
// those streams. If nothing could be subscribed the simulator is used.
func (c *Controller) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == collecting {
		return fmt.Errorf("start: session already collecting: %w", ErrInvalidTransition)
	}

	c.router.Reset()
	c.sessionID = session.NewID()
	c.startedAt = c.now()
	c.subs = nil
	c.simActive = false

	r := c.router
	subscribe(c, stream.Accelerometer, c.sources.Accelerometer, r.OnAccelerometer)
	motionOK := subscribe(c, stream.CompositeMotion, c.sources.Motion, r.OnCompositeMotion)
	subscribe(c, stream.Altitude, c.sources.Altimeter, r.OnAltitude)

	if motionOK {
		c.diag.Printf("acquisition: gyroscope and magnetometer derived from %s", stream.CompositeMotion)
	} else {
		subscribe(c, stream.Gyroscope, c.sources.Gyroscope, r.OnGyroscope)
		subscribe(c, stream.Magnetometer, c.sources.Magnetometer, r.OnMagnetometer)
	}

	if len(c.subs) == 0 {
		if err := c.sim.Start(r); err != nil {
			// Only possible if a previous run leaked; keep the session alive.
			c.diag.Printf("acquisition: simulator start failed: %v", err)
		} else {
			c.simActive = true
			c.diag.Printf("acquisition: no sensors available, using simulated data at %v", c.sim.Period())
		}
	}

	c.active, c.availability = c.describe(motionOK)
	c.state = collecting
	c.diag.Printf("acquisition: session %s started: %s", c.sessionID, c.availability)
	return nil
}

// subscribe attaches deliver to src and records the subscription.
// It reports whether the subscription is live.
func subscribe[T any](c *Controller, kind stream.Kind, src Source[T], deliver func(T)) bool {
	if src == nil {
		c.diag.Printf("acquisition: %s: %v", kind, ErrSubscriptionUnavailable)
		return false
	}
	sub, err := src.Subscribe(func(v T, err error) {
		if err != nil {
			c.router.Drop(kind, err)
			return
		}
		deliver(v)
	})
	if err != nil {
		c.diag.Printf("acquisition: %s subscription failed: %v", kind, err)
		return false
	}
	c.subs = append(c.subs, activeSub{kind: kind, sub: sub})
	return true
}

func (c *Controller) describe(motionOK bool) ([]string, string) {
	if c.simActive {
		names := []string{
			stream.Accelerometer.String(),
			stream.Gyroscope.String(),
			stream.CompositeMotion.String(),
		}
		return names, "simulated: " + strings.Join(names, ", ")
	}
	if len(c.subs) == 0 {
		return nil, "no sensors available"
	}

	var names []string
	for _, s := range c.subs {
		names = append(names, s.kind.String())
	}
	summary := "sensors: " + strings.Join(names, ", ")
	if motionOK {
		names = append(names, stream.Gyroscope.String(), stream.Magnetometer.String())
		summary += fmt.Sprintf(" (%s, %s derived)", stream.Gyroscope, stream.Magnetometer)
	}
	return names, summary
}

// Stop tears down every subscription and the simulator, waiting for
// deliveries in progress. No buffer changes after Stop returns.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != collecting {
		return fmt.Errorf("stop: no session collecting: %w", ErrInvalidTransition)
	}

	for _, s := range c.subs {
		s.sub.Unsubscribe()
	}
	if c.simActive {
		c.sim.Stop()
	}
	c.router.Close()

	c.subs = nil
	c.simActive = false
	c.active = nil
	c.availability = "idle"
	c.state = idle
	c.diag.Printf("acquisition: session %s stopped (%d samples, %d dropped)",
		c.sessionID, c.router.TotalSamples(), c.router.Dropped())
	return nil
}

// Snapshot returns the current contents of every stream. It is valid in
// either state; after Stop it is stable until the next Start.
func (c *Controller) Snapshot() session.Snapshot {
	c.mu.Lock()
	id, start := c.sessionID, c.startedAt
	c.mu.Unlock()
	return c.router.Snapshot(id, start)
}

// StopAndSave stops the session and hands its snapshot to sink.
func (c *Controller) StopAndSave(ctx context.Context, sink session.Sink) (session.Snapshot, error) {
	if err := c.Stop(); err != nil {
		return session.Snapshot{}, err
	}
	snap := c.Snapshot()
	if err := sink.SaveAndUpload(ctx, snap, snap.StartTime); err != nil {
		return snap, fmt.Errorf("save session %s: %w", snap.ID, err)
	}
	return snap, nil
}

// IsCollecting reports whether a session is active.
func (c *Controller) IsCollecting() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == collecting
}

// Simulated reports whether the active session uses simulated data.
func (c *Controller) Simulated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.simActive
}

// StartedAt returns the start time of the current or last session.
func (c *Controller) StartedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startedAt
}

// ActiveStreams lists the streams receiving data. Informational only.
func (c *Controller) ActiveStreams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.active...)
}

// Availability is a human-readable summary of the acquisition sources.
// Informational only.
func (c *Controller) Availability() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availability
}

// TotalSamples returns the number of samples stored this session.
func (c *Controller) TotalSamples() int64 {
	return c.router.TotalSamples()
}

// Counts returns the current per-stream lengths.
func (c *Controller) Counts() map[stream.Kind]int {
	out := make(map[stream.Kind]int, 5)
	for _, k := range stream.Kinds() {
		out[k] = c.router.Len(k)
	}
	return out
}
