package acquisition

import (
	"errors"
	"sync"

	"github.com/relabs-tech/motion_collector/internal/env"
	"github.com/relabs-tech/motion_collector/internal/imu"
)

var (
	// ErrSubscriptionUnavailable means a sensor cannot be subscribed to.
	// It is never fatal for a session.
	ErrSubscriptionUnavailable = errors.New("subscription unavailable")

	// ErrInvalidTransition is returned by Start while collecting and by
	// Stop while idle.
	ErrInvalidTransition = errors.New("invalid state transition")
)

// Handler receives one event from a source. A non-nil error flags the
// event as failed; the value is then meaningless.
type Handler[T any] func(T, error)

// Source delivers events of one kind to a subscribed handler. Handlers
// may be called from any goroutine.
type Source[T any] interface {
	Subscribe(h Handler[T]) (Subscription, error)
}

// Subscription is a live registration with a Source.
//
// Unsubscribe must not return while the handler is still running, and the
// handler must not be called after Unsubscribe returns.
type Subscription interface {
	Unsubscribe()
}

// SubscriptionFunc adapts a teardown function to Subscription.
type SubscriptionFunc func()

func (f SubscriptionFunc) Unsubscribe() { f() }

// Sources is the set of sensors a platform offers. A nil field means the
// platform has no such sensor.
type Sources struct {
	Accelerometer Source[imu.Sample3]
	Gyroscope     Source[imu.Sample3]
	Magnetometer  Source[imu.Sample3]
	Motion        Source[imu.CompositeMotionSample]
	Altimeter     Source[env.Sample]
}

// Gate wraps a handler so that it can be shut off with a join barrier.
// Sources whose delivery mechanism cannot itself guarantee that no
// callback runs after teardown use it to implement Unsubscribe.
type Gate[T any] struct {
	mu     sync.RWMutex
	closed bool
	h      Handler[T]
}

// NewGate returns an open gate forwarding to h.
func NewGate[T any](h Handler[T]) *Gate[T] {
	return &Gate[T]{h: h}
}

// Deliver forwards one event unless the gate is closed.
func (g *Gate[T]) Deliver(v T, err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.closed {
		return
	}
	g.h(v, err)
}

// Close waits for deliveries in progress and rejects any that follow.
func (g *Gate[T]) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
}
