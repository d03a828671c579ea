package acquisition

import (
	"errors"
	"sync"
)

// fakeSource lets tests push events by hand. Pushing after Unsubscribe
// goes nowhere, like a torn-down platform callback.
type fakeSource[T any] struct {
	mu           sync.Mutex
	failWith     error
	h            Handler[T]
	subscribes   int
	unsubscribes int
}

func (f *fakeSource[T]) Subscribe(h Handler[T]) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	f.subscribes++
	gate := NewGate(h)
	f.h = gate.Deliver
	return SubscriptionFunc(func() {
		gate.Close()
		f.mu.Lock()
		f.unsubscribes++
		f.mu.Unlock()
	}), nil
}

func (f *fakeSource[T]) Push(v T) { f.deliver(v, nil) }

func (f *fakeSource[T]) Fail(err error) {
	var zero T
	f.deliver(zero, err)
}

func (f *fakeSource[T]) deliver(v T, err error) {
	f.mu.Lock()
	h := f.h
	f.mu.Unlock()
	if h != nil {
		h(v, err)
	}
}

func (f *fakeSource[T]) Counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes, f.unsubscribes
}

var errNoDevice = errors.New("no device")
