// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package stream

import (
	"sync"
)

// Buffer is an append-only, ordered store of samples for one stream.
//
// Append, Snapshot and Len are safe for concurrent use. Clear is not
// synchronised against in-flight appends by the buffer itself: the owner
// must only call it while no producer is delivering.
type Buffer[T any] struct {
	mu      sync.RWMutex
	samples []T
}

// NewBuffer returns an empty buffer with room for capacity samples.
func NewBuffer[T any](capacity int) *Buffer[T] {
	return &Buffer[T]{samples: make([]T, 0, capacity)}
}

// Append adds one sample at the end of the buffer.
func (b *Buffer[T]) Append(s T) {
	b.mu.Lock()
	b.samples = append(b.samples, s)
	b.mu.Unlock()
}

// Snapshot returns a copy of the samples in append order.
// The result never aliases the buffer's storage.
func (b *Buffer[T]) Snapshot() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]T, len(b.samples))
	copy(out, b.samples)
	return out
}

// Len returns the number of samples currently stored.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	n := len(b.samples)
	b.mu.RUnlock()
	return n
}

// Clear drops every sample and releases the backing array, so a long
// session does not pin its peak memory into the next one.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	b.samples = nil
	b.mu.Unlock()
}
