// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package session

import (
	"context"
	"log"
	"time"
)

// Sink receives the snapshot of each completed session. How the value is
// serialised, stored or transmitted is up to the implementation.
type Sink interface {
	SaveAndUpload(ctx context.Context, snap Snapshot, start time.Time) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, snap Snapshot, start time.Time) error

func (f SinkFunc) SaveAndUpload(ctx context.Context, snap Snapshot, start time.Time) error {
	return f(ctx, snap, start)
}

// LogSink writes a summary of every finished session to a logger.
type LogSink struct {
	Logger *log.Logger // log.Default() when nil
}

func (l LogSink) SaveAndUpload(ctx context.Context, snap Snapshot, start time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	lg := l.Logger
	if lg == nil {
		lg = log.Default()
	}

	lg.Printf("session %s: %s (started %s, %d samples)",
		snap.ID, snap.Filename(), start.Format(time.RFC3339), snap.TotalSamples)
	for _, st := range snap.Stats() {
		lg.Printf("  - %-13s %6d samples  %7.2f s  %6.1f Hz (interval stddev %.4f s)",
			st.Name, st.Samples, st.DurationSec, st.RateHz, st.JitterSec)
	}
	return nil
}
