// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/roster"
)

// Resetter zeroes every device counter and purges the occupant roster
// when a cycle first runs on a new calendar day. Counters and daily
// occupant identity share the once-per-day lifecycle.
type Resetter struct {
	store        graph.Store
	materializer *Materializer
	occupants    roster.OccupantRegistry
}

// NewResetter creates a daily resetter.
func NewResetter(store graph.Store, materializer *Materializer, occupants roster.OccupantRegistry) *Resetter {
	return &Resetter{store: store, materializer: materializer, occupants: occupants}
}

// MaybeReset performs the daily reset when the watermark's calendar day
// differs from now. The never-synced sentinel skips the reset. Running
// twice on the same day is a no-op because the caller advances the
// watermark into the current day after the first successful cycle.
func (r *Resetter) MaybeReset(ctx context.Context, watermark int64, now time.Time) error {
	if watermark == WatermarkNeverSynced {
		return nil
	}
	if sameDay(WatermarkTime(watermark), now) {
		return nil
	}

	for name, dev := range r.materializer.Devices() {
		if dev.InID != "" {
			if err := r.store.SetValue(ctx, dev.InID, 0); err != nil {
				return fmt.Errorf("failed to reset In counter of %q: %w", name, err)
			}
		}
		if dev.OutID != "" {
			if err := r.store.SetValue(ctx, dev.OutID, 0); err != nil {
				return fmt.Errorf("failed to reset Out counter of %q: %w", name, err)
			}
		}
	}

	if err := r.occupants.PurgeAll(ctx); err != nil {
		return fmt.Errorf("failed to purge roster: %w", err)
	}

	metrics.DailyResets.Inc()
	logging.Info().Time("day", now).Msg("Daily reset performed")
	return nil
}
