// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/metrics"
)

// watermarkCategory/watermarkAttr locate the persisted sync cursor on
// the virtual network node.
const (
	watermarkCategory = "sync"
	watermarkAttr     = "lastSync"
)

// WatermarkNeverSynced is the sentinel cursor value before the first
// successful cycle.
const WatermarkNeverSynced int64 = 0

// Watermark is the persisted sync cursor in epoch milliseconds. It is
// read once at the start of every cycle and advanced only after the
// cycle completes without error, so a failed cycle re-processes the
// same events.
type Watermark struct {
	store  graph.Store
	nodeID string
}

// NewWatermark creates a watermark persisted as an attribute of the
// given node.
func NewWatermark(store graph.Store, nodeID string) *Watermark {
	return &Watermark{store: store, nodeID: nodeID}
}

// Load reads the cursor. A missing attribute is the never-synced
// sentinel, not an error.
func (w *Watermark) Load(ctx context.Context) (int64, error) {
	raw, err := w.store.Attribute(ctx, w.nodeID, watermarkCategory, watermarkAttr)
	if errors.Is(err, graph.ErrNotFound) {
		return WatermarkNeverSynced, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load watermark: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt watermark value %q: %w", raw, err)
	}
	return ms, nil
}

// Advance persists a new cursor value.
func (w *Watermark) Advance(ctx context.Context, ms int64) error {
	if err := w.store.SetAttribute(ctx, w.nodeID, watermarkCategory, watermarkAttr, strconv.FormatInt(ms, 10)); err != nil {
		return fmt.Errorf("failed to advance watermark: %w", err)
	}
	metrics.WatermarkTimestamp.Set(float64(ms) / 1000)
	return nil
}

// Time converts a cursor value to a time.Time. The never-synced
// sentinel maps to the zero time.
func WatermarkTime(ms int64) time.Time {
	if ms == WatermarkNeverSynced {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
