// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"fmt"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/models/alwin"
	"github.com/portier-bms/portier/internal/timeseries"
)

// Message codes that drive counter increments. Any other code leaves
// both counters unchanged; the event may still feed the reconciler.
const (
	MessageBadgeAccepted = "Badge accepté"
	MessagePushButton    = "Ouverture porte : bouton poussoir"
)

// Applier dispatches filtered access events onto device counters.
// Mutation is plain read-modify-write; only one cycle runs at a time
// and events within a cycle are applied in order.
type Applier struct {
	store        graph.Store
	materializer *Materializer
	recorder     timeseries.Recorder
}

// NewApplier creates an applier over the given materializer and
// time-series recorder.
func NewApplier(store graph.Store, materializer *Materializer, recorder timeseries.Recorder) *Applier {
	return &Applier{store: store, materializer: materializer, recorder: recorder}
}

// ApplyAccessEvents materializes devices and applies counter increments
// for one filtered batch, oldest-first. Data anomalies (a device missing
// a counter) skip the single affected event; graph errors abort the
// batch.
func (a *Applier) ApplyAccessEvents(ctx context.Context, events []alwin.AccessEvent) error {
	for i := range events {
		ev := &events[i]
		dev, err := a.materializer.EnsureDevice(ctx, ev)
		if err != nil {
			return fmt.Errorf("failed to materialize device for %q: %w", ev.PointName, err)
		}
		if !dev.Complete() {
			metrics.EventsSkipped.WithLabelValues("missing_counter").Inc()
			logging.Error().Str("device", ev.PointName).Msg("Device is missing a counter endpoint, dropping event")
			continue
		}

		switch ev.MessageCode {
		case MessagePushButton:
			if err := a.increment(ctx, dev.OutID, ev); err != nil {
				return fmt.Errorf("failed to apply push-button event on %q: %w", ev.PointName, err)
			}
			metrics.EventsApplied.WithLabelValues("push_button_out").Inc()
		case MessageBadgeAccepted:
			if err := a.increment(ctx, dev.InID, ev); err != nil {
				return fmt.Errorf("failed to apply badge event on %q: %w", ev.PointName, err)
			}
			metrics.EventsApplied.WithLabelValues("badge_in").Inc()
		default:
			metrics.EventsApplied.WithLabelValues("other").Inc()
		}
	}
	return nil
}

// increment adds one to a counter and appends a time-series sample with
// the new value at the event timestamp.
func (a *Applier) increment(ctx context.Context, counterID string, ev *alwin.AccessEvent) error {
	current, err := a.store.LoadValue(ctx, counterID)
	if err != nil {
		return err
	}
	next := current + 1
	if err := a.store.SetValue(ctx, counterID, next); err != nil {
		return err
	}
	return a.recorder.AppendSample(ctx, counterID, next, *ev.OccurredAt)
}
