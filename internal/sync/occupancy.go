// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/roster"
	"github.com/portier-bms/portier/internal/timeseries"
)

// ZoneRule classifies devices into one occupancy zone and names the
// control points the zone's aggregates are published to.
//
// A rule matches either by substring (Fragments against the device
// name) or by exact name lists (InDevices adds the device delta,
// OutDevices subtracts it). The first matching rule wins.
type ZoneRule struct {
	Name             string
	OccupancyPointID string
	BadgePointID     string

	Fragments  []string
	InDevices  map[string]struct{}
	OutDevices map[string]struct{}
}

func (z *ZoneRule) contribution(deviceName string, delta float64) (float64, bool) {
	for _, frag := range z.Fragments {
		if frag != "" && strings.Contains(deviceName, frag) {
			return delta, true
		}
	}
	if _, ok := z.InDevices[deviceName]; ok {
		return delta, true
	}
	if _, ok := z.OutDevices[deviceName]; ok {
		return -delta, true
	}
	return 0, false
}

// Aggregator recomputes per-zone occupancy from scratch each cycle:
// every device's In−Out delta is accumulated into its zone bucket plus
// a whole-network total, and the current roster size is published as
// the badge-count aggregate for every zone. Both families go to their
// control points and the time-series recorder.
type Aggregator struct {
	store        graph.Store
	recorder     timeseries.Recorder
	occupants    roster.OccupantRegistry
	materializer *Materializer
	zones        []ZoneRule
	totalPointID string
}

// NewAggregator creates an occupancy aggregator.
func NewAggregator(store graph.Store, recorder timeseries.Recorder, occupants roster.OccupantRegistry, materializer *Materializer, zones []ZoneRule, totalPointID string) *Aggregator {
	return &Aggregator{
		store:        store,
		recorder:     recorder,
		occupants:    occupants,
		materializer: materializer,
		zones:        zones,
		totalPointID: totalPointID,
	}
}

// Recompute iterates every known device, loads its live counter values
// and publishes the zone aggregates. Not incremental; a cycle always
// publishes the full picture.
func (a *Aggregator) Recompute(ctx context.Context) error {
	totals := make(map[string]float64, len(a.zones))
	networkTotal := 0.0

	for name, dev := range a.materializer.Devices() {
		if !dev.Complete() {
			continue
		}
		in, err := a.store.LoadValue(ctx, dev.InID)
		if err != nil {
			return fmt.Errorf("failed to load In counter of %q: %w", name, err)
		}
		out, err := a.store.LoadValue(ctx, dev.OutID)
		if err != nil {
			return fmt.Errorf("failed to load Out counter of %q: %w", name, err)
		}
		delta := in - out
		networkTotal += delta

		for i := range a.zones {
			if contribution, ok := a.zones[i].contribution(name, delta); ok {
				totals[a.zones[i].Name] += contribution
				break
			}
		}
	}

	occupants, err := a.occupants.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to count roster: %w", err)
	}
	badgeCount := float64(len(occupants))

	for i := range a.zones {
		zone := &a.zones[i]
		occupancy := totals[zone.Name]
		if err := a.publish(ctx, zone.OccupancyPointID, occupancy); err != nil {
			return fmt.Errorf("failed to publish occupancy for zone %q: %w", zone.Name, err)
		}
		if err := a.publish(ctx, zone.BadgePointID, badgeCount); err != nil {
			return fmt.Errorf("failed to publish badge count for zone %q: %w", zone.Name, err)
		}
		metrics.ZoneOccupancy.WithLabelValues(zone.Name).Set(occupancy)
		metrics.ZoneBadgeCount.WithLabelValues(zone.Name).Set(badgeCount)
	}
	if err := a.publish(ctx, a.totalPointID, networkTotal); err != nil {
		return fmt.Errorf("failed to publish network total: %w", err)
	}

	logging.Debug().Float64("total", networkTotal).Float64("badge_count", badgeCount).Msg("Occupancy recomputed")
	return nil
}

// publish writes a control point's current value and appends it to the
// time series.
func (a *Aggregator) publish(ctx context.Context, pointID string, value float64) error {
	if err := a.store.SetValue(ctx, pointID, value); err != nil {
		return err
	}
	return a.recorder.AppendLatest(ctx, pointID, value)
}
