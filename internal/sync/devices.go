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
)

// Counter endpoint names owned by every device.
const (
	CounterIn  = "In"
	CounterOut = "Out"
)

// alwinAttrCategory groups the descriptive attributes copied from the
// triggering event onto a new device node.
const alwinAttrCategory = "alwin"

// Device is one materialized door/reader entity with its two counter
// endpoints resolved.
type Device struct {
	Node  *graph.Node
	InID  string
	OutID string
}

// Complete reports whether both counters resolved. An incomplete device
// is a data anomaly; events against it are dropped, not fatal.
func (d *Device) Complete() bool {
	return d.InID != "" && d.OutID != ""
}

// Materializer lazily creates devices and their counters under the
// virtual network node. Devices are keyed by point name and never
// deleted. The in-memory index is built once per initialization and
// refreshed only when a device is created, so repeated events resolve
// without graph lookups.
//
// Not safe for concurrent use; the engine runs one cycle at a time.
type Materializer struct {
	store     graph.Store
	networkID string

	// codeIndex maps normalized equipment codes to equipment node IDs.
	codeIndex map[string]string

	// devices indexes point name to materialized device.
	devices map[string]*Device
}

// NewMaterializer creates a materializer rooted at the virtual network
// node. codeIndex may be nil when no equipment registry is configured.
func NewMaterializer(store graph.Store, networkID string, codeIndex map[string]string) *Materializer {
	return &Materializer{
		store:     store,
		networkID: networkID,
		codeIndex: codeIndex,
		devices:   make(map[string]*Device),
	}
}

// LoadIndex builds the point-name index from the devices already in the
// graph. Called once at initialization.
func (m *Materializer) LoadIndex(ctx context.Context) error {
	nodes, err := m.store.Children(ctx, m.networkID, graph.RelHasDevice)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}
	for _, node := range nodes {
		dev := &Device{Node: node}
		if in, err := m.store.ChildByName(ctx, node.ID, graph.RelHasEndpoint, CounterIn); err == nil {
			dev.InID = in.ID
		}
		if out, err := m.store.ChildByName(ctx, node.ID, graph.RelHasEndpoint, CounterOut); err == nil {
			dev.OutID = out.ID
		}
		m.devices[node.Name] = dev
	}
	logging.Debug().Int("devices", len(m.devices)).Msg("Device index loaded")
	return nil
}

// EnsureDevice resolves the device for a point name, creating it with
// its two zeroed counters on first observation. Subsequent calls with
// the same point name return the existing device without re-creating
// anything.
func (m *Materializer) EnsureDevice(ctx context.Context, ev *alwin.AccessEvent) (*Device, error) {
	if dev, ok := m.devices[ev.PointName]; ok {
		return dev, nil
	}

	node, err := m.store.CreateNode(ctx, ev.PointName, graph.TypeDevice)
	if err != nil {
		return nil, fmt.Errorf("failed to create device %q: %w", ev.PointName, err)
	}
	if err := m.store.AddChild(ctx, m.networkID, graph.RelHasDevice, node.ID); err != nil {
		return nil, fmt.Errorf("failed to attach device %q: %w", ev.PointName, err)
	}

	dev := &Device{Node: node}
	for _, name := range []string{CounterIn, CounterOut} {
		counter, err := m.store.CreateNode(ctx, name, graph.TypeEndpoint)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s counter for %q: %w", name, ev.PointName, err)
		}
		if err := m.store.SetValue(ctx, counter.ID, 0); err != nil {
			return nil, fmt.Errorf("failed to zero %s counter for %q: %w", name, ev.PointName, err)
		}
		if err := m.store.AddChild(ctx, node.ID, graph.RelHasEndpoint, counter.ID); err != nil {
			return nil, fmt.Errorf("failed to attach %s counter for %q: %w", name, ev.PointName, err)
		}
		if name == CounterIn {
			dev.InID = counter.ID
		} else {
			dev.OutID = counter.ID
		}
	}

	attrs := map[string]string{
		"deviceName": ev.DeviceName,
		"pointName":  ev.PointName,
		"alarmCode":  ev.AlarmCode,
	}
	for name, value := range attrs {
		if err := m.store.SetAttribute(ctx, node.ID, alwinAttrCategory, name, value); err != nil {
			return nil, fmt.Errorf("failed to tag device %q: %w", ev.PointName, err)
		}
	}

	// Link the device under its equipment when the point name carries a
	// resolvable code. No code or no matching equipment means no
	// linkage, never an error.
	if code, ok := ExtractCode(ev.PointName); ok {
		if equipmentID, found := m.codeIndex[code]; found {
			if err := m.store.AddChild(ctx, equipmentID, graph.RelHasDevice, node.ID); err != nil {
				return nil, fmt.Errorf("failed to link device %q to equipment: %w", ev.PointName, err)
			}
		}
	}

	m.devices[ev.PointName] = dev
	metrics.DevicesCreated.Inc()
	logging.Info().Str("device", ev.PointName).Msg("Device materialized")
	return dev, nil
}

// Devices returns the current point-name index. Used by the occupancy
// aggregator's full recompute.
func (m *Materializer) Devices() map[string]*Device {
	return m.devices
}
