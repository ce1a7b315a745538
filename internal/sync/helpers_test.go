// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/portier-bms/portier/internal/config"
	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/models/alwin"
	"github.com/portier-bms/portier/internal/roster"
	"github.com/portier-bms/portier/internal/ticket"
	"github.com/portier-bms/portier/internal/timeseries"
)

// newTestStore opens an in-memory graph store.
func newTestStore(t *testing.T) *graph.BadgerStore {
	t.Helper()
	store, err := graph.Open("", true)
	if err != nil {
		t.Fatalf("graph.Open() error: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// testConfig returns a config wired for in-memory engine tests.
func testConfig() *config.Config {
	return &config.Config{
		Alwin: config.AlwinConfig{
			BaseURL:           "http://alwin.test",
			Username:          "u",
			Password:          "p",
			APIKey:            "k",
			PageSize:          100,
			Timeout:           5 * time.Second,
			RequestsPerSecond: 100,
			Burst:             10,
		},
		Sync: config.SyncConfig{
			Interval:      time.Minute,
			ErrorBackoff:  10 * time.Millisecond,
			RetryAttempts: 1,
			RetryDelay:    time.Millisecond,
		},
		Graph: config.GraphConfig{
			Path:      "",
			InMemory:  true,
			Bootstrap: true,
		},
		Refs: config.RefsConfig{
			NetworkContext:      "Network",
			VirtualNetwork:      "Alwin",
			TicketContext:       "Tickets",
			TicketProcess:       "Maintenance",
			EquipmentContext:    "Equipments",
			Building:            "Building",
			OccupantContext:     "Occupants",
			OrganizationContext: "Organizations",
			ControlPointProfile: "Occupancy",
		},
		Zones: config.ZonesConfig{
			ZoneA: config.ZoneConfig{
				Name:           "zone-a",
				OccupancyPoint: "Occupancy zone-a",
				BadgePoint:     "Badge Count zone-a",
				DeviceIDs:      []string{"LE-1"},
			},
			ZoneB: config.ZoneConfig{
				Name:           "zone-b",
				OccupancyPoint: "Occupancy zone-b",
				BadgePoint:     "Badge Count zone-b",
				DeviceIDs:      []string{"LE-2"},
			},
			ZoneC: config.ZoneConfig{
				Name:           "zone-c",
				OccupancyPoint: "Occupancy zone-c",
				BadgePoint:     "Badge Count zone-c",
				InDevices:      []string{"PORTE LE-3 ENTREE"},
				OutDevices:     []string{"PORTE LE-3 SORTIE"},
			},
			TotalPoint: "Occupancy Total",
		},
	}
}

// buildManager wires a manager over an existing store and config and
// initializes it.
func buildManager(t *testing.T, store *graph.BadgerStore, cfg *config.Config) *Manager {
	t.Helper()
	return buildManagerWithClient(t, store, cfg, &fakeClient{})
}

func buildManagerWithClient(t *testing.T, store *graph.BadgerStore, cfg *config.Config, client Client) *Manager {
	t.Helper()
	recorder := timeseries.NewBadgerRecorder(store.DB())
	occupants := roster.NewGraphOccupants(store, cfg.Refs.OccupantContext)
	organizations := roster.NewGraphOrganizations(store, cfg.Refs.OrganizationContext)
	tickets := ticket.NewGraphService(store)

	m := NewManager(cfg, store, client, recorder, occupants, organizations, tickets)
	if err := m.Init(context.Background()); err != nil {
		t.Fatalf("Init() error: %v", err)
	}
	return m
}

// newTestManager wires a manager over in-memory storage and the given
// client, bootstraps the graph and initializes the pipeline.
func newTestManager(t *testing.T, client Client) (*Manager, *graph.BadgerStore) {
	t.Helper()
	store := newTestStore(t)
	return buildManagerWithClient(t, store, testConfig(), client), store
}

// fakeClient serves canned event batches.
type fakeClient struct {
	access    []alwin.AccessEvent
	alarms    []alwin.AlarmEvent
	accessErr error
	alarmErr  error

	accessCalls int
	alarmCalls  int
}

func (f *fakeClient) FetchAccessEvents(context.Context) ([]alwin.AccessEvent, error) {
	f.accessCalls++
	if f.accessErr != nil {
		return nil, f.accessErr
	}
	return f.access, nil
}

func (f *fakeClient) FetchAlarmEvents(context.Context) ([]alwin.AlarmEvent, error) {
	f.alarmCalls++
	if f.alarmErr != nil {
		return nil, f.alarmErr
	}
	return f.alarms, nil
}

// ts builds a pointer timestamp for event literals.
func ts(t time.Time) *time.Time {
	return &t
}

// accessEvent builds a badge/door event at the given time.
func accessEvent(point, code string, at time.Time) alwin.AccessEvent {
	return alwin.AccessEvent{
		PointName:      point,
		MessageCode:    code,
		OccurredAt:     ts(at),
		IdentifierInfo: "badge-" + point,
		FirstName:      "Ada",
		LastName:       "Lovelace",
		CompanyName:    "Acme",
	}
}
