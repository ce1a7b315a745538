// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/portier-bms/portier/internal/models/alwin"
	"github.com/portier-bms/portier/internal/roster"
)

func TestInitFailsWithNamedErrorWithoutBootstrap(t *testing.T) {
	store := newTestStore(t)
	cfg := testConfig()
	cfg.Graph.Bootstrap = false

	m := NewManager(cfg, store, &fakeClient{}, nil, roster.NewGraphOccupants(store, "Occupants"), roster.NewGraphOrganizations(store, "Organizations"), nil)
	err := m.Init(context.Background())
	if err == nil {
		t.Fatal("Init() should fail on an empty graph without bootstrap")
	}
	if !strings.Contains(err.Error(), "Network not found") {
		t.Errorf("Init() error = %v, want named 'Network not found'", err)
	}
	if m.Initialized() {
		t.Error("manager must not report initialized after failed Init")
	}
}

func TestRunCycleEndToEnd(t *testing.T) {
	now := time.Now()
	client := &fakeClient{
		access: []alwin.AccessEvent{
			{PointName: "PORTE LE-1 A", MessageCode: MessageBadgeAccepted, OccurredAt: ts(now), IdentifierInfo: "b-1", FirstName: "Marie", LastName: "Dupont", CompanyName: "Acme"},
		},
		alarms: []alwin.AlarmEvent{
			{PointName: "LECTEUR LE-9", MessageCode: "Porte forcée", AlarmID: 7, AlarmCode: "AL_INTRU", OccurredAt: ts(now)},
		},
	}
	m, store := newTestManager(t, client)
	ctx := context.Background()

	if err := m.runCycle(ctx); err != nil {
		t.Fatalf("runCycle() error: %v", err)
	}

	// Counter applied.
	dev, ok := m.materializer.Devices()["PORTE LE-1 A"]
	if !ok {
		t.Fatal("device not materialized")
	}
	in, _ := store.LoadValue(ctx, dev.InID)
	if in != 1 {
		t.Errorf("In counter = %v, want 1", in)
	}

	// Occupant reconciled before the badge count was published.
	if got := pointValue(t, store, "Occupancy", "Badge Count zone-a"); got != 1 {
		t.Errorf("badge count = %v, want 1", got)
	}
	if got := pointValue(t, store, "Occupancy", "Occupancy zone-a"); got != 1 {
		t.Errorf("zone-a occupancy = %v, want 1", got)
	}

	// Alarm routed to the building fallback.
	if got := raisedStepTickets(t, store); len(got) != 1 {
		t.Errorf("tickets = %d, want 1", len(got))
	}

	// Watermark advanced.
	wm, err := m.watermark.Load(ctx)
	if err != nil {
		t.Fatalf("watermark Load() error: %v", err)
	}
	if wm == WatermarkNeverSynced {
		t.Error("watermark did not advance after a successful cycle")
	}
}

func TestRunCycleIsIdempotentAcrossCycles(t *testing.T) {
	now := time.Now()
	client := &fakeClient{
		access: []alwin.AccessEvent{
			{PointName: "PORTE LE-1 A", MessageCode: MessageBadgeAccepted, OccurredAt: ts(now), IdentifierInfo: "b-1", CompanyName: "Acme"},
		},
	}
	m, store := newTestManager(t, client)
	ctx := context.Background()

	if err := m.runCycle(ctx); err != nil {
		t.Fatalf("first runCycle() error: %v", err)
	}
	// The upstream re-delivers the same batch; the watermark filters it.
	if err := m.runCycle(ctx); err != nil {
		t.Fatalf("second runCycle() error: %v", err)
	}

	dev := m.materializer.Devices()["PORTE LE-1 A"]
	in, _ := store.LoadValue(ctx, dev.InID)
	if in != 1 {
		t.Errorf("In counter = %v after re-delivery, want still 1", in)
	}
}

func TestRunCycleAbandonsOnUpstreamError(t *testing.T) {
	client := &fakeClient{accessErr: ErrUpstream}
	m, _ := newTestManager(t, client)
	ctx := context.Background()

	if err := m.runCycle(ctx); err == nil {
		t.Fatal("runCycle() should fail when the upstream is down")
	}

	wm, err := m.watermark.Load(ctx)
	if err != nil {
		t.Fatalf("watermark Load() error: %v", err)
	}
	if wm != WatermarkNeverSynced {
		t.Error("watermark must not advance on a failed cycle")
	}
}

func TestWatermarkMonotonicAcrossCycles(t *testing.T) {
	m, _ := newTestManager(t, &fakeClient{})
	ctx := context.Background()

	var previous int64
	for i := 0; i < 3; i++ {
		if err := m.runCycle(ctx); err != nil {
			t.Fatalf("runCycle() error: %v", err)
		}
		wm, err := m.watermark.Load(ctx)
		if err != nil {
			t.Fatalf("watermark Load() error: %v", err)
		}
		if wm < previous {
			t.Fatalf("watermark regressed: %d < %d", wm, previous)
		}
		previous = wm
	}
}

func TestStartRunsInitialCycleAndStops(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for m.LastSyncTime().IsZero() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the initial cycle")
		case <-time.After(10 * time.Millisecond):
		}
	}

	m.Stop()
	if client.accessCalls == 0 {
		t.Error("no upstream fetch recorded")
	}
}

func TestTriggerSyncRunsExtraCycle(t *testing.T) {
	client := &fakeClient{}
	m, _ := newTestManager(t, client)

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer m.Stop()

	deadline := time.After(5 * time.Second)
	for m.LastSyncTime().IsZero() {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the initial cycle")
		case <-time.After(10 * time.Millisecond):
		}
	}
	first := m.LastSyncTime()

	m.TriggerSync()
	deadline = time.After(5 * time.Second)
	for !m.LastSyncTime().After(first) {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for the triggered cycle")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStartRequiresInit(t *testing.T) {
	store := newTestStore(t)
	m := NewManager(testConfig(), store, &fakeClient{}, nil, roster.NewGraphOccupants(store, "Occupants"), roster.NewGraphOrganizations(store, "Organizations"), nil)
	if err := m.Start(context.Background()); err == nil {
		t.Fatal("Start() before Init() should fail")
	}
}
