// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"testing"
	"time"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/models/alwin"
	"github.com/portier-bms/portier/internal/timeseries"
)

func TestEnsureDeviceTagsAlwinAttributes(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()

	ev := accessEvent("PORTE LE-1 A", MessageBadgeAccepted, time.Now())
	ev.DeviceName = "UTL 4"
	ev.AlarmCode = "AL_BADGE"
	dev, err := m.materializer.EnsureDevice(ctx, &ev)
	if err != nil {
		t.Fatalf("EnsureDevice() error: %v", err)
	}

	wantAttrs := map[string]string{
		"deviceName": "UTL 4",
		"pointName":  "PORTE LE-1 A",
		"alarmCode":  "AL_BADGE",
	}
	for name, want := range wantAttrs {
		got, err := store.Attribute(ctx, dev.Node.ID, alwinAttrCategory, name)
		if err != nil {
			t.Fatalf("Attribute(%q) error: %v", name, err)
		}
		if got != want {
			t.Errorf("Attribute(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestEnsureDeviceIdempotent(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()

	ev := accessEvent("PORTE LE-1 A", MessageBadgeAccepted, time.Now())
	first, err := m.materializer.EnsureDevice(ctx, &ev)
	if err != nil {
		t.Fatalf("EnsureDevice() error: %v", err)
	}
	second, err := m.materializer.EnsureDevice(ctx, &ev)
	if err != nil {
		t.Fatalf("second EnsureDevice() error: %v", err)
	}
	if second.Node.ID != first.Node.ID {
		t.Errorf("EnsureDevice() created duplicate: %s vs %s", second.Node.ID, first.Node.ID)
	}

	devices, err := store.Children(ctx, m.materializer.networkID, graph.RelHasDevice)
	if err != nil {
		t.Fatalf("Children() error: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("devices = %d, want 1", len(devices))
	}

	counters, err := store.Children(ctx, first.Node.ID, graph.RelHasEndpoint)
	if err != nil {
		t.Fatalf("Children(endpoints) error: %v", err)
	}
	if len(counters) != 2 {
		t.Fatalf("counters = %d, want exactly In and Out", len(counters))
	}
	for _, c := range counters {
		v, err := store.LoadValue(ctx, c.ID)
		if err != nil || v != 0 {
			t.Errorf("counter %s = %v (err=%v), want 0", c.Name, v, err)
		}
	}
}

func TestApplyCounterSemantics(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)

	events := []struct {
		code    string
		wantIn  float64
		wantOut float64
	}{
		{MessageBadgeAccepted, 1, 0},
		{MessagePushButton, 1, 1},
		{"Badge refusé", 1, 1}, // no counter mutation
	}

	for _, step := range events {
		ev := accessEvent("PORTE LE-1 A", step.code, at)
		if err := m.applier.ApplyAccessEvents(ctx, []alwin.AccessEvent{ev}); err != nil {
			t.Fatalf("ApplyAccessEvents(%q) error: %v", step.code, err)
		}

		dev := m.materializer.Devices()["PORTE LE-1 A"]
		in, _ := store.LoadValue(ctx, dev.InID)
		out, _ := store.LoadValue(ctx, dev.OutID)
		if in != step.wantIn || out != step.wantOut {
			t.Errorf("after %q: (in, out) = (%v, %v), want (%v, %v)", step.code, in, out, step.wantIn, step.wantOut)
		}
	}
}

func TestApplyAppendsSampleAtEventTime(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()
	at := time.Date(2026, 8, 30, 10, 0, 0, 0, time.Local)

	ev := accessEvent("PORTE LE-1 A", MessageBadgeAccepted, at)
	if err := m.applier.ApplyAccessEvents(ctx, []alwin.AccessEvent{ev}); err != nil {
		t.Fatalf("ApplyAccessEvents() error: %v", err)
	}

	dev := m.materializer.Devices()["PORTE LE-1 A"]
	recorder := timeseries.NewBadgerRecorder(store.DB())
	samples, err := recorder.Samples(ctx, dev.InID, at.Add(-time.Minute), at.Add(time.Minute))
	if err != nil {
		t.Fatalf("Samples() error: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("samples = %d, want exactly 1", len(samples))
	}
	if samples[0].Value != 1 {
		t.Errorf("sample value = %v, want 1", samples[0].Value)
	}
	if !samples[0].At.Equal(at) {
		t.Errorf("sample at = %v, want event time %v", samples[0].At, at)
	}
}
