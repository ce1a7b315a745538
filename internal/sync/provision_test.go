// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"testing"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/ticket"
)

func TestProvisionCreatesTypedRoots(t *testing.T) {
	store := newTestStore(t)
	cfg := testConfig()
	ctx := context.Background()

	if err := Provision(ctx, store, cfg); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}

	wantTypes := map[string]string{
		cfg.Refs.NetworkContext:      graph.TypeContext,
		cfg.Refs.TicketContext:       graph.TypeContext,
		cfg.Refs.EquipmentContext:    graph.TypeContext,
		cfg.Refs.Building:            graph.TypeBuilding,
		cfg.Refs.ControlPointProfile: graph.TypeContext,
	}
	for name, wantType := range wantTypes {
		node, err := store.Context(ctx, name)
		if err != nil {
			t.Fatalf("Context(%q) error: %v", name, err)
		}
		if node.Type != wantType {
			t.Errorf("Context(%q).Type = %q, want %q", name, node.Type, wantType)
		}
	}
}

func TestProvisionIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	cfg := testConfig()
	ctx := context.Background()

	if err := Provision(ctx, store, cfg); err != nil {
		t.Fatalf("Provision() error: %v", err)
	}
	network, err := store.Context(ctx, cfg.Refs.NetworkContext)
	if err != nil {
		t.Fatalf("Context() error: %v", err)
	}

	if err := Provision(ctx, store, cfg); err != nil {
		t.Fatalf("Provision() second run error: %v", err)
	}
	again, err := store.Context(ctx, cfg.Refs.NetworkContext)
	if err != nil {
		t.Fatalf("Context() after second run error: %v", err)
	}
	if again.ID != network.ID {
		t.Errorf("network context recreated: %q != %q", again.ID, network.ID)
	}

	tickets, err := store.Context(ctx, cfg.Refs.TicketContext)
	if err != nil {
		t.Fatalf("Context() error: %v", err)
	}
	processes, err := store.Children(ctx, tickets.ID, graph.RelHasProcess)
	if err != nil {
		t.Fatalf("Children() error: %v", err)
	}
	if len(processes) != 1 {
		t.Fatalf("Expected 1 ticket process after two runs, got %d", len(processes))
	}
	steps, err := store.Children(ctx, processes[0].ID, graph.RelHasStep)
	if err != nil {
		t.Fatalf("Children() error: %v", err)
	}
	if len(steps) != 1 || steps[0].Name != ticket.RaisedStepName {
		t.Fatalf("Expected a single %q step after two runs, got %v", ticket.RaisedStepName, steps)
	}
}
