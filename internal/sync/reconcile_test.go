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
	"github.com/portier-bms/portier/internal/roster"
)

func TestReconcileRegistersOccupantOnce(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()
	now := time.Now()

	// The same badge swipes twice within one batch.
	events := []alwin.AccessEvent{
		{PointName: "LE-1", MessageCode: MessageBadgeAccepted, OccurredAt: ts(now), IdentifierInfo: "b-1", FirstName: "Marie", LastName: "Dupont", CompanyName: "Acme"},
		{PointName: "LE-1", MessageCode: MessageBadgeAccepted, OccurredAt: ts(now), IdentifierInfo: "b-1", FirstName: "Marie", LastName: "Dupont", CompanyName: "Acme"},
	}
	if err := m.reconciler.Run(ctx, events); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	occupants := roster.NewGraphOccupants(store, "Occupants")
	list, err := occupants.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("occupants = %d, want 1", len(list))
	}
	if list[0].FullName != "Marie Dupont" || list[0].Company != "Acme" {
		t.Errorf("occupant = %+v", list[0])
	}
}

func TestReconcileLinksMembership(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()
	now := time.Now()

	events := []alwin.AccessEvent{
		{PointName: "LE-1", MessageCode: MessageBadgeAccepted, OccurredAt: ts(now), IdentifierInfo: "b-1", CompanyName: "Acme"},
		{PointName: "LE-1", MessageCode: MessageBadgeAccepted, OccurredAt: ts(now), IdentifierInfo: "b-2", CompanyName: "Acme"},
	}
	if err := m.reconciler.Run(ctx, events); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	orgs := roster.NewGraphOrganizations(store, "Organizations")
	list, err := orgs.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Acme" {
		t.Fatalf("organizations = %v, want just Acme", list)
	}
	members, err := orgs.Members(ctx, list[0].ID)
	if err != nil {
		t.Fatalf("Members() error: %v", err)
	}
	if len(members) != 2 {
		t.Errorf("members = %d, want 2", len(members))
	}
}

func TestReconcileIgnoresNonBadgeEvents(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()
	now := time.Now()

	events := []alwin.AccessEvent{
		{PointName: "LE-1", MessageCode: MessagePushButton, OccurredAt: ts(now), IdentifierInfo: "b-1"},
		{PointName: "LE-1", MessageCode: "Badge refusé", OccurredAt: ts(now), IdentifierInfo: "b-2"},
		{PointName: "LE-1", MessageCode: MessageBadgeAccepted, OccurredAt: ts(now), IdentifierInfo: ""},
	}
	if err := m.reconciler.Run(ctx, events); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	occupants := roster.NewGraphOccupants(store, "Occupants")
	list, err := occupants.List(ctx)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("occupants = %d, want 0", len(list))
	}
}

func TestReconcileDefaultsCompany(t *testing.T) {
	m, store := newTestManager(t, &fakeClient{})
	ctx := context.Background()

	events := []alwin.AccessEvent{
		{PointName: "LE-1", MessageCode: MessageBadgeAccepted, OccurredAt: ts(time.Now()), IdentifierInfo: "b-1"},
	}
	if err := m.reconciler.Run(ctx, events); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	orgs := roster.NewGraphOrganizations(store, "Organizations")
	org, err := orgs.Context(ctx)
	if err != nil {
		t.Fatalf("Context() error: %v", err)
	}
	if _, err := store.ChildByName(ctx, org.ID, graph.RelHasOrganization, alwin.UnknownCompany); err != nil {
		t.Errorf("expected %q organization: %v", alwin.UnknownCompany, err)
	}
}
