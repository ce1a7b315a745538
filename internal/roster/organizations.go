// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package roster

import (
	"context"
	"fmt"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/metrics"
)

// OrganizationRegistry is the organization boundary consumed by the
// sync engine's reconciler. Organizations outlive the daily occupant
// purge; membership edges to purged occupants dangle harmlessly and
// are skipped on listing.
type OrganizationRegistry interface {
	// Context returns the organization context node, creating it on
	// first use.
	Context(ctx context.Context) (*graph.Node, error)

	// List returns every organization.
	List(ctx context.Context) ([]*graph.Node, error)

	// Ensure resolves an organization by name, creating it when absent.
	Ensure(ctx context.Context, name string) (*graph.Node, error)

	// Members lists the occupants linked to an organization.
	Members(ctx context.Context, orgID string) ([]*graph.Node, error)

	// AddMember links an occupant to an organization. Re-adding an
	// existing member is a no-op.
	AddMember(ctx context.Context, orgID, occupantID string) error
}

// GraphOrganizations implements OrganizationRegistry on the entity
// graph.
type GraphOrganizations struct {
	store       graph.Store
	contextName string
}

// NewGraphOrganizations creates an organization registry rooted at the
// named context.
func NewGraphOrganizations(store graph.Store, contextName string) *GraphOrganizations {
	return &GraphOrganizations{store: store, contextName: contextName}
}

func (r *GraphOrganizations) Context(ctx context.Context) (*graph.Node, error) {
	return r.store.GetOrCreateContext(ctx, r.contextName, graph.TypeContext)
}

func (r *GraphOrganizations) List(ctx context.Context) ([]*graph.Node, error) {
	root, err := r.Context(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := r.store.Children(ctx, root.ID, graph.RelHasOrganization)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return nodes, nil
}

func (r *GraphOrganizations) Ensure(ctx context.Context, name string) (*graph.Node, error) {
	root, err := r.Context(ctx)
	if err != nil {
		return nil, err
	}
	if existing, err := r.store.ChildByName(ctx, root.ID, graph.RelHasOrganization, name); err == nil {
		return existing, nil
	}

	node, err := r.store.CreateNode(ctx, name, graph.TypeOrganization)
	if err != nil {
		return nil, fmt.Errorf("failed to create organization %q: %w", name, err)
	}
	if err := r.store.AddChild(ctx, root.ID, graph.RelHasOrganization, node.ID); err != nil {
		return nil, fmt.Errorf("failed to attach organization %q: %w", name, err)
	}
	metrics.OrganizationsCreated.Inc()
	return node, nil
}

func (r *GraphOrganizations) Members(ctx context.Context, orgID string) ([]*graph.Node, error) {
	nodes, err := r.store.Children(ctx, orgID, graph.RelHasMember)
	if err != nil {
		return nil, fmt.Errorf("failed to list members of %s: %w", orgID, err)
	}
	return nodes, nil
}

func (r *GraphOrganizations) AddMember(ctx context.Context, orgID, occupantID string) error {
	if err := r.store.AddChild(ctx, orgID, graph.RelHasMember, occupantID); err != nil {
		return fmt.Errorf("failed to add member %s to %s: %w", occupantID, orgID, err)
	}
	return nil
}
