// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package roster maintains the daily occupant and organization
// registries in the entity graph. Occupants are keyed by their badge
// identifier and live only until the next daily reset; organizations
// persist across days.
package roster

import (
	"context"
	"fmt"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/metrics"
)

// AttrCategory is the attribute category roster fields are stored under.
const AttrCategory = "roster"

// Occupant is one identity observed in a badge-accept event.
type Occupant struct {
	// NodeID is the backing graph node, empty until registered.
	NodeID string

	// Identifier is the badge identifier and the registry key.
	Identifier string

	FullName string
	Service  string
	Company  string
}

// OccupantRegistry is the occupant boundary consumed by the sync
// engine's reconciler and by the daily reset.
type OccupantRegistry interface {
	// Context returns the occupant context node, creating it on first use.
	Context(ctx context.Context) (*graph.Node, error)

	// List returns every occupant currently registered.
	List(ctx context.Context) ([]Occupant, error)

	// Add registers a new occupant. Callers are expected to have
	// checked ByIdentifier first; a duplicate add creates no second
	// node and returns the existing one.
	Add(ctx context.Context, o Occupant) (*graph.Node, error)

	// ByIdentifier resolves an occupant by badge identifier.
	// Returns graph.ErrNotFound when unknown.
	ByIdentifier(ctx context.Context, identifier string) (*graph.Node, error)

	// PurgeAll removes every occupant from the context.
	PurgeAll(ctx context.Context) error
}

// GraphOccupants implements OccupantRegistry on the entity graph.
// Occupant nodes are named by identifier so lookups ride the child
// name index instead of scanning the roster.
type GraphOccupants struct {
	store       graph.Store
	contextName string
}

// NewGraphOccupants creates an occupant registry rooted at the named
// context.
func NewGraphOccupants(store graph.Store, contextName string) *GraphOccupants {
	return &GraphOccupants{store: store, contextName: contextName}
}

func (r *GraphOccupants) Context(ctx context.Context) (*graph.Node, error) {
	return r.store.GetOrCreateContext(ctx, r.contextName, graph.TypeContext)
}

func (r *GraphOccupants) List(ctx context.Context) ([]Occupant, error) {
	root, err := r.Context(ctx)
	if err != nil {
		return nil, err
	}
	nodes, err := r.store.Children(ctx, root.ID, graph.RelHasOccupant)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupants: %w", err)
	}
	occupants := make([]Occupant, 0, len(nodes))
	for _, node := range nodes {
		o := Occupant{NodeID: node.ID, Identifier: node.Name}
		o.FullName, _ = r.store.Attribute(ctx, node.ID, AttrCategory, "fullName")
		o.Service, _ = r.store.Attribute(ctx, node.ID, AttrCategory, "service")
		o.Company, _ = r.store.Attribute(ctx, node.ID, AttrCategory, "company")
		occupants = append(occupants, o)
	}
	return occupants, nil
}

func (r *GraphOccupants) Add(ctx context.Context, o Occupant) (*graph.Node, error) {
	root, err := r.Context(ctx)
	if err != nil {
		return nil, err
	}
	if existing, err := r.store.ChildByName(ctx, root.ID, graph.RelHasOccupant, o.Identifier); err == nil {
		return existing, nil
	}

	node, err := r.store.CreateNode(ctx, o.Identifier, graph.TypeOccupant)
	if err != nil {
		return nil, fmt.Errorf("failed to create occupant %q: %w", o.Identifier, err)
	}
	attrs := map[string]string{
		"fullName": o.FullName,
		"service":  o.Service,
		"company":  o.Company,
	}
	for name, value := range attrs {
		if err := r.store.SetAttribute(ctx, node.ID, AttrCategory, name, value); err != nil {
			return nil, fmt.Errorf("failed to tag occupant %q: %w", o.Identifier, err)
		}
	}
	if err := r.store.AddChild(ctx, root.ID, graph.RelHasOccupant, node.ID); err != nil {
		return nil, fmt.Errorf("failed to attach occupant %q: %w", o.Identifier, err)
	}
	metrics.OccupantsRegistered.Inc()
	return node, nil
}

func (r *GraphOccupants) ByIdentifier(ctx context.Context, identifier string) (*graph.Node, error) {
	root, err := r.Context(ctx)
	if err != nil {
		return nil, err
	}
	return r.store.ChildByName(ctx, root.ID, graph.RelHasOccupant, identifier)
}

func (r *GraphOccupants) PurgeAll(ctx context.Context) error {
	root, err := r.Context(ctx)
	if err != nil {
		return err
	}
	if _, err := r.store.RemoveChildren(ctx, root.ID, graph.RelHasOccupant); err != nil {
		return fmt.Errorf("failed to purge occupants: %w", err)
	}
	return nil
}
