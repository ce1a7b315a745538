// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package graph provides the persistent entity graph the connector
// materializes events into: named nodes, typed parent/child relations,
// categorized attributes, and scalar current values for counters and
// control points.
//
// The Store interface is the boundary the sync engine consumes; the
// BadgerDB implementation in this package is the production backend.
package graph

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a named entity, attribute, or context does
// not exist in the graph.
var ErrNotFound = errors.New("entity not found")

// Node is one graph entity.
type Node struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"created_at"`
}

// Common node types used by the connector.
const (
	TypeContext      = "context"
	TypeDevice       = "device"
	TypeEndpoint     = "endpoint"
	TypeEquipment    = "equipment"
	TypeControlPoint = "controlPoint"
	TypeTicket       = "ticket"
	TypeStep         = "step"
	TypeProcess      = "process"
	TypeOccupant     = "occupant"
	TypeOrganization = "organization"
	TypeBuilding     = "building"
	TypeNetwork      = "network"
)

// Relation names used by the connector.
const (
	RelHasDevice       = "hasDevice"
	RelHasEndpoint     = "hasEndpoint"
	RelHasEquipment    = "hasEquipment"
	RelHasControlPoint = "hasControlPoint"
	RelHasProcess      = "hasProcess"
	RelHasStep         = "hasStep"
	RelHasTicket       = "hasTicket"
	RelHasOccupant     = "hasOccupant"
	RelHasOrganization = "hasOrganization"
	RelHasMember       = "hasMember"
	RelHasNetwork      = "hasNetwork"
)

// Store is the entity graph boundary. All operations are safe for use
// from a single sync cycle; the engine never runs two cycles at once.
type Store interface {
	// CreateNode creates a new node with a generated ID.
	CreateNode(ctx context.Context, name, nodeType string) (*Node, error)

	// Node loads a node by ID. Returns ErrNotFound for unknown IDs.
	Node(ctx context.Context, id string) (*Node, error)

	// Context resolves a root-level context by name. Returns ErrNotFound
	// when no such context exists.
	Context(ctx context.Context, name string) (*Node, error)

	// GetOrCreateContext resolves a root-level context by name, creating
	// it when absent.
	GetOrCreateContext(ctx context.Context, name, nodeType string) (*Node, error)

	// AddChild links child under parent with the given relation name.
	// Adding the same link twice is a no-op.
	AddChild(ctx context.Context, parentID, relation, childID string) error

	// Children lists the nodes linked under parent with the relation,
	// in insertion-independent but deterministic (key) order.
	Children(ctx context.Context, parentID, relation string) ([]*Node, error)

	// ChildByName resolves a single child by its node name using the
	// write-through name index. Returns ErrNotFound when absent.
	ChildByName(ctx context.Context, parentID, relation, name string) (*Node, error)

	// RemoveChildren unlinks and deletes every child under parent with
	// the relation, including the children's attributes and values.
	// Returns the number of children removed.
	RemoveChildren(ctx context.Context, parentID, relation string) (int, error)

	// SetAttribute writes a named attribute under a category.
	SetAttribute(ctx context.Context, nodeID, category, name, value string) error

	// Attribute reads a named attribute. Returns ErrNotFound when unset.
	Attribute(ctx context.Context, nodeID, category, name string) (string, error)

	// SetValue writes the node's scalar current value (counters and
	// control points).
	SetValue(ctx context.Context, nodeID string, value float64) error

	// LoadValue reads the node's scalar current value; unset values
	// read as 0.
	LoadValue(ctx context.Context, nodeID string) (float64, error)

	// Close releases the underlying storage.
	Close() error
}
