// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/portier-bms/portier/internal/config"
	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/ticket"
)

// Provision creates the graph entities the connector requires when they
// do not exist yet: the network context with its virtual network, the
// ticket context with its process and "Raised" step, the equipment
// context, the building root, and the control-point profile with one
// occupancy and one badge-count point per zone plus the network total.
//
// Provisioning is idempotent; existing entities are left untouched.
// Equipment entities themselves are deployment data and are never
// created here.
func Provision(ctx context.Context, store graph.Store, cfg *config.Config) error {
	network, err := store.GetOrCreateContext(ctx, cfg.Refs.NetworkContext, graph.TypeContext)
	if err != nil {
		return fmt.Errorf("failed to provision network context: %w", err)
	}
	if err := ensureChild(ctx, store, network.ID, graph.RelHasNetwork, cfg.Refs.VirtualNetwork, graph.TypeNetwork); err != nil {
		return fmt.Errorf("failed to provision virtual network: %w", err)
	}

	tickets, err := store.GetOrCreateContext(ctx, cfg.Refs.TicketContext, graph.TypeContext)
	if err != nil {
		return fmt.Errorf("failed to provision ticket context: %w", err)
	}
	if err := ensureChild(ctx, store, tickets.ID, graph.RelHasProcess, cfg.Refs.TicketProcess, graph.TypeProcess); err != nil {
		return fmt.Errorf("failed to provision ticket process: %w", err)
	}
	process, err := store.ChildByName(ctx, tickets.ID, graph.RelHasProcess, cfg.Refs.TicketProcess)
	if err != nil {
		return err
	}
	if err := ensureChild(ctx, store, process.ID, graph.RelHasStep, ticket.RaisedStepName, graph.TypeStep); err != nil {
		return fmt.Errorf("failed to provision raised step: %w", err)
	}

	if _, err := store.GetOrCreateContext(ctx, cfg.Refs.EquipmentContext, graph.TypeContext); err != nil {
		return fmt.Errorf("failed to provision equipment context: %w", err)
	}
	if _, err := store.GetOrCreateContext(ctx, cfg.Refs.Building, graph.TypeBuilding); err != nil {
		return fmt.Errorf("failed to provision building root: %w", err)
	}

	profile, err := store.GetOrCreateContext(ctx, cfg.Refs.ControlPointProfile, graph.TypeContext)
	if err != nil {
		return fmt.Errorf("failed to provision control point profile: %w", err)
	}
	points := []string{cfg.Zones.TotalPoint}
	for _, zone := range []config.ZoneConfig{cfg.Zones.ZoneA, cfg.Zones.ZoneB, cfg.Zones.ZoneC} {
		points = append(points, zone.OccupancyPoint, zone.BadgePoint)
	}
	for _, name := range points {
		if name == "" {
			continue
		}
		if err := ensureControlPoint(ctx, store, profile.ID, name); err != nil {
			return fmt.Errorf("failed to provision control point %q: %w", name, err)
		}
	}

	logging.Info().Msg("Graph provisioning complete")
	return nil
}

// ensureChild creates a named child under parent when absent.
func ensureChild(ctx context.Context, store graph.Store, parentID, relation, name, nodeType string) error {
	_, err := store.ChildByName(ctx, parentID, relation, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, graph.ErrNotFound) {
		return err
	}
	node, err := store.CreateNode(ctx, name, nodeType)
	if err != nil {
		return err
	}
	return store.AddChild(ctx, parentID, relation, node.ID)
}

// ensureControlPoint creates a zeroed control point under the profile
// when absent.
func ensureControlPoint(ctx context.Context, store graph.Store, profileID, name string) error {
	_, err := store.ChildByName(ctx, profileID, graph.RelHasControlPoint, name)
	if err == nil {
		return nil
	}
	if !errors.Is(err, graph.ErrNotFound) {
		return err
	}
	node, err := store.CreateNode(ctx, name, graph.TypeControlPoint)
	if err != nil {
		return err
	}
	if err := store.SetValue(ctx, node.ID, 0); err != nil {
		return err
	}
	return store.AddChild(ctx, profileID, graph.RelHasControlPoint, node.ID)
}
