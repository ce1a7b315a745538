// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package ticket opens work tickets in the entity graph for qualifying
// alarm events. Tickets enter the target process at its "Raised" step;
// step transitions belong to the ticketing workflow engine, not to this
// connector.
package ticket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/metrics"
)

// RaisedStepName is the process step new tickets are attached to.
const RaisedStepName = "Raised"

// AttrCategory is the attribute category ticket fields are stored under.
const AttrCategory = "ticket"

// Info carries the fields of one ticket, constructed deterministically
// from the triggering alarm event.
type Info struct {
	// Name is the synthesized ticket name (code + message).
	Name string

	// OccurredAt is the alarm event timestamp.
	OccurredAt time.Time

	// ClientTag labels the ticket origin ("alarm").
	ClientTag string

	AlarmID   int64
	AlarmCode string
	PointName string
}

// Service is the ticketing boundary consumed by the sync engine.
//
// No existing-ticket check is performed: every qualifying alarm event
// yields exactly one creation call. Deduplication across watermark
// regressions is explicitly out of contract (at most once on forward
// progress).
type Service interface {
	CreateTicket(ctx context.Context, info Info, processID, contextID, targetID string) (*graph.Node, error)
}

// GraphService implements Service on the entity graph.
type GraphService struct {
	store graph.Store
}

// NewGraphService creates a ticket service over the given store.
func NewGraphService(store graph.Store) *GraphService {
	return &GraphService{store: store}
}

// CreateTicket creates a ticket node, attaches it to the process's
// "Raised" step, and links it under the target entity.
func (s *GraphService) CreateTicket(ctx context.Context, info Info, processID, contextID, targetID string) (*graph.Node, error) {
	step, err := s.store.ChildByName(ctx, processID, graph.RelHasStep, RaisedStepName)
	if err != nil {
		return nil, fmt.Errorf("raised step not found in process %s: %w", processID, err)
	}

	node, err := s.store.CreateNode(ctx, info.Name, graph.TypeTicket)
	if err != nil {
		return nil, fmt.Errorf("failed to create ticket %q: %w", info.Name, err)
	}

	attrs := map[string]string{
		"date":      info.OccurredAt.UTC().Format(time.RFC3339),
		"clientTag": info.ClientTag,
		"alarmId":   strconv.FormatInt(info.AlarmID, 10),
		"alarmCode": info.AlarmCode,
		"pointName": info.PointName,
		"contextId": contextID,
	}
	for name, value := range attrs {
		if err := s.store.SetAttribute(ctx, node.ID, AttrCategory, name, value); err != nil {
			return nil, fmt.Errorf("failed to tag ticket %q: %w", info.Name, err)
		}
	}

	if err := s.store.AddChild(ctx, step.ID, graph.RelHasTicket, node.ID); err != nil {
		return nil, fmt.Errorf("failed to attach ticket to step: %w", err)
	}
	if err := s.store.AddChild(ctx, targetID, graph.RelHasTicket, node.ID); err != nil {
		return nil, fmt.Errorf("failed to link ticket to target: %w", err)
	}

	metrics.TicketsCreated.Inc()
	logging.Info().Str("ticket", info.Name).Str("target", targetID).Msg("Ticket created")
	return node, nil
}
