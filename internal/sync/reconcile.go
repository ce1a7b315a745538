// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"fmt"
	"strings"

	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/models/alwin"
	"github.com/portier-bms/portier/internal/roster"
)

// Reconciler upserts occupant identities and organization membership
// from badge-accepted events. The engine dispatches it as a tracked
// goroutine per cycle and joins it before the watermark advances, so
// its writes never leak across cycle boundaries.
type Reconciler struct {
	occupants     roster.OccupantRegistry
	organizations roster.OrganizationRegistry
}

// NewReconciler creates a reconciler over the two registries.
func NewReconciler(occupants roster.OccupantRegistry, organizations roster.OrganizationRegistry) *Reconciler {
	return &Reconciler{occupants: occupants, organizations: organizations}
}

// Run reconciles one filtered batch. The roster snapshot is taken once
// and updated in memory as occupants are added within the batch, so a
// badge seen twice in one cycle registers once.
func (r *Reconciler) Run(ctx context.Context, events []alwin.AccessEvent) error {
	known, err := r.snapshot(ctx)
	if err != nil {
		return err
	}

	for i := range events {
		ev := &events[i]
		if ev.MessageCode != MessageBadgeAccepted || ev.IdentifierInfo == "" {
			continue
		}

		occupantID, ok := known[ev.IdentifierInfo]
		if !ok {
			node, err := r.occupants.Add(ctx, roster.Occupant{
				Identifier: ev.IdentifierInfo,
				FullName:   fullName(ev),
				Service:    ev.ServiceName,
				Company:    companyOf(ev),
			})
			if err != nil {
				return fmt.Errorf("failed to register occupant %q: %w", ev.IdentifierInfo, err)
			}
			occupantID = node.ID
			known[ev.IdentifierInfo] = occupantID
			logging.Debug().Str("identifier", ev.IdentifierInfo).Msg("Occupant registered")
		}

		org, err := r.organizations.Ensure(ctx, companyOf(ev))
		if err != nil {
			return fmt.Errorf("failed to ensure organization %q: %w", ev.CompanyName, err)
		}
		if err := r.organizations.AddMember(ctx, org.ID, occupantID); err != nil {
			return err
		}
	}
	return nil
}

// snapshot loads the current roster into an identifier index.
func (r *Reconciler) snapshot(ctx context.Context) (map[string]string, error) {
	occupants, err := r.occupants.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to snapshot roster: %w", err)
	}
	known := make(map[string]string, len(occupants))
	for _, o := range occupants {
		known[o.Identifier] = o.NodeID
	}
	return known, nil
}

func fullName(ev *alwin.AccessEvent) string {
	return strings.TrimSpace(ev.FirstName + " " + ev.LastName)
}

func companyOf(ev *alwin.AccessEvent) string {
	if ev.CompanyName == "" {
		return alwin.UnknownCompany
	}
	return ev.CompanyName
}
