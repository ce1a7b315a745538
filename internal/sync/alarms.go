// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"fmt"

	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/models/alwin"
	"github.com/portier-bms/portier/internal/ticket"
)

// alarmClientTag labels tickets opened by the alarm router.
const alarmClientTag = "alarm"

// Router turns filtered alarm events into work tickets. Every
// qualifying event yields exactly one creation call; there is no
// existing-ticket check, so ticket creation is at most once only while
// the watermark moves forward.
type Router struct {
	tickets   ticket.Service
	processID string
	contextID string

	// buildingID is the fallback ticket target when an alarm's code
	// resolves to no equipment.
	buildingID string

	codeIndex map[string]string
}

// NewRouter creates an alarm router.
func NewRouter(tickets ticket.Service, processID, contextID, buildingID string, codeIndex map[string]string) *Router {
	return &Router{
		tickets:    tickets,
		processID:  processID,
		contextID:  contextID,
		buildingID: buildingID,
		codeIndex:  codeIndex,
	}
}

// RouteAlarms creates one ticket per filtered alarm event. Events with
// no extractable code are skipped and logged; an unresolvable code
// falls back to the building root with a warning. Ticket creation
// errors abort the batch.
func (r *Router) RouteAlarms(ctx context.Context, events []alwin.AlarmEvent) error {
	for i := range events {
		ev := &events[i]

		code, ok := ExtractCode(ev.PointName)
		if !ok {
			metrics.EventsSkipped.WithLabelValues("no_code").Inc()
			logging.Info().Str("point", ev.PointName).Msg("Alarm point carries no equipment code, skipping")
			continue
		}

		targetID, resolved := r.codeIndex[code]
		if !resolved {
			targetID = r.buildingID
			logging.Warn().Str("code", code).Str("point", ev.PointName).Msg("No equipment for alarm code, ticket attached to building root")
		}

		info := ticket.Info{
			Name:       fmt.Sprintf("%s - %s", code, ev.MessageCode),
			OccurredAt: *ev.OccurredAt,
			ClientTag:  alarmClientTag,
			AlarmID:    ev.AlarmID,
			AlarmCode:  ev.AlarmCode,
			PointName:  ev.PointName,
		}
		if _, err := r.tickets.CreateTicket(ctx, info, r.processID, r.contextID, targetID); err != nil {
			return fmt.Errorf("failed to create ticket for alarm %d: %w", ev.AlarmID, err)
		}
		metrics.EventsApplied.WithLabelValues("alarm").Inc()
	}
	return nil
}
