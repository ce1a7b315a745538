// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"time"

	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/models/alwin"
)

// Benign alarm codes excluded from ticket routing regardless of
// timestamp. These are supervision state changes (acknowledge, reset,
// end of alarm), not new fault conditions.
var benignAlarmCodes = map[string]struct{}{
	"AL_ACQ": {},
	"AL_RAZ": {},
	"AL_FIN": {},
}

// FilterAccessEvents retains events with a parseable timestamp strictly
// after the watermark and on the same calendar day as now. The same-day
// restriction keeps stale events from inflating per-day counters after
// a long outage. Relative order of the input is preserved.
func FilterAccessEvents(events []alwin.AccessEvent, watermark int64, now time.Time) []alwin.AccessEvent {
	var out []alwin.AccessEvent
	for _, ev := range events {
		if ev.OccurredAt == nil {
			metrics.EventsSkipped.WithLabelValues("no_timestamp").Inc()
			continue
		}
		if ev.OccurredAt.UnixMilli() <= watermark {
			continue
		}
		if !sameDay(*ev.OccurredAt, now) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// FilterAlarmEvents retains alarm events with a parseable timestamp
// strictly after the watermark, excluding benign supervision codes.
// Relative order of the input is preserved.
func FilterAlarmEvents(events []alwin.AlarmEvent, watermark int64) []alwin.AlarmEvent {
	var out []alwin.AlarmEvent
	for _, ev := range events {
		if ev.OccurredAt == nil {
			metrics.EventsSkipped.WithLabelValues("no_timestamp").Inc()
			continue
		}
		if ev.OccurredAt.UnixMilli() <= watermark {
			continue
		}
		if _, benign := benignAlarmCodes[ev.AlarmCode]; benign {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// sameDay reports whether two instants fall on the same calendar day in
// local time, matching the daily reset boundary.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
