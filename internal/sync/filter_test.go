// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"testing"
	"time"

	"github.com/portier-bms/portier/internal/models/alwin"
)

func TestFilterAccessEventsWatermark(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
	cursor := now.Add(-time.Hour)
	watermark := cursor.UnixMilli()

	events := []alwin.AccessEvent{
		{PointName: "a", OccurredAt: ts(cursor.Add(-time.Second))},
		{PointName: "b", OccurredAt: ts(cursor)},
		{PointName: "c", OccurredAt: ts(cursor.Add(time.Second))},
		{PointName: "d", OccurredAt: ts(cursor.Add(2 * time.Second))},
	}

	got := FilterAccessEvents(events, watermark, now)
	if len(got) != 2 || got[0].PointName != "c" || got[1].PointName != "d" {
		t.Fatalf("FilterAccessEvents() = %v, want exactly [c d] oldest-first", names(got))
	}
}

func TestFilterAccessEventsDropsNilTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.Local)
	events := []alwin.AccessEvent{
		{PointName: "a", OccurredAt: nil},
		{PointName: "b", OccurredAt: ts(now.Add(-time.Minute))},
	}

	got := FilterAccessEvents(events, 0, now)
	if len(got) != 1 || got[0].PointName != "b" {
		t.Fatalf("FilterAccessEvents() = %v, want [b]", names(got))
	}
}

func TestFilterAccessEventsSameDayOnly(t *testing.T) {
	now := time.Date(2026, 8, 30, 1, 0, 0, 0, time.Local)
	yesterday := now.Add(-2 * time.Hour)
	watermark := now.Add(-6 * time.Hour).UnixMilli()

	events := []alwin.AccessEvent{
		// Newer than the watermark but from the previous calendar day.
		{PointName: "stale", OccurredAt: ts(yesterday)},
		{PointName: "fresh", OccurredAt: ts(now.Add(-time.Minute))},
	}

	got := FilterAccessEvents(events, watermark, now)
	if len(got) != 1 || got[0].PointName != "fresh" {
		t.Fatalf("FilterAccessEvents() = %v, want [fresh]", names(got))
	}
}

func TestFilterAlarmEventsBenignCodes(t *testing.T) {
	now := time.Now()
	events := []alwin.AlarmEvent{
		{PointName: "a", AlarmCode: "AL_ACQ", OccurredAt: ts(now)},
		{PointName: "b", AlarmCode: "AL_RAZ", OccurredAt: ts(now)},
		{PointName: "c", AlarmCode: "AL_FIN", OccurredAt: ts(now)},
		{PointName: "d", AlarmCode: "AL_INTRU", OccurredAt: ts(now)},
		{PointName: "e", AlarmCode: "AL_INTRU", OccurredAt: nil},
	}

	got := FilterAlarmEvents(events, 0)
	if len(got) != 1 || got[0].PointName != "d" {
		t.Fatalf("FilterAlarmEvents() kept %d events, want only the real alarm", len(got))
	}
}

func TestFilterAlarmEventsWatermark(t *testing.T) {
	cursor := time.Now().Add(-time.Hour)
	events := []alwin.AlarmEvent{
		{PointName: "old", AlarmCode: "AL_INTRU", OccurredAt: ts(cursor)},
		{PointName: "new", AlarmCode: "AL_INTRU", OccurredAt: ts(cursor.Add(time.Second))},
	}

	got := FilterAlarmEvents(events, cursor.UnixMilli())
	if len(got) != 1 || got[0].PointName != "new" {
		t.Fatalf("FilterAlarmEvents() = %d events, want strictly-newer only", len(got))
	}
}

func names(events []alwin.AccessEvent) []string {
	out := make([]string, len(events))
	for i := range events {
		out[i] = events[i].PointName
	}
	return out
}
