// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package sync implements the incremental synchronization engine: it
// periodically pulls access and alarm logs from the Alwin web service,
// filters them against a persisted watermark, and materializes the
// results into the entity graph.
//
// One cycle runs at a time. A cycle executes, in order: the daily reset
// check, fetch and apply of access events (device/counter
// materialization plus the occupant/organization reconciler), the full
// occupancy recompute, fetch and routing of alarm events into tickets,
// and finally the watermark advance. Any error abandons the cycle
// before the watermark moves, so the next cycle re-fetches and
// re-filters the same events.
//
// File layout:
//   - alwin_client.go: HTTP client for getlogaccess/getlogalarm
//   - circuit_breaker.go: gobreaker wrapper around the client
//   - watermark.go: persisted sync cursor
//   - filter.go: watermark/day/benign-code filtering
//   - codes.go: equipment code extraction from point names
//   - devices.go: device and counter materialization
//   - apply.go: message-code dispatch onto counters
//   - reconcile.go: occupant/organization reconciliation
//   - alarms.go: alarm-to-ticket routing
//   - occupancy.go: per-zone occupancy aggregation
//   - reset.go: daily counter/roster reset
//   - provision.go: first-run graph bootstrap
//   - manager.go, cycle.go: lifecycle and the cycle loop
package sync
