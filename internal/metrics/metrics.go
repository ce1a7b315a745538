// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package metrics exposes Prometheus instrumentation for the connector:
// cycle outcomes and durations, upstream fetch latency, per-kind event
// application, graph materialization counts, and circuit breaker state.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cycle Metrics
	SyncCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"outcome"}, // "success", "upstream_error", "error"
	)

	SyncCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_cycle_duration_seconds",
			Help:    "Duration of a full sync cycle in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
	)

	WatermarkTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_watermark_timestamp_seconds",
			Help: "Last successfully synchronized timestamp as a Unix epoch",
		},
	)

	DailyResets = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_daily_resets_total",
			Help: "Total number of daily counter/roster resets performed",
		},
	)

	// Upstream Fetch Metrics
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "alwin_fetch_duration_seconds",
			Help:    "Duration of upstream log fetches in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"}, // "access", "alarm"
	)

	FetchErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alwin_fetch_errors_total",
			Help: "Total number of upstream fetch errors",
		},
		[]string{"endpoint"},
	)

	FetchedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alwin_fetched_records_total",
			Help: "Total number of records returned by the upstream before filtering",
		},
		[]string{"endpoint"},
	)

	// Event Application Metrics
	EventsApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_applied_total",
			Help: "Total number of filtered events applied by kind",
		},
		[]string{"kind"}, // "badge_in", "push_button_out", "other", "alarm"
	)

	EventsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_events_skipped_total",
			Help: "Total number of events skipped as data anomalies",
		},
		[]string{"reason"}, // "no_timestamp", "missing_counter", "no_code"
	)

	// Graph Materialization Metrics
	DevicesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "graph_devices_created_total",
			Help: "Total number of device entities materialized in the graph",
		},
	)

	TicketsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tickets_created_total",
			Help: "Total number of work tickets opened from alarm events",
		},
	)

	OccupantsRegistered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roster_occupants_registered_total",
			Help: "Total number of occupants registered from badge events",
		},
	)

	OrganizationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roster_organizations_created_total",
			Help: "Total number of organization records created",
		},
	)

	// Occupancy Aggregate Metrics
	ZoneOccupancy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zone_occupancy",
			Help: "Net occupancy estimate per zone as of the last cycle",
		},
		[]string{"zone"},
	)

	ZoneBadgeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "zone_badge_count",
			Help: "Occupant roster size published per zone as of the last cycle",
		},
		[]string{"zone"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Circuit breaker request outcomes",
		},
		[]string{"name", "result"}, // "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Admin HTTP Surface Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Admin API requests by method, path and status",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// RecordHTTPRequest records one admin API request.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordCycle records the outcome and duration of one sync cycle.
func RecordCycle(outcome string, duration time.Duration) {
	SyncCycles.WithLabelValues(outcome).Inc()
	SyncCycleDuration.Observe(duration.Seconds())
}
