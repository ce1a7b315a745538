// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/models/alwin"
)

// CircuitBreakerClient wraps an AlwinClient with a circuit breaker so a
// dead or slow upstream stops consuming cycle time quickly. A rejected
// call still counts as an upstream error for scheduling purposes.
//
// The breaker uses real time for its interval and timeout calculations;
// tests should exercise the wrapped client directly.
type CircuitBreakerClient struct {
	client Client
	cb     *gobreaker.CircuitBreaker[interface{}]
	name   string
}

// NewCircuitBreakerClient wraps the given client.
// Circuit breaker configuration:
// - Max 3 requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 5 requests
func NewCircuitBreakerClient(client Client) *CircuitBreakerClient {
	cbName := "alwin-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			// The connector only issues two requests per cycle, so the
			// significance threshold is lower than for chatty APIs.
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)
			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerClient{client: client, cb: cb, name: cbName}
}

// execute wraps one upstream call with circuit breaker protection.
func (cbc *CircuitBreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := cbc.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			// A rejected request is an upstream condition for the
			// scheduler's error classification.
			return nil, errors.Join(ErrUpstream, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "failure").Inc()
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(cbc.name, "success").Inc()
	return result, nil
}

// FetchAccessEvents delegates to the wrapped client through the breaker.
func (cbc *CircuitBreakerClient) FetchAccessEvents(ctx context.Context) ([]alwin.AccessEvent, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchAccessEvents(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]alwin.AccessEvent), nil
}

// FetchAlarmEvents delegates to the wrapped client through the breaker.
func (cbc *CircuitBreakerClient) FetchAlarmEvents(ctx context.Context) ([]alwin.AlarmEvent, error) {
	result, err := cbc.execute(func() (interface{}, error) {
		return cbc.client.FetchAlarmEvents(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]alwin.AlarmEvent), nil
}

func stateToString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
