// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/metrics"
	"github.com/portier-bms/portier/internal/models/alwin"
)

// loop is the sequential cycle scheduler. One cycle runs to completion
// before the next begins; the wait between cycles subtracts the cycle's
// own duration, clamped at zero. A failed cycle adds the configured
// error backoff before the normal wait resumes.
func (m *Manager) loop(ctx context.Context, stop <-chan struct{}) {
	defer m.wg.Done()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		start := m.now()
		err := m.runCycle(ctx)
		elapsed := m.now().Sub(start)

		switch {
		case err == nil:
			metrics.RecordCycle("success", elapsed)
			m.mu.Lock()
			m.lastSync = m.now()
			m.mu.Unlock()
			logging.Info().Dur("duration", elapsed).Msg("Sync cycle complete")
		case errors.Is(err, ErrUpstream):
			metrics.RecordCycle("upstream_error", elapsed)
			logging.Error().Err(err).Msg("Sync cycle failed: upstream unreachable")
		default:
			metrics.RecordCycle("error", elapsed)
			logging.Error().Err(err).Msg("Sync cycle failed")
		}

		if err != nil {
			if !m.sleep(ctx, stop, m.cfg.Sync.ErrorBackoff) {
				return
			}
		}

		wait := m.cfg.Sync.Interval - elapsed
		if wait < 0 {
			wait = 0
		}
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-m.triggerChan:
			logging.Info().Msg("Manual sync triggered")
		case <-time.After(wait):
		}
	}
}

// sleep waits for d unless stopped. Returns false when the loop should
// exit.
func (m *Manager) sleep(ctx context.Context, stop <-chan struct{}, d time.Duration) bool {
	select {
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// runCycle executes one full synchronization cycle. Any error abandons
// the cycle before the watermark advances; the next cycle re-fetches
// and re-filters the same events.
func (m *Manager) runCycle(ctx context.Context) error {
	now := m.now()

	watermark, err := m.watermark.Load(ctx)
	if err != nil {
		return err
	}

	if err := m.resetter.MaybeReset(ctx, watermark, now); err != nil {
		return err
	}

	accessEvents, err := fetchWithRetry(ctx, m.cfg.Sync.RetryAttempts, m.cfg.Sync.RetryDelay, m.client.FetchAccessEvents)
	if err != nil {
		return err
	}
	filtered := FilterAccessEvents(accessEvents, watermark, now)
	logging.Debug().Int("fetched", len(accessEvents)).Int("kept", len(filtered)).Msg("Access events filtered")

	// The reconciler reads the same filtered batch but has no dependency
	// on counter state, so it runs alongside the applier. It is joined
	// before the occupancy recompute, which publishes the roster size.
	reconcileErr := make(chan error, 1)
	go func() {
		reconcileErr <- m.reconciler.Run(ctx, filtered)
	}()

	applyErr := m.applier.ApplyAccessEvents(ctx, filtered)
	if err := <-reconcileErr; err != nil {
		return fmt.Errorf("reconciliation failed: %w", err)
	}
	if applyErr != nil {
		return applyErr
	}

	if err := m.aggregator.Recompute(ctx); err != nil {
		return err
	}

	alarmEvents, err := fetchWithRetry(ctx, m.cfg.Sync.RetryAttempts, m.cfg.Sync.RetryDelay, m.client.FetchAlarmEvents)
	if err != nil {
		return err
	}
	alarms := FilterAlarmEvents(alarmEvents, watermark)
	logging.Debug().Int("fetched", len(alarmEvents)).Int("kept", len(alarms)).Msg("Alarm events filtered")
	if err := m.router.RouteAlarms(ctx, alarms); err != nil {
		return err
	}

	return m.watermark.Advance(ctx, now.UnixMilli())
}

// fetchWithRetry retries an upstream fetch with exponential backoff.
// Only upstream errors are retried; decode failures surface
// immediately.
func fetchWithRetry[T alwin.AccessEvent | alwin.AlarmEvent](ctx context.Context, attempts int, baseDelay time.Duration, fetch func(context.Context) ([]T, error)) ([]T, error) {
	var lastErr error
	delay := baseDelay
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}

		events, err := fetch(ctx)
		if err == nil {
			return events, nil
		}
		lastErr = err
		if !errors.Is(err, ErrUpstream) {
			return nil, err
		}
		logging.Warn().Err(err).Int("attempt", attempt+1).Msg("Upstream fetch failed, retrying")
	}
	return nil, lastErr
}
