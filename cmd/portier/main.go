// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Command portier runs the Alwin-to-building-graph connector.
//
// Startup order matters: configuration first (logging settings live
// there), then the graph store, then the sync manager, then the admin
// HTTP server. The sync manager and the HTTP server run under a
// supervisor tree and are restarted independently on failure.
//
// SIGINT/SIGTERM cancel the root context; the supervisor drains both
// services before the store is closed.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/portier-bms/portier/internal/api"
	"github.com/portier-bms/portier/internal/config"
	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/roster"
	"github.com/portier-bms/portier/internal/supervisor"
	"github.com/portier-bms/portier/internal/supervisor/services"
	"github.com/portier-bms/portier/internal/sync"
	"github.com/portier-bms/portier/internal/ticket"
	"github.com/portier-bms/portier/internal/timeseries"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("Invalid configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("alwin_url", cfg.Alwin.BaseURL).
		Str("graph_path", cfg.Graph.Path).
		Dur("interval", cfg.Sync.Interval).
		Msg("Starting Portier")

	store, err := graph.Open(cfg.Graph.Path, cfg.Graph.InMemory)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open graph store")
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing graph store")
		}
	}()
	logging.Info().Msg("Graph store opened")

	recorder := timeseries.NewBadgerRecorder(store.DB())
	occupants := roster.NewGraphOccupants(store, cfg.Refs.OccupantContext)
	organizations := roster.NewGraphOrganizations(store, cfg.Refs.OrganizationContext)
	tickets := ticket.NewGraphService(store)

	// The circuit breaker wraps every upstream call so a flapping Alwin
	// service sheds load instead of stalling each cycle on timeouts.
	client := sync.NewCircuitBreakerClient(sync.NewAlwinClient(&cfg.Alwin))

	manager := sync.NewManager(cfg, store, client, recorder, occupants, organizations, tickets)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	initialized := true
	if err := manager.Init(ctx); err != nil {
		// The admin surface still comes up so operators can see the
		// failure on /readyz; the cycle loop stays down until restart.
		logging.Error().Err(err).Msg("Sync manager initialization failed, running degraded")
		initialized = false
	}

	server := api.NewServer(&cfg.Server, manager)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if initialized {
		tree.AddSyncService(services.NewSyncService(manager))
	}
	tree.AddAPIService(services.NewHTTPService(server, 10*time.Second))
	logging.Info().Int("port", cfg.Server.Port).Msg("Admin server added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Portier stopped")
}
