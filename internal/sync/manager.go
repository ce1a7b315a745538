// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/portier-bms/portier/internal/config"
	"github.com/portier-bms/portier/internal/graph"
	"github.com/portier-bms/portier/internal/logging"
	"github.com/portier-bms/portier/internal/roster"
	"github.com/portier-bms/portier/internal/ticket"
	"github.com/portier-bms/portier/internal/timeseries"
)

// refs holds the graph entities resolved once at initialization.
type refs struct {
	networkContextID   string
	virtualNetworkID   string
	ticketContextID    string
	ticketProcessID    string
	equipmentContextID string
	buildingID         string
	totalPointID       string
	zones              []ZoneRule
	codeIndex          map[string]string
}

// Manager owns the sync lifecycle: initialization, the periodic cycle
// loop, manual triggering, and shutdown. All dependencies are passed in
// explicitly; there is no ambient registry.
//
// Thread safety: Start/Stop/TriggerSync/LastSyncTime are safe for
// concurrent use. One cycle runs at a time; the loop itself is the only
// writer of engine state.
type Manager struct {
	cfg           *config.Config
	store         graph.Store
	client        Client
	recorder      timeseries.Recorder
	occupants     roster.OccupantRegistry
	organizations roster.OrganizationRegistry
	tickets       ticket.Service

	watermark    *Watermark
	materializer *Materializer
	applier      *Applier
	reconciler   *Reconciler
	router       *Router
	aggregator   *Aggregator
	resetter     *Resetter

	mu          sync.Mutex
	initialized bool
	running     bool
	lastSync    time.Time

	stopChan    chan struct{}
	triggerChan chan struct{}
	wg          sync.WaitGroup

	// now is replaceable in tests.
	now func() time.Time
}

// NewManager wires a sync manager from its collaborators. Init must be
// called before Start.
func NewManager(cfg *config.Config, store graph.Store, client Client, recorder timeseries.Recorder, occupants roster.OccupantRegistry, organizations roster.OrganizationRegistry, tickets ticket.Service) *Manager {
	return &Manager{
		cfg:           cfg,
		store:         store,
		client:        client,
		recorder:      recorder,
		occupants:     occupants,
		organizations: organizations,
		tickets:       tickets,
		triggerChan:   make(chan struct{}, 1),
		now:           time.Now,
	}
}

// Init resolves every required graph entity, builds the equipment code
// map and the device index, and assembles the pipeline. Any resolution
// failure aborts initialization with a named error; the process keeps
// running but no cycle executes until a later Init succeeds.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.Graph.Bootstrap {
		if err := Provision(ctx, m.store, m.cfg); err != nil {
			return err
		}
	}

	r, err := m.resolveRefs(ctx)
	if err != nil {
		logging.Error().Err(err).Msg("Sync initialization failed")
		return err
	}

	// Registries create their contexts on first use.
	if _, err := m.occupants.Context(ctx); err != nil {
		return fmt.Errorf("failed to resolve occupant context: %w", err)
	}
	if _, err := m.organizations.Context(ctx); err != nil {
		return fmt.Errorf("failed to resolve organization context: %w", err)
	}

	m.watermark = NewWatermark(m.store, r.virtualNetworkID)
	m.materializer = NewMaterializer(m.store, r.virtualNetworkID, r.codeIndex)
	if err := m.materializer.LoadIndex(ctx); err != nil {
		return err
	}
	m.applier = NewApplier(m.store, m.materializer, m.recorder)
	m.reconciler = NewReconciler(m.occupants, m.organizations)
	m.router = NewRouter(m.tickets, r.ticketProcessID, r.ticketContextID, r.buildingID, r.codeIndex)
	m.aggregator = NewAggregator(m.store, m.recorder, m.occupants, m.materializer, r.zones, r.totalPointID)
	m.resetter = NewResetter(m.store, m.materializer, m.occupants)

	m.initialized = true
	logging.Info().Int("equipment_codes", len(r.codeIndex)).Int("zones", len(r.zones)).Msg("Sync manager initialized")
	return nil
}

// resolveRefs looks up every configured graph entity by name. A missing
// entity yields a named "not found" error.
func (m *Manager) resolveRefs(ctx context.Context) (*refs, error) {
	r := &refs{}

	network, err := m.store.Context(ctx, m.cfg.Refs.NetworkContext)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Refs.NetworkContext, err)
	}
	r.networkContextID = network.ID

	virtual, err := m.store.ChildByName(ctx, network.ID, graph.RelHasNetwork, m.cfg.Refs.VirtualNetwork)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Refs.VirtualNetwork, err)
	}
	r.virtualNetworkID = virtual.ID

	tickets, err := m.store.Context(ctx, m.cfg.Refs.TicketContext)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Refs.TicketContext, err)
	}
	r.ticketContextID = tickets.ID

	process, err := m.store.ChildByName(ctx, tickets.ID, graph.RelHasProcess, m.cfg.Refs.TicketProcess)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Refs.TicketProcess, err)
	}
	r.ticketProcessID = process.ID

	equipments, err := m.store.Context(ctx, m.cfg.Refs.EquipmentContext)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Refs.EquipmentContext, err)
	}
	r.equipmentContextID = equipments.ID
	r.codeIndex, err = m.buildCodeIndex(ctx, equipments.ID)
	if err != nil {
		return nil, err
	}

	building, err := m.store.Context(ctx, m.cfg.Refs.Building)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Refs.Building, err)
	}
	r.buildingID = building.ID

	profile, err := m.store.Context(ctx, m.cfg.Refs.ControlPointProfile)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Refs.ControlPointProfile, err)
	}
	total, err := m.store.ChildByName(ctx, profile.ID, graph.RelHasControlPoint, m.cfg.Zones.TotalPoint)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", m.cfg.Zones.TotalPoint, err)
	}
	r.totalPointID = total.ID

	for _, zone := range []config.ZoneConfig{m.cfg.Zones.ZoneA, m.cfg.Zones.ZoneB, m.cfg.Zones.ZoneC} {
		rule, err := m.buildZoneRule(ctx, profile.ID, &zone)
		if err != nil {
			return nil, err
		}
		r.zones = append(r.zones, *rule)
	}

	return r, nil
}

// buildCodeIndex maps each equipment's extracted code to its node. At
// most one equipment per code; a duplicate keeps the first and logs.
func (m *Manager) buildCodeIndex(ctx context.Context, equipmentContextID string) (map[string]string, error) {
	nodes, err := m.store.Children(ctx, equipmentContextID, graph.RelHasEquipment)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipments: %w", err)
	}
	index := make(map[string]string, len(nodes))
	for _, node := range nodes {
		code, ok := ExtractCode(node.Name)
		if !ok {
			continue
		}
		if _, dup := index[code]; dup {
			logging.Warn().Str("code", code).Str("equipment", node.Name).Msg("Duplicate equipment code, keeping first")
			continue
		}
		index[code] = node.ID
	}
	return index, nil
}

// buildZoneRule resolves one zone's control points and classification
// lists.
func (m *Manager) buildZoneRule(ctx context.Context, profileID string, zone *config.ZoneConfig) (*ZoneRule, error) {
	occupancy, err := m.store.ChildByName(ctx, profileID, graph.RelHasControlPoint, zone.OccupancyPoint)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", zone.OccupancyPoint, err)
	}
	badge, err := m.store.ChildByName(ctx, profileID, graph.RelHasControlPoint, zone.BadgePoint)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", zone.BadgePoint, err)
	}

	rule := &ZoneRule{
		Name:             zone.Name,
		OccupancyPointID: occupancy.ID,
		BadgePointID:     badge.ID,
		Fragments:        zone.DeviceIDs,
		InDevices:        make(map[string]struct{}, len(zone.InDevices)),
		OutDevices:       make(map[string]struct{}, len(zone.OutDevices)),
	}
	for _, name := range zone.InDevices {
		rule.InDevices[name] = struct{}{}
	}
	for _, name := range zone.OutDevices {
		rule.OutDevices[name] = struct{}{}
	}
	return rule, nil
}

// Start launches the cycle loop. The first cycle runs immediately.
// Returns an error when Init has not succeeded.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return errors.New("sync manager not initialized")
	}
	if m.running {
		m.mu.Unlock()
		return errors.New("sync manager already started")
	}
	m.running = true
	// Fresh stop channel so a supervised restart works after Stop.
	m.stopChan = make(chan struct{})
	m.mu.Unlock()

	m.wg.Add(1)
	go m.loop(ctx, m.stopChan)
	logging.Info().Dur("interval", m.cfg.Sync.Interval).Msg("Sync manager started")
	return nil
}

// Stop signals the loop and waits for in-flight work to finish.
// In-flight cycle work is not cancelled, only the next iteration is
// skipped.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.mu.Unlock()

	close(m.stopChan)
	m.wg.Wait()
	logging.Info().Msg("Sync manager stopped")
}

// TriggerSync requests an immediate cycle. Non-blocking; a pending
// trigger coalesces with this one.
func (m *Manager) TriggerSync() {
	select {
	case m.triggerChan <- struct{}{}:
	default:
	}
}

// LastSyncTime returns the completion time of the last successful
// cycle, zero before the first success.
func (m *Manager) LastSyncTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSync
}

// Initialized reports whether Init has succeeded. Used by readiness
// checks.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialized
}
