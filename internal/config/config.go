// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package config defines the connector configuration and loads it via
// Koanf v2 with layered sources: struct defaults, an optional YAML file,
// and environment variables (highest priority).
package config

import (
	"time"
)

// Config is the root configuration for the connector.
type Config struct {
	Alwin   AlwinConfig   `koanf:"alwin"`
	Sync    SyncConfig    `koanf:"sync"`
	Graph   GraphConfig   `koanf:"graph"`
	Refs    RefsConfig    `koanf:"refs"`
	Zones   ZonesConfig   `koanf:"zones"`
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
}

// AlwinConfig holds upstream access-control service settings.
type AlwinConfig struct {
	// BaseURL is the root of the Alwin web service,
	// e.g. https://alwin.example.com
	BaseURL  string `koanf:"base_url" validate:"required,url"`
	Username string `koanf:"username" validate:"required"`
	Password string `koanf:"password" validate:"required"`
	APIKey   string `koanf:"api_key" validate:"required"`

	// PageSize is the page size requested from getlogaccess/getlogalarm.
	PageSize int `koanf:"page_size" validate:"gt=0"`

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration `koanf:"timeout"`

	// RequestsPerSecond caps the request rate to the upstream. The vendor
	// service tolerates very little concurrency, so requests are paced
	// rather than parallelized.
	RequestsPerSecond float64 `koanf:"requests_per_second" validate:"gt=0"`
	Burst             int     `koanf:"burst" validate:"gt=0"`
}

// SyncConfig holds cycle scheduling settings.
type SyncConfig struct {
	// Interval is the wait between cycles. PULL_INTERVAL accepts a plain
	// millisecond count for compatibility with existing deployments.
	Interval time.Duration `koanf:"interval" validate:"gt=0"`

	// ErrorBackoff is the extra pause after a failed cycle before the
	// normal wait resumes.
	ErrorBackoff time.Duration `koanf:"error_backoff"`

	// RetryAttempts/RetryDelay drive exponential backoff around each
	// upstream fetch within a cycle.
	RetryAttempts int           `koanf:"retry_attempts" validate:"gt=0"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// GraphConfig holds entity graph storage settings.
type GraphConfig struct {
	// Path is the BadgerDB directory for the persistent entity graph.
	Path string `koanf:"path" validate:"required"`

	// InMemory runs the graph store without disk persistence. Tests only.
	InMemory bool `koanf:"in_memory"`

	// Bootstrap provisions the required contexts and control points on
	// startup when they do not exist yet. With Bootstrap disabled, a
	// missing entity is a fatal initialization error.
	Bootstrap bool `koanf:"bootstrap"`
}

// RefsConfig names the graph entities the connector resolves at
// initialization. Every name is required; resolution failure aborts init.
type RefsConfig struct {
	NetworkContext      string `koanf:"network_context"`
	VirtualNetwork      string `koanf:"virtual_network"`
	TicketContext       string `koanf:"ticket_context"`
	TicketProcess       string `koanf:"ticket_process"`
	EquipmentContext    string `koanf:"equipment_context"`
	Building            string `koanf:"building"`
	OccupantContext     string `koanf:"occupant_context"`
	OrganizationContext string `koanf:"organization_context"`
	ControlPointProfile string `koanf:"control_point_profile"`
}

// ZoneConfig classifies devices into one occupancy zone.
//
// Substring zones list device-id fragments matched against device names.
// The in/out zone lists exact device names; its "out" devices contribute
// negatively to the zone total.
type ZoneConfig struct {
	Name           string   `koanf:"name"`
	OccupancyPoint string   `koanf:"occupancy_point"`
	BadgePoint     string   `koanf:"badge_point"`
	DeviceIDs      []string `koanf:"device_ids"`
	InDevices      []string `koanf:"in_devices"`
	OutDevices     []string `koanf:"out_devices"`
}

// ZonesConfig holds the three zone classification rules of the reference
// deployment plus the whole-network total control point.
type ZonesConfig struct {
	ZoneA      ZoneConfig `koanf:"zone_a"`
	ZoneB      ZoneConfig `koanf:"zone_b"`
	ZoneC      ZoneConfig `koanf:"zone_c"`
	TotalPoint string     `koanf:"total_point"`
}

// ServerConfig holds the admin/observability HTTP surface settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// loaded first and overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Alwin: AlwinConfig{
			BaseURL:           "",
			Username:          "",
			Password:          "",
			APIKey:            "",
			PageSize:          100,
			Timeout:           30 * time.Second,
			RequestsPerSecond: 2,
			Burst:             2,
		},
		Sync: SyncConfig{
			Interval:      5 * time.Minute,
			ErrorBackoff:  time.Minute,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
		},
		Graph: GraphConfig{
			Path:      "/data/portier",
			InMemory:  false,
			Bootstrap: true,
		},
		Refs: RefsConfig{
			NetworkContext:      "Network",
			VirtualNetwork:      "Alwin",
			TicketContext:       "Tickets",
			TicketProcess:       "Maintenance",
			EquipmentContext:    "Equipments",
			Building:            "Building",
			OccupantContext:     "Occupants",
			OrganizationContext: "Organizations",
			ControlPointProfile: "Occupancy",
		},
		Zones: ZonesConfig{
			ZoneA: ZoneConfig{Name: "zone-a"},
			ZoneB: ZoneConfig{Name: "zone-b"},
			ZoneC: ZoneConfig{Name: "zone-c"},
			TotalPoint: "Occupancy Total",
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    9210,
			Timeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}
