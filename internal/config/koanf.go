// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/portier/config.yaml",
	"/etc/portier/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML config file (if present)
//  3. Environment variables: override any setting
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Flat env names map onto the nested structure, e.g.
	// NETWORK_CONTEXT_NAME -> refs.network_context, PULL_INTERVAL -> sync.interval.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processMillisFields(k); err != nil {
		return nil, fmt.Errorf("failed to process interval fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths defines which config paths are parsed as comma-separated
// slices when they arrive as env var strings.
var sliceConfigPaths = []string{
	"zones.zone_a.device_ids",
	"zones.zone_b.device_ids",
	"zones.zone_c.in_devices",
	"zones.zone_c.out_devices",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars come in as strings but the config expects
// slices; YAML values are already slices and are left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// millisConfigPaths lists duration fields that legacy deployments set as a
// bare millisecond count (PULL_INTERVAL=600000). Values with a duration
// unit ("10m", "60s") pass through untouched.
var millisConfigPaths = []string{
	"sync.interval",
	"sync.error_backoff",
	"sync.retry_delay",
}

func processMillisFields(k *koanf.Koanf) error {
	for _, path := range millisConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		ms, err := strconv.ParseInt(strVal, 10, 64)
		if err != nil {
			continue // not a bare number; let the duration hook parse it
		}
		if err := k.Set(path, fmt.Sprintf("%dms", ms)); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// It preserves the env var names of the original deployment alongside the
// canonical SECTION_FIELD form.
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Upstream service (legacy names)
		"api_server_base_url": "alwin.base_url",
		"api_username":        "alwin.username",
		"api_password":        "alwin.password",
		"api_key":             "alwin.api_key",
		"alwin_page_size":     "alwin.page_size",
		"alwin_timeout":       "alwin.timeout",

		// Cycle scheduling
		"pull_interval":       "sync.interval",
		"sync_error_backoff":  "sync.error_backoff",
		"sync_retry_attempts": "sync.retry_attempts",
		"sync_retry_delay":    "sync.retry_delay",

		// Graph storage
		"graph_path":      "graph.path",
		"graph_bootstrap": "graph.bootstrap",

		// Graph entity names
		"network_context_name":      "refs.network_context",
		"virtual_network_name":      "refs.virtual_network",
		"ticket_context_name":       "refs.ticket_context",
		"ticket_process_name":       "refs.ticket_process",
		"equipment_context_name":    "refs.equipment_context",
		"building_name":             "refs.building",
		"occupant_context_name":     "refs.occupant_context",
		"organization_context_name": "refs.organization_context",
		"control_point_profile":     "refs.control_point_profile",

		// Zones
		"zone_a_name":            "zones.zone_a.name",
		"zone_a_point":           "zones.zone_a.occupancy_point",
		"zone_a_badge_point":     "zones.zone_a.badge_point",
		"zone_a_device_ids":      "zones.zone_a.device_ids",
		"zone_b_name":            "zones.zone_b.name",
		"zone_b_point":           "zones.zone_b.occupancy_point",
		"zone_b_badge_point":     "zones.zone_b.badge_point",
		"zone_b_device_ids":      "zones.zone_b.device_ids",
		"zone_c_name":            "zones.zone_c.name",
		"zone_c_point":           "zones.zone_c.occupancy_point",
		"zone_c_badge_point":     "zones.zone_c.badge_point",
		"zone_c_in_devices":      "zones.zone_c.in_devices",
		"zone_c_out_devices":     "zones.zone_c.out_devices",
		"occupancy_total_point":  "zones.total_point",

		// Admin HTTP surface
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unknown env vars are dropped rather than guessed at; a stray
	// HOSTNAME or PATH must not land in the config tree.
	return ""
}
