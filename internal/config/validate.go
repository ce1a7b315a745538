// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// requiredRefs maps RefsConfig accessors to the env var a deployment uses
// to set them. Resolution of every one of these entities is required at
// initialization, so an empty name fails fast with the var named.
var requiredRefs = []struct {
	get func(*RefsConfig) string
	env string
}{
	{func(r *RefsConfig) string { return r.NetworkContext }, "NETWORK_CONTEXT_NAME"},
	{func(r *RefsConfig) string { return r.VirtualNetwork }, "VIRTUAL_NETWORK_NAME"},
	{func(r *RefsConfig) string { return r.TicketContext }, "TICKET_CONTEXT_NAME"},
	{func(r *RefsConfig) string { return r.TicketProcess }, "TICKET_PROCESS_NAME"},
	{func(r *RefsConfig) string { return r.EquipmentContext }, "EQUIPMENT_CONTEXT_NAME"},
	{func(r *RefsConfig) string { return r.Building }, "BUILDING_NAME"},
	{func(r *RefsConfig) string { return r.OccupantContext }, "OCCUPANT_CONTEXT_NAME"},
	{func(r *RefsConfig) string { return r.OrganizationContext }, "ORGANIZATION_CONTEXT_NAME"},
	{func(r *RefsConfig) string { return r.ControlPointProfile }, "CONTROL_POINT_PROFILE"},
}

// Validate checks the configuration for completeness. Required graph entity
// names produce a named "not found" error so operators can see which
// environment variable is missing.
func (c *Config) Validate() error {
	for _, ref := range requiredRefs {
		if ref.get(&c.Refs) == "" {
			return fmt.Errorf("%s not found in configuration", ref.env)
		}
	}

	for _, zone := range []*ZoneConfig{&c.Zones.ZoneA, &c.Zones.ZoneB, &c.Zones.ZoneC} {
		if zone.Name == "" {
			return fmt.Errorf("zone name not found in configuration")
		}
		if zone.OccupancyPoint == "" {
			zone.OccupancyPoint = fmt.Sprintf("Occupancy %s", zone.Name)
		}
		if zone.BadgePoint == "" {
			zone.BadgePoint = fmt.Sprintf("Badge Count %s", zone.Name)
		}
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if ok := asValidationErrors(err, &verrs); ok && len(verrs) > 0 {
			f := verrs[0]
			return fmt.Errorf("invalid configuration: field %s failed %q", f.Namespace(), f.Tag())
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	verrs, ok := err.(validator.ValidationErrors) //nolint:errorlint // validator returns this concrete type
	if ok {
		*target = verrs
	}
	return ok
}
