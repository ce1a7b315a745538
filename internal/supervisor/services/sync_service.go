// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package services adapts the connector's components to suture's Serve
// pattern.
package services

import (
	"context"
	"fmt"
)

// SyncManager matches the sync manager's lifecycle.
type SyncManager interface {
	Start(ctx context.Context) error
	Stop()
}

// SyncService wraps the sync manager as a supervised service: Start on
// entry, block on the context, Stop on the way out. The manager owns
// its goroutines internally, so the wrapper only sequences the
// transitions.
type SyncService struct {
	manager SyncManager
}

// NewSyncService creates a sync service wrapper.
func NewSyncService(manager SyncManager) *SyncService {
	return &SyncService{manager: manager}
}

// Serve implements suture.Service. A Start failure returns immediately
// so suture restarts with backoff.
func (s *SyncService) Serve(ctx context.Context) error {
	if err := s.manager.Start(ctx); err != nil {
		return fmt.Errorf("sync manager start failed: %w", err)
	}
	<-ctx.Done()
	s.manager.Stop()
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor logs.
func (s *SyncService) String() string {
	return "sync-manager"
}
