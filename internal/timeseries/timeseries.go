// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

// Package timeseries records counter and control-point samples keyed by
// entity and timestamp, sharing the graph's BadgerDB.
package timeseries

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Recorder is the time-series boundary consumed by the sync engine.
type Recorder interface {
	// AppendSample records value for the entity at the given timestamp.
	AppendSample(ctx context.Context, nodeID string, value float64, at time.Time) error

	// AppendLatest records value for the entity at the current time.
	AppendLatest(ctx context.Context, nodeID string, value float64) error
}

// Sample is one recorded data point.
type Sample struct {
	At    time.Time
	Value float64
}

const tsPrefix = "ts/"

// BadgerRecorder implements Recorder on the shared graph database.
//
// Key layout: ts/<node>/<big-endian unix-millis> -> float64 as string.
// Big-endian millis keep samples chronologically ordered under prefix
// iteration.
type BadgerRecorder struct {
	db *badger.DB
}

// NewBadgerRecorder creates a recorder on the given database handle.
func NewBadgerRecorder(db *badger.DB) *BadgerRecorder {
	return &BadgerRecorder{db: db}
}

func sampleKey(nodeID string, at time.Time) []byte {
	key := make([]byte, 0, len(tsPrefix)+len(nodeID)+1+8)
	key = append(key, tsPrefix...)
	key = append(key, nodeID...)
	key = append(key, '/')
	key = binary.BigEndian.AppendUint64(key, uint64(at.UnixMilli())) //nolint:gosec // epochs are positive
	return key
}

// AppendSample records value for the entity at the given timestamp.
func (r *BadgerRecorder) AppendSample(_ context.Context, nodeID string, value float64, at time.Time) error {
	encoded := strconv.FormatFloat(value, 'g', -1, 64)
	err := r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sampleKey(nodeID, at), []byte(encoded))
	})
	if err != nil {
		return fmt.Errorf("failed to append sample for %s: %w", nodeID, err)
	}
	return nil
}

// AppendLatest records value for the entity at the current time.
func (r *BadgerRecorder) AppendLatest(ctx context.Context, nodeID string, value float64) error {
	return r.AppendSample(ctx, nodeID, value, time.Now())
}

// Samples returns the recorded samples for an entity within [from, to],
// oldest first. Used by tests and the admin surface.
func (r *BadgerRecorder) Samples(_ context.Context, nodeID string, from, to time.Time) ([]Sample, error) {
	var samples []Sample
	prefix := []byte(tsPrefix + nodeID + "/")

	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(sampleKey(nodeID, from)); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			ms := binary.BigEndian.Uint64(item.Key()[len(prefix):])
			at := time.UnixMilli(int64(ms)) //nolint:gosec // epochs fit in int64
			if at.After(to) {
				break
			}
			err := item.Value(func(val []byte) error {
				v, perr := strconv.ParseFloat(string(val), 64)
				if perr != nil {
					return fmt.Errorf("corrupt sample for %s: %w", nodeID, perr)
				}
				samples = append(samples, Sample{At: at, Value: v})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return samples, nil
}
