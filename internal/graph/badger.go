// Portier - Access Control Event Synchronization for Building Graphs
// Copyright 2026 Portier Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/portier-bms/portier

package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/portier-bms/portier/internal/logging"
)

// Key layout:
//
//	node/<id>                        -> Node JSON
//	ctx/<name>                      -> node id
//	rel/<parent>/<relation>/<child> -> nil
//	cidx/<parent>/<relation>/<name> -> child id   (name index)
//	attr/<node>/<category>/<name>   -> value
//	val/<node>                      -> float64 as string
//
// The cidx keyspace is the write-through name index: ChildByName is a
// point read, never a scan over the relation.
const (
	prefixNode = "node/"
	prefixCtx  = "ctx/"
	prefixRel  = "rel/"
	prefixCidx = "cidx/"
	prefixAttr = "attr/"
	prefixVal  = "val/"
)

// BadgerStore implements Store on BadgerDB. All mutations run inside
// Badger transactions; a crashed process never leaves a node without its
// index entry.
type BadgerStore struct {
	db *badger.DB
}

// Open opens (or creates) the graph database at path. With inMemory set,
// no files are written; intended for tests.
func Open(path string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithInMemory(inMemory)
	if inMemory {
		opts = opts.WithDir("").WithValueDir("")
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph database: %w", err)
	}

	logging.Info().Str("path", path).Bool("in_memory", inMemory).Msg("Graph store opened")
	return &BadgerStore{db: db}, nil
}

// DB exposes the underlying Badger handle so sibling services (the
// timeseries recorder) can share one database.
func (s *BadgerStore) DB() *badger.DB {
	return s.db
}

// Close releases the underlying storage.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}

// CreateNode creates a new node with a generated ID.
func (s *BadgerStore) CreateNode(_ context.Context, name, nodeType string) (*Node, error) {
	node := &Node{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      nodeType,
		CreatedAt: time.Now().UTC(),
	}

	payload, err := json.Marshal(node)
	if err != nil {
		return nil, fmt.Errorf("failed to encode node: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixNode+node.ID), payload)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store node %q: %w", name, err)
	}
	return node, nil
}

// Node loads a node by ID.
func (s *BadgerStore) Node(_ context.Context, id string) (*Node, error) {
	var node *Node
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = readNode(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return node, nil
}

func readNode(txn *badger.Txn, id string) (*Node, error) {
	item, err := txn.Get([]byte(prefixNode + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read node %s: %w", id, err)
	}

	node := &Node{}
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, node)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode node %s: %w", id, err)
	}
	return node, nil
}

// Context resolves a root-level context by name.
func (s *BadgerStore) Context(ctx context.Context, name string) (*Node, error) {
	var id string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCtx + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			id = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Node(ctx, id)
}

// GetOrCreateContext resolves a root-level context, creating it when absent.
func (s *BadgerStore) GetOrCreateContext(ctx context.Context, name, nodeType string) (*Node, error) {
	node, err := s.Context(ctx, name)
	if err == nil {
		return node, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	node, err = s.CreateNode(ctx, name, nodeType)
	if err != nil {
		return nil, err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixCtx+name), []byte(node.ID))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register context %q: %w", name, err)
	}

	logging.Debug().Str("context", name).Str("type", nodeType).Msg("Context created")
	return node, nil
}

// AddChild links child under parent with the given relation name and
// records the child in the name index.
func (s *BadgerStore) AddChild(_ context.Context, parentID, relation, childID string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		child, err := readNode(txn, childID)
		if err != nil {
			return err
		}
		if _, err := readNode(txn, parentID); err != nil {
			return err
		}

		relKey := []byte(prefixRel + parentID + "/" + relation + "/" + childID)
		if err := txn.Set(relKey, nil); err != nil {
			return err
		}
		idxKey := []byte(prefixCidx + parentID + "/" + relation + "/" + child.Name)
		return txn.Set(idxKey, []byte(childID))
	})
}

// Children lists the nodes linked under parent with the relation.
func (s *BadgerStore) Children(_ context.Context, parentID, relation string) ([]*Node, error) {
	var nodes []*Node
	prefix := []byte(prefixRel + parentID + "/" + relation + "/")

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			childID := string(it.Item().Key()[len(prefix):])
			node, err := readNode(txn, childID)
			if errors.Is(err, ErrNotFound) {
				// Dangling relation to a purged node; skip.
				continue
			}
			if err != nil {
				return err
			}
			nodes = append(nodes, node)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return nodes, nil
}

// ChildByName resolves a single child through the name index.
func (s *BadgerStore) ChildByName(ctx context.Context, parentID, relation, name string) (*Node, error) {
	var childID string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCidx + parentID + "/" + relation + "/" + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			childID = string(val)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return s.Node(ctx, childID)
}

// RemoveChildren unlinks and deletes every child under parent with the
// relation, including the children's attributes and values.
func (s *BadgerStore) RemoveChildren(_ context.Context, parentID, relation string) (int, error) {
	removed := 0
	prefix := []byte(prefixRel + parentID + "/" + relation + "/")

	err := s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)

		var relKeys [][]byte
		var childIDs []string
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			relKeys = append(relKeys, it.Item().KeyCopy(nil))
			childIDs = append(childIDs, string(it.Item().Key()[len(prefix):]))
		}
		it.Close()

		for i, childID := range childIDs {
			child, err := readNode(txn, childID)
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
			if err := txn.Delete(relKeys[i]); err != nil {
				return err
			}
			if child == nil {
				continue
			}
			idxKey := []byte(prefixCidx + parentID + "/" + relation + "/" + child.Name)
			if err := txn.Delete(idxKey); err != nil {
				return err
			}
			if err := deleteNodeData(txn, childID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// deleteNodeData removes a node record plus its attributes and value.
func deleteNodeData(txn *badger.Txn, nodeID string) error {
	if err := txn.Delete([]byte(prefixNode + nodeID)); err != nil {
		return err
	}
	if err := txn.Delete([]byte(prefixVal + nodeID)); err != nil {
		return err
	}

	attrPrefix := []byte(prefixAttr + nodeID + "/")
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	var attrKeys [][]byte
	for it.Seek(attrPrefix); it.ValidForPrefix(attrPrefix); it.Next() {
		attrKeys = append(attrKeys, it.Item().KeyCopy(nil))
	}
	it.Close()

	for _, key := range attrKeys {
		if err := txn.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// SetAttribute writes a named attribute under a category.
func (s *BadgerStore) SetAttribute(_ context.Context, nodeID, category, name, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := readNode(txn, nodeID); err != nil {
			return err
		}
		return txn.Set([]byte(prefixAttr+nodeID+"/"+category+"/"+name), []byte(value))
	})
}

// Attribute reads a named attribute.
func (s *BadgerStore) Attribute(_ context.Context, nodeID, category, name string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixAttr + nodeID + "/" + category + "/" + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// SetValue writes the node's scalar current value.
func (s *BadgerStore) SetValue(_ context.Context, nodeID string, value float64) error {
	encoded := strconv.FormatFloat(value, 'g', -1, 64)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := readNode(txn, nodeID); err != nil {
			return err
		}
		return txn.Set([]byte(prefixVal+nodeID), []byte(encoded))
	})
}

// LoadValue reads the node's scalar current value; unset values read as 0.
func (s *BadgerStore) LoadValue(_ context.Context, nodeID string) (float64, error) {
	var value float64
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := readNode(txn, nodeID); err != nil {
			return err
		}
		item, err := txn.Get([]byte(prefixVal + nodeID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // unset reads as 0
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			parsed, perr := strconv.ParseFloat(string(val), 64)
			if perr != nil {
				return fmt.Errorf("corrupt value for node %s: %w", nodeID, perr)
			}
			value = parsed
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}
