// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package storage persists the node's durable state: mining-chain blocks,
// DAG certificates and orphans, committed rounds, validator reputation
// history, and forced checkpoints (spec §6 "Persisted layout"). It wraps a
// pluggable github.com/luxfi/database key/value store the way the teacher
// wraps it for chain/DAG state (engine/dag/state/state.go's
// SerializerConfig.DB), generalized from a single flat namespace into
// per-table prefixes over one physical database.
package storage

import (
	"encoding/binary"
	"encoding/json"

	"github.com/luxfi/database"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// Table names one logical namespace within the physical key/value store.
type Table byte

const (
	TableBlocks        Table = iota // mining-chain blocks, keyed by hash
	TableCertificates               // DAG certificates, keyed by header hash
	TableOrphans                    // blocks parked pending their parent
	TableRounds                     // committed-round anchor sequence
	TableReputations                // validator reputation history snapshots
	TableCheckpoints                // forced checkpoints, keyed by height
)

// Session is a table-namespaced view over one physical database, grounded
// on the teacher's pattern of handing a single database.Database down into
// per-component state managers (engine/dag/state/state.go,
// engine/graph/state/state.go) rather than opening one physical store per
// concern.
type Session struct {
	db database.Database
}

// NewSession wraps db. A nil db is invalid; callers construct one with a
// concrete github.com/luxfi/database implementation (memdb for tests,
// a persistent implementation in production).
func NewSession(db database.Database) *Session {
	return &Session{db: db}
}

func tableKey(t Table, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(t)
	copy(out[1:], key)
	return out
}

// Get reads a raw value from table at key. ok is false if the key is
// absent.
func (s *Session) Get(t Table, key []byte) (value []byte, ok bool, err error) {
	v, err := s.db.Get(tableKey(t, key))
	if err == database.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Put writes a raw value into table at key.
func (s *Session) Put(t Table, key, value []byte) error {
	return s.db.Put(tableKey(t, key), value)
}

// Delete removes key from table.
func (s *Session) Delete(t Table, key []byte) error {
	return s.db.Delete(tableKey(t, key))
}

// Has reports whether key exists in table.
func (s *Session) Has(t Table, key []byte) (bool, error) {
	return s.db.Has(tableKey(t, key))
}

// GetJSON reads and JSON-decodes a value from table at key.
func (s *Session) GetJSON(t Table, key []byte, v interface{}) (ok bool, err error) {
	raw, found, err := s.Get(t, key)
	if err != nil || !found {
		return found, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, err
	}
	return true, nil
}

// PutJSON JSON-encodes v and writes it into table at key.
func (s *Session) PutJSON(t Table, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Put(t, key, raw)
}

// Iterate walks every key/value pair in table whose key starts with prefix
// (prefix may be empty to walk the whole table), calling fn for each. It
// stops and returns fn's error if fn returns non-nil.
func (s *Session) Iterate(t Table, prefix []byte, fn func(key, value []byte) error) error {
	it := s.db.NewIteratorWithPrefix(tableKey(t, prefix))
	defer it.Release()
	for it.Next() {
		// Strip the one-byte table tag back off before handing the key to
		// the caller.
		key := append([]byte(nil), it.Key()[1:]...)
		value := append([]byte(nil), it.Value()...)
		if err := fn(key, value); err != nil {
			return err
		}
	}
	return it.Error()
}

// Batch accumulates writes across tables for atomic commit (spec §6
// "atomic batch writes").
type Batch struct {
	raw database.Batch
}

// NewBatch starts a new atomic batch against s's underlying database.
func (s *Session) NewBatch() *Batch {
	return &Batch{raw: s.db.NewBatch()}
}

// Put stages a raw write in table at key.
func (b *Batch) Put(t Table, key, value []byte) error {
	return b.raw.Put(tableKey(t, key), value)
}

// PutJSON stages a JSON-encoded write in table at key.
func (b *Batch) PutJSON(t Table, key []byte, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return b.Put(t, key, raw)
}

// Delete stages a deletion in table at key.
func (b *Batch) Delete(t Table, key []byte) error {
	return b.raw.Delete(tableKey(t, key))
}

// Write commits every staged operation atomically.
func (b *Batch) Write() error {
	return b.raw.Write()
}

// IDKey renders an ids.ID as a table key.
func IDKey(id ids.ID) []byte { return id[:] }

// HeightKey renders a block height / round number as a big-endian table key
// so that Iterate walks tables in ascending numeric order.
func HeightKey(height uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], height)
	return buf[:]
}

// NodeKey renders an ids.NodeID as a table key.
func NodeKey(id ids.NodeID) []byte { return id[:] }

// loggerOrNoOp returns logger, substituting a no-op logger when nil, the
// same nil-safety convention used throughout node/ and chain/.
func loggerOrNoOp(logger log.Logger) log.Logger {
	if logger == nil {
		return log.NewNoOpLogger()
	}
	return logger
}
