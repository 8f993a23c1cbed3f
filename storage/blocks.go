// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"github.com/luxfi/ids"

	"github.com/modalitylabs/modality/chain"
)

// BlockStore persists mining-chain blocks, keyed by block hash, plus the
// orphan set waiting on a missing parent (spec §6 "Persisted layout":
// blocks, orphans).
type BlockStore struct {
	s *Session
}

// NewBlockStore wraps s.
func NewBlockStore(s *Session) *BlockStore { return &BlockStore{s: s} }

// Put persists a block, keyed by its content hash.
func (bs *BlockStore) Put(b *chain.Block) error {
	return bs.s.PutJSON(TableBlocks, IDKey(b.Hash()), b)
}

// Get loads a block by hash.
func (bs *BlockStore) Get(hash ids.ID) (*chain.Block, bool, error) {
	var b chain.Block
	ok, err := bs.s.GetJSON(TableBlocks, IDKey(hash), &b)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &b, true, nil
}

// PutOrphan records a block parked on a missing parent, so it can be
// replayed once the parent arrives after a restart.
func (bs *BlockStore) PutOrphan(b *chain.Block) error {
	return bs.s.PutJSON(TableOrphans, IDKey(b.Hash()), b)
}

// DeleteOrphan removes a block from the orphan set, e.g. once its parent
// has been observed and it has been resubmitted.
func (bs *BlockStore) DeleteOrphan(hash ids.ID) error {
	return bs.s.Delete(TableOrphans, IDKey(hash))
}

// Orphans walks every parked orphan.
func (bs *BlockStore) Orphans() ([]*chain.Block, error) {
	var out []*chain.Block
	err := bs.s.Iterate(TableOrphans, nil, func(_, value []byte) error {
		var b chain.Block
		if err := unmarshalJSONInto(value, &b); err != nil {
			return err
		}
		out = append(out, &b)
		return nil
	})
	return out, err
}

// PutCheckpoint records a forced checkpoint at height (spec §4.5 "Forced
// checkpoints").
func (bs *BlockStore) PutCheckpoint(height uint64, hash ids.ID) error {
	return bs.s.Put(TableCheckpoints, HeightKey(height), IDKey(hash))
}

// Checkpoints loads every persisted forced checkpoint, height -> hash.
func (bs *BlockStore) Checkpoints() (map[uint64]ids.ID, error) {
	out := map[uint64]ids.ID{}
	err := bs.s.Iterate(TableCheckpoints, nil, func(key, value []byte) error {
		height := heightFromKey(key)
		id, err := ids.ToID(value)
		if err != nil {
			return err
		}
		out[height] = id
		return nil
	})
	return out, err
}
