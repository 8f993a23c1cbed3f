// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"github.com/luxfi/ids"
)

// ReputationStore persists the committer's per-author leader-reputation
// history, so a restarted node doesn't reset every validator's standing to
// zero (spec §6 "Persisted layout": reputations; spec §4.7 "decaying score
// over the last K rounds" must survive restarts to stay meaningful).
type ReputationStore struct {
	s *Session
}

// NewReputationStore wraps s.
func NewReputationStore(s *Session) *ReputationStore { return &ReputationStore{s: s} }

// Save persists a full reputation snapshot (committer.Committer.ReputationSnapshot).
func (rs *ReputationStore) Save(snapshot map[ids.NodeID][]int8) error {
	batch := rs.s.NewBatch()
	for author, history := range snapshot {
		if err := batch.PutJSON(TableReputations, NodeKey(author), history); err != nil {
			return err
		}
	}
	return batch.Write()
}

// Load reads back every persisted author's reputation history
// (committer.Committer.RestoreReputations).
func (rs *ReputationStore) Load() (map[ids.NodeID][]int8, error) {
	out := map[ids.NodeID][]int8{}
	err := rs.s.Iterate(TableReputations, nil, func(key, value []byte) error {
		var history []int8
		if err := unmarshalJSONInto(value, &history); err != nil {
			return err
		}
		var author ids.NodeID
		copy(author[:], key)
		out[author] = history
		return nil
	})
	return out, err
}
