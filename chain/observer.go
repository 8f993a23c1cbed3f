// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
)

// Block status values (spec §4.5 "States per block").
const (
	StatusCanonical         = "canonical"
	StatusOrphan            = "orphan"
	StatusPendingValidation = "pending-validation"
)

type storedBlock struct {
	block                *Block
	status               string
	reason               string
	cumulativeDifficulty *big.Int
}

// Observer is the chain fork-choice engine (spec §4.5 "Fork choice"),
// grounded on the teacher's sync.RWMutex-guarded in-memory DAG store
// (dag.DAG) generalized from a tip-set to a single canonical-chain tip with
// cumulative-difficulty comparison.
type Observer struct {
	mu     sync.RWMutex
	logger log.Logger

	checkpoints map[uint64]ids.ID // height -> required block hash

	blocks          map[ids.ID]*storedBlock
	waitingOnParent map[ids.ID][]ids.ID // missing parent hash -> orphans waiting on it

	tip ids.ID
}

// NewObserver constructs an Observer. checkpoints may be nil.
func NewObserver(checkpoints map[uint64]ids.ID, logger log.Logger) *Observer {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if checkpoints == nil {
		checkpoints = map[uint64]ids.ID{}
	}
	return &Observer{
		logger:          logger.With("component", "chain.observer"),
		checkpoints:     checkpoints,
		blocks:          map[ids.ID]*storedBlock{},
		waitingOnParent: map[ids.ID][]ids.ID{},
	}
}

// Tip returns the current canonical tip's hash and height.
func (o *Observer) Tip() (ids.ID, uint64) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if sb, ok := o.blocks[o.tip]; ok {
		return o.tip, sb.block.Index
	}
	return ids.ID{}, 0
}

// Status reports the stored status and reason for a block, if known.
func (o *Observer) Status(hash ids.ID) (status, reason string, ok bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	sb, found := o.blocks[hash]
	if !found {
		return "", "", false
	}
	return sb.status, sb.reason, true
}

// Submit admits a new block into fork choice (spec §4.5 "Fork choice").
func (o *Observer) Submit(b *Block) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.submitLocked(b)
}

func (o *Observer) submitLocked(b *Block) error {
	hash := b.Hash()
	if _, exists := o.blocks[hash]; exists {
		return nil // idempotent resubmission
	}
	if cp, ok := o.checkpoints[b.Index]; ok && cp != hash {
		o.blocks[hash] = &storedBlock{block: b, status: StatusOrphan, reason: "checkpoint-violation"}
		return &ConsensusError{Kind: "checkpoint-violation", Reason: fmt.Sprintf("height %d requires block %s", b.Index, cp.String())}
	}

	if b.Index == 0 {
		sb := &storedBlock{block: b, status: StatusCanonical, cumulativeDifficulty: BlockWeight(b.DifficultyTarget)}
		o.blocks[hash] = sb
		o.tip = hash
		o.promoteOrphansLocked(hash)
		return nil
	}

	parent, known := o.blocks[b.ParentHash]
	if !known {
		o.blocks[hash] = &storedBlock{block: b, status: StatusOrphan, reason: "missing-parent"}
		o.waitingOnParent[b.ParentHash] = append(o.waitingOnParent[b.ParentHash], hash)
		o.logger.Debug("parked orphan", "hash", hash.String(), "missing_parent", b.ParentHash.String())
		return nil
	}

	cumDiff := new(big.Int).Add(parent.cumulativeDifficulty, BlockWeight(b.DifficultyTarget))
	sb := &storedBlock{block: b, status: StatusPendingValidation, cumulativeDifficulty: cumDiff}
	o.blocks[hash] = sb

	tip, hasTip := o.blocks[o.tip]
	if !hasTip {
		o.adoptLocked(hash)
		return nil
	}

	switch {
	case cumDiff.Cmp(tip.cumulativeDifficulty) > 0:
		o.adoptLocked(hash)
	case cumDiff.Cmp(tip.cumulativeDifficulty) == 0 && b.Index > tip.block.Index:
		o.adoptLocked(hash)
	case cumDiff.Cmp(tip.cumulativeDifficulty) == 0 && b.Index == tip.block.Index && lessHash(hash, o.tip):
		// Invariant 6 tie-break: lexicographically lesser block hash wins.
		o.adoptLocked(hash)
	default:
		// Single-block conflict at the same height as an already-canonical
		// block: keep the first-seen winner, record the loser's reason
		// (spec §4.5 "Single-block conflict").
		if winner, ok := o.canonicalAtHeightLocked(b.Index); ok && winner != hash {
			sb.status = StatusOrphan
			sb.reason = fmt.Sprintf("competing(%s)", winner.String())
		}
	}
	// A newly known block re-admits any orphans parked on it, adopted or not.
	o.promoteOrphansLocked(hash)
	return nil
}

// canonicalAtHeightLocked walks back from the current tip to find the
// canonical block at height, if the canonical chain reaches that far.
func (o *Observer) canonicalAtHeightLocked(height uint64) (ids.ID, bool) {
	cur := o.tip
	for {
		sb, ok := o.blocks[cur]
		if !ok {
			return ids.ID{}, false
		}
		if sb.block.Index == height {
			return cur, true
		}
		if sb.block.Index < height || sb.block.Index == 0 {
			return ids.ID{}, false
		}
		cur = sb.block.ParentHash
	}
}

// adoptLocked performs a multi-block reorganization to newTip (spec §4.5
// "Multi-block reorganization ... adopt iff strictly greater, or equal and
// strictly longer. Never partial."): it walks both the old and new
// canonical paths back to their common ancestor, atomically marks the
// displaced segment orphan(reorg) and the new segment canonical, then
// updates the tip.
func (o *Observer) adoptLocked(newTip ids.ID) {
	oldPath := o.pathToGenesisLocked(o.tip)
	newPath := o.pathToGenesisLocked(newTip)

	oldSet := make(map[ids.ID]bool, len(oldPath))
	for _, h := range oldPath {
		oldSet[h] = true
	}
	newSet := make(map[ids.ID]bool, len(newPath))
	for _, h := range newPath {
		newSet[h] = true
	}

	for _, h := range oldPath {
		if !newSet[h] {
			sb := o.blocks[h]
			sb.status = StatusOrphan
			sb.reason = "reorg"
		}
	}
	for _, h := range newPath {
		sb := o.blocks[h]
		sb.status = StatusCanonical
		sb.reason = ""
	}

	o.tip = newTip
	o.logger.Info("reorg adopted", "new_tip", newTip.String())
	o.promoteOrphansLocked(newTip)
}

// pathToGenesisLocked returns the chain of hashes from genesis to hash
// (inclusive), or just [hash] if hash is unknown or already genesis.
func (o *Observer) pathToGenesisLocked(hash ids.ID) []ids.ID {
	var rev []ids.ID
	cur := hash
	for {
		sb, ok := o.blocks[cur]
		if !ok {
			break
		}
		rev = append(rev, cur)
		if sb.block.Index == 0 {
			break
		}
		cur = sb.block.ParentHash
	}
	out := make([]ids.ID, len(rev))
	for i, h := range rev {
		out[len(rev)-1-i] = h
	}
	return out
}

// promoteOrphansLocked re-attempts every orphan parked on "missing-parent"
// waiting for now-known, now cascades until no further promotion (spec
// §4.5 "Orphan promotion").
func (o *Observer) promoteOrphansLocked(known ids.ID) {
	waiting, ok := o.waitingOnParent[known]
	if !ok {
		return
	}
	delete(o.waitingOnParent, known)
	for _, orphanHash := range waiting {
		sb := o.blocks[orphanHash]
		delete(o.blocks, orphanHash) // re-submit as a fresh candidate
		_ = o.submitLocked(sb.block)
	}
}

func lessHash(a, b ids.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
