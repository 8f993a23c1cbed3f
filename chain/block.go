// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package chain implements the proof-of-work mining chain and its
// cumulative-difficulty fork choice (spec §4.5 "Mining Chain & Fork
// Choice").
package chain

import (
	"crypto/sha256"
	"encoding/binary"
	"math/big"

	"github.com/luxfi/ids"

	"github.com/modalitylabs/modality/contract"
)

// Block is one entry of the mining chain.
type Block struct {
	Index            uint64
	ParentHash       ids.ID
	NomineePeerID    ids.NodeID
	DifficultyTarget *big.Int // proof-of-work succeeds when Hash() <= DifficultyTarget
	Nonce            uint64
	Timestamp        int64
	CommitRoot       ids.ID // merkle commitment of enclosed commits
	Commits          []*contract.Commit

	// CumulativeDifficulty is filled in by the observer when the block is
	// linked to its parent (spec §3 "Block"); it is not part of the hashed
	// header since it is derived, not chosen by the miner.
	CumulativeDifficulty *big.Int
}

// headerBytes returns the fields that are hashed for proof-of-work and for
// block identity: everything except the enclosed commits themselves (those
// are summarized by CommitRoot) and the derived CumulativeDifficulty.
func (b *Block) headerBytes() []byte {
	buf := make([]byte, 0, 128)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], b.Index)
	buf = append(buf, tmp[:]...)
	buf = append(buf, b.ParentHash[:]...)
	buf = append(buf, b.NomineePeerID[:]...)
	if b.DifficultyTarget != nil {
		buf = append(buf, b.DifficultyTarget.Bytes()...)
	}
	binary.BigEndian.PutUint64(tmp[:], b.Nonce)
	buf = append(buf, tmp[:]...)
	binary.BigEndian.PutUint64(tmp[:], uint64(b.Timestamp))
	buf = append(buf, tmp[:]...)
	buf = append(buf, b.CommitRoot[:]...)
	return buf
}

// Hash returns the block's content-hash identity (spec §3 "Block").
func (b *Block) Hash() ids.ID {
	sum := sha256.Sum256(b.headerBytes())
	return ids.ID(sum)
}

// MeetsTarget reports whether the block's header hash, read as a big-endian
// integer, is at or below DifficultyTarget — the proof-of-work condition
// a miner searches nonce values to satisfy.
func (b *Block) MeetsTarget() bool {
	h := b.Hash()
	asInt := new(big.Int).SetBytes(h[:])
	return asInt.Cmp(b.DifficultyTarget) <= 0
}

// CommitRootOf computes the Merkle root of an ordered commit list, binding
// the block header to the exact sequence of enclosed commits.
func CommitRootOf(commits []*contract.Commit) ids.ID {
	if len(commits) == 0 {
		return ids.ID(sha256.Sum256(nil))
	}
	layer := make([][32]byte, len(commits))
	for i, c := range commits {
		layer[i] = [32]byte(c.Hash())
	}
	for len(layer) > 1 {
		var next [][32]byte
		for i := 0; i < len(layer); i += 2 {
			if i+1 == len(layer) {
				next = append(next, sha256.Sum256(append(layer[i][:], layer[i][:]...)))
				continue
			}
			next = append(next, sha256.Sum256(append(layer[i][:], layer[i+1][:]...)))
		}
		layer = next
	}
	return ids.ID(layer[0])
}

// Mine searches nonce values starting from 0 until the block meets its
// difficulty target, or maxAttempts is exhausted (spec §4.5 "Block
// production": "searches for nonce such that hash(block_header) <=
// target"). Real network miners run this unbounded in a loop across many
// candidate blocks; maxAttempts lets tests and bounded-time callers cap the
// search.
func Mine(b *Block, maxAttempts uint64) bool {
	for n := uint64(0); n < maxAttempts; n++ {
		b.Nonce = n
		if b.MeetsTarget() {
			return true
		}
	}
	return false
}
