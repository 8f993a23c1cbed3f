// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/luxfi/codec"
	"github.com/luxfi/ids"
	"github.com/modalitylabs/modality/chain"
	"github.com/modalitylabs/modality/contract"
)

func bigFromUint64(v uint64) *big.Int {
	return new(big.Int).SetUint64(v)
}

// blockWireVersion is the single supported block-wire-format version
// (spec §6 "Block wire format": `{version: u8, ...}`).
const blockWireVersion = 0

// commitCodec marshals each commit within a block body into luxfi/codec's
// versioned encoding; EncodeBlock writes a 4-byte big-endian length prefix
// in front of each payload.
var commitCodec = codec.Codec

// EncodeBlock serializes a block to the binary wire format (spec §6
// "Block wire format"): a fixed binary header followed by a
// length-prefixed sequence of commits.
func EncodeBlock(b *chain.Block, stateRoot ids.ID) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(blockWireVersion)

	var u64 [8]byte
	binary.BigEndian.PutUint64(u64[:], b.Index)
	buf.Write(u64[:])
	buf.Write(b.ParentHash[:])
	buf.Write(stateRoot[:])
	buf.Write(b.CommitRoot[:])

	var i64 [8]byte
	binary.BigEndian.PutUint64(i64[:], uint64(b.Timestamp))
	buf.Write(i64[:])

	if !b.DifficultyTarget.IsUint64() {
		return nil, fmt.Errorf("encode block: difficulty target exceeds u64 wire width")
	}
	binary.BigEndian.PutUint64(u64[:], b.DifficultyTarget.Uint64())
	buf.Write(u64[:])

	buf.Write(b.NomineePeerID[:])
	binary.BigEndian.PutUint64(u64[:], b.Nonce)
	buf.Write(u64[:])

	for _, c := range b.Commits {
		payload, err := commitCodec.Marshal(codec.CurrentVersion, c)
		if err != nil {
			return nil, fmt.Errorf("encode commit: %w", err)
		}
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		buf.Write(lenBuf[:])
		buf.Write(payload)
	}
	return buf.Bytes(), nil
}

// blockHeaderSize is the fixed byte width of every field preceding the
// commit sequence: version(1) + index(8) + parent_hash(32) +
// state_root(32) + commit_root(32) + timestamp_ms(8) + difficulty(8) +
// nominee(32) + nonce(8).
const blockHeaderSize = 1 + 8 + 32 + 32 + 32 + 8 + 8 + 32 + 8

// DecodeBlock parses the binary wire format produced by EncodeBlock,
// returning the block and the state root carried alongside it.
func DecodeBlock(data []byte) (*chain.Block, ids.ID, error) {
	if len(data) < blockHeaderSize {
		return nil, ids.ID{}, fmt.Errorf("decode block: truncated header (%d bytes)", len(data))
	}
	if data[0] != blockWireVersion {
		return nil, ids.ID{}, fmt.Errorf("decode block: unsupported wire version %d", data[0])
	}
	pos := 1
	index := binary.BigEndian.Uint64(data[pos:])
	pos += 8
	var parentHash, stateRoot ids.ID
	copy(parentHash[:], data[pos:pos+32])
	pos += 32
	copy(stateRoot[:], data[pos:pos+32])
	pos += 32
	var commitRoot ids.ID
	copy(commitRoot[:], data[pos:pos+32])
	pos += 32
	timestamp := int64(binary.BigEndian.Uint64(data[pos:]))
	pos += 8
	difficulty := binary.BigEndian.Uint64(data[pos:])
	pos += 8
	var nominee ids.NodeID
	copy(nominee[:], data[pos:pos+32])
	pos += 32
	nonce := binary.BigEndian.Uint64(data[pos:])
	pos += 8

	b := &chain.Block{
		Index:            index,
		ParentHash:       parentHash,
		NomineePeerID:    nominee,
		DifficultyTarget: bigFromUint64(difficulty),
		Nonce:            nonce,
		Timestamp:        timestamp,
		CommitRoot:       commitRoot,
	}

	for pos < len(data) {
		if pos+4 > len(data) {
			return nil, ids.ID{}, fmt.Errorf("decode block: truncated commit length prefix")
		}
		n := int(binary.BigEndian.Uint32(data[pos:]))
		pos += 4
		if pos+n > len(data) {
			return nil, ids.ID{}, fmt.Errorf("decode block: truncated commit payload")
		}
		var c contract.Commit
		if _, err := commitCodec.Unmarshal(data[pos:pos+n], &c); err != nil {
			return nil, ids.ID{}, fmt.Errorf("decode commit: %w", err)
		}
		b.Commits = append(b.Commits, &c)
		pos += n
	}
	if b.CommitRoot != chain.CommitRootOf(b.Commits) {
		return nil, ids.ID{}, fmt.Errorf("decode block: commit root mismatch")
	}
	return b, stateRoot, nil
}
