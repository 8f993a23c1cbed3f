// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"math/big"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

// easyTarget/hardTarget give these tests exact, hash-independent weights
// (BlockWeight floors maxHash/target to 1 and 7 respectively) so cumulative-difficulty
// comparisons never land on an ambiguous tie that would otherwise need the
// lexicographic hash tie-break.
func easyTarget() *big.Int { return new(big.Int).Lsh(big.NewInt(1), 255) }
func hardTarget() *big.Int { return new(big.Int).Lsh(big.NewInt(1), 253) }

func childWithTarget(parent *Block, nominee byte, target *big.Int) *Block {
	b := &Block{
		Index:            parent.Index + 1,
		ParentHash:       parent.Hash(),
		DifficultyTarget: target,
		Timestamp:        parent.Timestamp + 1,
	}
	b.NomineePeerID[0] = nominee
	return b
}

func child(parent *Block, nominee byte) *Block {
	return childWithTarget(parent, nominee, easyTarget())
}

func genesis() *Block {
	return &Block{Index: 0, DifficultyTarget: easyTarget(), Timestamp: 1000}
}

func TestObserverLinearChain(t *testing.T) {
	o := NewObserver(nil, nil)
	g := genesis()
	require.NoError(t, o.Submit(g))

	b1 := child(g, 1)
	require.NoError(t, o.Submit(b1))
	b2 := child(b1, 1)
	require.NoError(t, o.Submit(b2))

	tip, height := o.Tip()
	require.Equal(t, b2.Hash(), tip)
	require.Equal(t, uint64(2), height)

	status, _, ok := o.Status(g.Hash())
	require.True(t, ok)
	require.Equal(t, StatusCanonical, status)
}

func TestObserverOrphanPromotion(t *testing.T) {
	o := NewObserver(nil, nil)
	g := genesis()
	b1 := child(g, 1)
	b2 := child(b1, 1)

	// Submit the tip before its ancestors are known.
	require.NoError(t, o.Submit(b2))
	status, reason, ok := o.Status(b2.Hash())
	require.True(t, ok)
	require.Equal(t, StatusOrphan, status)
	require.Equal(t, "missing-parent", reason)

	require.NoError(t, o.Submit(g))
	require.NoError(t, o.Submit(b1))

	tip, _ := o.Tip()
	require.Equal(t, b2.Hash(), tip)
	status, _, ok = o.Status(b2.Hash())
	require.True(t, ok)
	require.Equal(t, StatusCanonical, status)
}

func TestObserverCheckpointRejectsDisagreeingBlock(t *testing.T) {
	g := genesis()
	cps := map[uint64]ids.ID{0: g.Hash()}
	o := NewObserver(cps, nil)

	wrongGenesis := &Block{Index: 0, DifficultyTarget: easyTarget(), Timestamp: 999}
	err := o.Submit(wrongGenesis)
	require.Error(t, err)
	var cerr *ConsensusError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, "checkpoint-violation", cerr.Kind)

	require.NoError(t, o.Submit(g))
	tip, _ := o.Tip()
	require.Equal(t, g.Hash(), tip)
}

func TestObserverReorgAdoptsHeavierFork(t *testing.T) {
	o := NewObserver(nil, nil)
	g := genesis()
	require.NoError(t, o.Submit(g))

	a1 := childWithTarget(g, 1, hardTarget())
	require.NoError(t, o.Submit(a1))
	tip, _ := o.Tip()
	require.Equal(t, a1.Hash(), tip)

	// A lighter competing block at the same height is kept as first-seen
	// winner: it does not out-weigh a1.
	b1 := child(g, 2)
	require.NoError(t, o.Submit(b1))
	status, reason, ok := o.Status(b1.Hash())
	require.True(t, ok)
	require.Equal(t, StatusOrphan, status)
	require.Contains(t, reason, "competing(")

	// Extending the competing fork with another heavy block pushes its
	// cumulative difficulty past a1's, triggering a reorg.
	b2 := childWithTarget(b1, 2, hardTarget())
	require.NoError(t, o.Submit(b2))

	newTip, height := o.Tip()
	require.Equal(t, b2.Hash(), newTip)
	require.Equal(t, uint64(2), height)

	status, reason, ok = o.Status(a1.Hash())
	require.True(t, ok)
	require.Equal(t, StatusOrphan, status)
	require.Equal(t, "reorg", reason)
}
