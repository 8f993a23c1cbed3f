// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"math/big"
	"testing"

	"github.com/luxfi/database/memdb"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/modalitylabs/modality/chain"
	"github.com/modalitylabs/modality/committer"
	"github.com/modalitylabs/modality/dag"
)

func newTestSession() *Session {
	return NewSession(memdb.New())
}

func TestSessionGetPutDelete(t *testing.T) {
	s := newTestSession()
	key := []byte("k")

	_, ok, err := s.Get(TableBlocks, key)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Put(TableBlocks, key, []byte("v")))
	v, ok, err := s.Get(TableBlocks, key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("v"), v)

	require.NoError(t, s.Delete(TableBlocks, key))
	_, ok, err = s.Get(TableBlocks, key)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSessionBatchIsAtomic(t *testing.T) {
	s := newTestSession()
	b := s.NewBatch()
	require.NoError(t, b.Put(TableBlocks, []byte("a"), []byte("1")))
	require.NoError(t, b.Put(TableCertificates, []byte("b"), []byte("2")))
	require.NoError(t, b.Write())

	v1, ok, err := s.Get(TableBlocks, []byte("a"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("1"), v1)

	v2, ok, err := s.Get(TableCertificates, []byte("b"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("2"), v2)
}

func TestSessionTablesDoNotCollide(t *testing.T) {
	s := newTestSession()
	key := []byte("shared")
	require.NoError(t, s.Put(TableBlocks, key, []byte("block-value")))
	require.NoError(t, s.Put(TableCertificates, key, []byte("cert-value")))

	v1, _, err := s.Get(TableBlocks, key)
	require.NoError(t, err)
	v2, _, err := s.Get(TableCertificates, key)
	require.NoError(t, err)
	require.Equal(t, []byte("block-value"), v1)
	require.Equal(t, []byte("cert-value"), v2)
}

func TestBlockStoreRoundTrip(t *testing.T) {
	s := newTestSession()
	bs := NewBlockStore(s)

	b := &chain.Block{Index: 1, DifficultyTarget: big.NewInt(1000)}
	require.NoError(t, bs.Put(b))

	loaded, ok, err := bs.Get(b.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, b.Index, loaded.Index)
}

func TestBlockStoreOrphansAndCheckpoints(t *testing.T) {
	s := newTestSession()
	bs := NewBlockStore(s)

	orphan := &chain.Block{Index: 5, ParentHash: ids.ID{9}, DifficultyTarget: big.NewInt(1)}
	require.NoError(t, bs.PutOrphan(orphan))
	orphans, err := bs.Orphans()
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, orphan.Index, orphans[0].Index)

	require.NoError(t, bs.DeleteOrphan(orphan.Hash()))
	orphans, err = bs.Orphans()
	require.NoError(t, err)
	require.Empty(t, orphans)

	cp := ids.ID{4, 5, 6}
	require.NoError(t, bs.PutCheckpoint(10, cp))
	checkpoints, err := bs.Checkpoints()
	require.NoError(t, err)
	require.Equal(t, cp, checkpoints[10])
}

func TestCertificateStoreRoundTrip(t *testing.T) {
	s := newTestSession()
	cs := NewCertificateStore(s)

	cert := &dag.Certificate{
		Header:     dag.Header{Author: ids.NodeID{1}, Round: 0, BatchHash: ids.ID{2}},
		Signatures: map[ids.NodeID][]byte{{1}: []byte("sig")},
	}
	require.NoError(t, cs.Put(cert))

	loaded, ok, err := cs.Get(cert.ID())
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, cert.Header.Round, loaded.Header.Round)

	all, err := cs.All()
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestCertificateStoreCommittedRounds(t *testing.T) {
	s := newTestSession()
	cs := NewCertificateStore(s)

	anchor := ids.ID{1}
	order := []ids.ID{{1}, {2}, {3}}
	require.NoError(t, cs.PutCommittedRound(3, anchor, order))

	rounds, err := cs.CommittedRounds()
	require.NoError(t, err)
	require.Equal(t, order, rounds[3])
}

func TestReputationStoreRoundTripsWithCommitter(t *testing.T) {
	s := newTestSession()
	rs := NewReputationStore(s)

	d := dag.New(1, nil)
	c := committer.New(d, nil)
	author := ids.NodeID{1}
	c.RecordOnTime(author)
	c.RecordOnTime(author)
	c.RecordFault(author)

	require.NoError(t, rs.Save(c.ReputationSnapshot()))

	loaded, err := rs.Load()
	require.NoError(t, err)

	d2 := dag.New(1, nil)
	c2 := committer.New(d2, nil)
	c2.RestoreReputations(loaded)
	require.Equal(t, c.ReputationSnapshot(), c2.ReputationSnapshot())
}
