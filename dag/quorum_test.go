// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"errors"
	"testing"

	"github.com/luxfi/ids"
	"github.com/luxfi/validators"
	"github.com/stretchr/testify/require"
)

// fixedSet is a hand-written validators.Set over a fixed validator list,
// standing in for a real validators.Manager-backed set in tests.
type fixedSet struct {
	members []validators.Validator
}

func newFixedSet(weights map[byte]uint64) *fixedSet {
	s := &fixedSet{}
	for v, w := range weights {
		s.members = append(s.members, &validators.ValidatorImpl{NodeID: nodeID(v), LightVal: w})
	}
	return s
}

func (s *fixedSet) Has(id ids.NodeID) bool {
	for _, m := range s.members {
		if m.ID() == id {
			return true
		}
	}
	return false
}

func (s *fixedSet) Len() int { return len(s.members) }

func (s *fixedSet) List() []validators.Validator { return s.members }

func (s *fixedSet) Light() uint64 {
	var total uint64
	for _, m := range s.members {
		total += m.Light()
	}
	return total
}

func (s *fixedSet) Sample(size int) ([]ids.NodeID, error) {
	if size > len(s.members) {
		return nil, errors.New("sample size exceeds set")
	}
	out := make([]ids.NodeID, 0, size)
	for i := 0; i < size; i++ {
		out = append(out, s.members[i].ID())
	}
	return out, nil
}

func TestWeightOfLooksUpByNodeID(t *testing.T) {
	set := newFixedSet(map[byte]uint64{1: 10, 2: 20, 3: 30})
	require.Equal(t, uint64(10), weightOf(set, nodeID(1)))
	require.Equal(t, uint64(20), weightOf(set, nodeID(2)))
	require.Equal(t, uint64(0), weightOf(set, nodeID(99)))
}

func TestCertificateWeightSumsSigners(t *testing.T) {
	set := newFixedSet(map[byte]uint64{1: 10, 2: 20, 3: 30, 4: 40})
	cert := &Certificate{Signatures: map[ids.NodeID][]byte{
		nodeID(1): {1},
		nodeID(3): {3},
	}}
	require.Equal(t, uint64(40), CertificateWeight(set, cert))
}

// TestNewWeightedEnforcesWeightedQuorum builds a 4-validator set with
// unequal weight (10, 10, 10, 70) and confirms AddCertificate accepts a
// certificate only once the signing weight, not just the signature count,
// reaches 2f+1.
func TestNewWeightedEnforcesWeightedQuorum(t *testing.T) {
	set := newFixedSet(map[byte]uint64{1: 10, 2: 10, 3: 10, 4: 70})
	d := NewWeighted(set, nil)
	// total light 100, f = (100-1)/3 = 33, quorum = 67.
	require.Equal(t, uint64(67), d.Quorum())

	registerVoters(t, d, []byte{1, 2, 3, 4})

	bh := batchHash("weighted-batch")
	d.StoreBatch(bh, []byte("weighted-batch"))
	h := Header{Author: nodeID(1), Round: 0, BatchHash: bh}
	_, err := d.OnHeader(&h)
	require.NoError(t, err)

	// Three low-weight signers (30 total) fall short of quorum 67, even
	// though their signature count would satisfy an unweighted 2f+1=3.
	lowWeightSigs := map[ids.NodeID][]byte{}
	for _, v := range []byte{1, 2, 3} {
		sig, err := SignHeader(validatorKey(t, v), &h)
		require.NoError(t, err)
		lowWeightSigs[nodeID(v)] = sig
	}
	err = d.AddCertificate(&Certificate{Header: h, Signatures: lowWeightSigs})
	require.Error(t, err)

	// Adding the heavy validator's vote (weight 70) clears the weighted
	// quorum.
	heavySig, err := SignHeader(validatorKey(t, 4), &h)
	require.NoError(t, err)
	lowWeightSigs[nodeID(4)] = heavySig
	require.NoError(t, d.AddCertificate(&Certificate{Header: h, Signatures: lowWeightSigs}))
}

// TestAddVoteAccumulatesUntilQuorumThenCertifies exercises the node-facing
// per-vote path: votes trickle in one at a time and only the one that
// completes a quorum returns a certificate.
func TestAddVoteAccumulatesUntilQuorumThenCertifies(t *testing.T) {
	d := New(1, nil) // f=1, quorum=3
	registerVoters(t, d, []byte{1, 2, 3, 4})

	bh := batchHash("voted-batch")
	d.StoreBatch(bh, []byte("voted-batch"))
	h := Header{Author: nodeID(1), Round: 0, BatchHash: bh}
	_, err := d.OnHeader(&h)
	require.NoError(t, err)

	sig1, err := SignHeader(validatorKey(t, 1), &h)
	require.NoError(t, err)
	cert, err := d.AddVote(&h, nodeID(1), sig1)
	require.NoError(t, err)
	require.Nil(t, cert)

	sig2, err := SignHeader(validatorKey(t, 2), &h)
	require.NoError(t, err)
	cert, err = d.AddVote(&h, nodeID(2), sig2)
	require.NoError(t, err)
	require.Nil(t, cert)

	sig3, err := SignHeader(validatorKey(t, 3), &h)
	require.NoError(t, err)
	cert, err = d.AddVote(&h, nodeID(3), sig3)
	require.NoError(t, err)
	require.NotNil(t, cert)
	require.Len(t, cert.Signatures, 3)
	require.NotEmpty(t, cert.Aggregate)

	stored, ok := d.Certificate(cert.ID())
	require.True(t, ok)
	require.Equal(t, cert.Header.Round, stored.Header.Round)
}

func TestAddVoteRejectsUnregisteredVoter(t *testing.T) {
	d := New(1, nil)
	bh := batchHash("unreg-batch")
	d.StoreBatch(bh, []byte("unreg-batch"))
	h := Header{Author: nodeID(1), Round: 0, BatchHash: bh}
	_, err := d.OnHeader(&h)
	require.NoError(t, err)

	sig, err := SignHeader(validatorKey(t, 9), &h)
	require.NoError(t, err)
	_, err = d.AddVote(&h, nodeID(9), sig)
	require.Error(t, err)
}

func TestAddVoteRejectsInvalidSignature(t *testing.T) {
	d := New(1, nil)
	registerVoters(t, d, []byte{1})
	bh := batchHash("bad-sig-batch")
	d.StoreBatch(bh, []byte("bad-sig-batch"))
	h := Header{Author: nodeID(1), Round: 0, BatchHash: bh}
	_, err := d.OnHeader(&h)
	require.NoError(t, err)

	// Signed by a different key than the one registered for voter 1.
	wrongSig, err := SignHeader(validatorKey(t, 2), &h)
	require.NoError(t, err)
	_, err = d.AddVote(&h, nodeID(1), wrongSig)
	require.Error(t, err)
}
