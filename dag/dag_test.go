// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"bytes"
	"crypto/sha256"
	"testing"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"
)

func nodeID(b byte) ids.NodeID {
	var n ids.NodeID
	n[0] = b
	return n
}

func batchHash(data string) ids.ID {
	return ids.ID(sha256.Sum256([]byte(data)))
}

// validatorKey deterministically derives a BLS keypair for test voter b, so
// the same voter signs with the same key across every round it certifies.
func validatorKey(t *testing.T, b byte) *bls.SecretKey {
	t.Helper()
	seed := bytes.Repeat([]byte{b}, 32)
	sk, err := bls.SecretKeyFromSeed(seed)
	require.NoError(t, err)
	return sk
}

// registerVoters registers every voter's BLS public key with d, so
// AddCertificate can verify votes cast under certifyRound0/certify.
func registerVoters(t *testing.T, d *DAG, voters []byte) {
	t.Helper()
	for _, v := range voters {
		d.RegisterValidator(nodeID(v), validatorKey(t, v).PublicKey())
	}
}

// certifyRound0 builds and stores a quorum-signed round-0 certificate for
// author, with no parents (round 0 headers reference nothing). voters must
// already be registered on d (see registerVoters).
func certifyRound0(t *testing.T, d *DAG, author byte, batch string, voters []byte) *Certificate {
	t.Helper()
	bh := batchHash(batch)
	d.StoreBatch(bh, []byte(batch))
	h := Header{Author: nodeID(author), Round: 0, BatchHash: bh}
	_, err := d.OnHeader(&h)
	require.NoError(t, err)

	sigs := map[ids.NodeID][]byte{}
	for _, v := range voters {
		sig, err := SignHeader(validatorKey(t, v), &h)
		require.NoError(t, err)
		sigs[nodeID(v)] = sig
	}
	cert := &Certificate{Header: h, Signatures: sigs}
	require.NoError(t, d.AddCertificate(cert))
	return cert
}

func TestDAGRound0CertificationAndQuorum(t *testing.T) {
	d := New(1, nil) // f=1, quorum=3
	require.Equal(t, uint64(3), d.Quorum())
	registerVoters(t, d, []byte{1, 2, 3})

	cert := certifyRound0(t, d, 1, "batch-a", []byte{1, 2, 3})
	got, ok := d.Certificate(cert.ID())
	require.True(t, ok)
	require.Equal(t, uint64(0), got.Header.Round)

	round := d.RoundCertificates(0)
	require.Len(t, round, 1)
	require.Equal(t, cert.ID(), round[nodeID(1)])
}

func TestDAGRejectsUndersizedCertificate(t *testing.T) {
	d := New(1, nil)
	h := Header{Author: nodeID(1), Round: 0, BatchHash: batchHash("x")}
	d.StoreBatch(h.BatchHash, []byte("x"))
	cert := &Certificate{Header: h, Signatures: map[ids.NodeID][]byte{nodeID(2): {2}}}
	err := d.AddCertificate(cert)
	require.Error(t, err)
}

func TestDAGRound1RequiresCertifiedQuorumParents(t *testing.T) {
	d := New(1, nil)
	registerVoters(t, d, []byte{1, 2, 3})
	c1 := certifyRound0(t, d, 1, "a", []byte{1, 2, 3})
	c2 := certifyRound0(t, d, 2, "b", []byte{1, 2, 3})
	c3 := certifyRound0(t, d, 3, "c", []byte{1, 2, 3})

	bh := batchHash("round1-batch")
	d.StoreBatch(bh, []byte("round1-batch"))

	// Too few parents.
	h := &Header{Author: nodeID(1), Round: 1, BatchHash: bh, Parents: []ids.ID{c1.ID()}}
	_, err := d.OnHeader(h)
	require.Error(t, err)

	// Sufficient, valid parents succeed.
	h.Parents = []ids.ID{c1.ID(), c2.ID(), c3.ID()}
	_, err = d.OnHeader(h)
	require.NoError(t, err)
}

func TestDAGRejectsHeaderWithoutLocalBatch(t *testing.T) {
	d := New(1, nil)
	h := &Header{Author: nodeID(1), Round: 0, BatchHash: batchHash("never-stored")}
	_, err := d.OnHeader(h)
	require.Error(t, err)
}

func TestDAGDetectsEquivocation(t *testing.T) {
	d := New(1, nil)
	a := batchHash("a")
	b := batchHash("b")
	d.StoreBatch(a, []byte("a"))
	d.StoreBatch(b, []byte("b"))

	h1 := &Header{Author: nodeID(1), Round: 0, BatchHash: a}
	_, err := d.OnHeader(h1)
	require.NoError(t, err)

	h2 := &Header{Author: nodeID(1), Round: 0, BatchHash: b}
	fault, err := d.OnHeader(h2)
	require.Error(t, err)
	require.NotNil(t, fault)
	require.Equal(t, nodeID(1), fault.Author)
	require.Equal(t, uint64(0), fault.Round)

	require.Len(t, d.Faults(), 1)
}

func TestDAGCanAdvanceRoundOnQuorumFromOthers(t *testing.T) {
	d := New(1, nil)
	self := nodeID(9)
	require.False(t, d.CanAdvanceRound(0, self))

	registerVoters(t, d, []byte{1, 2, 3})
	certifyRound0(t, d, 1, "a", []byte{1, 2, 3})
	certifyRound0(t, d, 2, "b", []byte{1, 2, 3})
	certifyRound0(t, d, 3, "c", []byte{1, 2, 3})

	require.True(t, d.CanAdvanceRound(0, self))
}
