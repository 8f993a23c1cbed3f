// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package dag implements the Narwhal-style certified DAG (spec §4.6): a
// round-structured header/vote/certificate protocol producing a DAG of
// certificates, generalized from the teacher's tip-tracking block DAG
// (luxfi-consensus dag.DAG) to the certify-then-store shape this spec
// needs.
package dag

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/luxfi/crypto/bls"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/validators"
)

// Header is one validator's proposed round contribution (spec §4.6 "Round
// structure"): a content-addressed batch plus parent references to at
// least 2f+1 certificates from the previous round.
type Header struct {
	Author    ids.NodeID
	Round     uint64
	BatchHash ids.ID
	Parents   []ids.ID // certificate IDs from Round-1
	Signature []byte
}

func (h *Header) bytes() []byte {
	buf := make([]byte, 0, 64+32*len(h.Parents))
	buf = append(buf, h.Author[:]...)
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], h.Round)
	buf = append(buf, tmp[:]...)
	buf = append(buf, h.BatchHash[:]...)
	for _, p := range h.Parents {
		buf = append(buf, p[:]...)
	}
	return buf
}

// Hash returns the header's content-hash identity.
func (h *Header) Hash() ids.ID { return ids.ID(sha256.Sum256(h.bytes())) }

// Vote is one validator's attestation that a header is well-formed (spec
// §4.6 "Certification").
type Vote struct {
	Voter     ids.NodeID
	Header    ids.ID
	Signature []byte
}

// Certificate is a header plus a quorum of votes (spec §3 "Certificate").
type Certificate struct {
	Header     Header
	Signatures map[ids.NodeID][]byte // voter -> signature, quorum of >= 2f+1
	Aggregate  []byte                // combined signature over Signatures, for compact transport
}

// ID returns the certificate's identity, which is its header's hash (a
// certified header is uniquely identified by what it certifies).
func (c *Certificate) ID() ids.ID { return c.Header.Hash() }

// DAG stores certified headers and tracks round tips, equivocation
// evidence, and data availability, mirroring the teacher's
// sync.RWMutex-guarded map store (luxfi-consensus dag.DAG) generalized
// from single blocks to (author, round)-addressed certificates.
type DAG struct {
	mu     sync.RWMutex
	logger log.Logger

	f uint64 // tolerated faulty validators; quorum = 2f+1

	certs      map[ids.ID]*Certificate
	byRound    map[uint64]map[ids.NodeID]ids.ID // round -> author -> cert id
	headerSeen map[uint64]map[ids.NodeID]ids.ID // round -> author -> first header hash seen (equivocation detection)
	faults     *FaultLedger
	batchStore map[ids.ID][]byte // content-addressed batch bytes, spec "data availability"

	pubkeys map[ids.NodeID]*bls.PublicKey // registered validator BLS keys, for certificate vote verification
	valSet  validators.Set                // optional weighted validator set; nil means count-based quorum (see NewWeighted)
	votes   map[ids.ID]map[ids.NodeID][]byte // header hash -> voter -> signature, pending quorum
}

// Fault is recorded accountable-fault evidence (spec §4.6 invariant (i),
// §D "Accountable-fault ledger").
type Fault struct {
	Author       ids.NodeID
	Round        uint64
	FirstHeader  ids.ID
	SecondHeader ids.ID
}

// New constructs a DAG tolerating f byzantine validators (quorum 2f+1).
func New(f uint64, logger log.Logger) *DAG {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &DAG{
		f:          f,
		logger:     logger.With("component", "dag"),
		certs:      map[ids.ID]*Certificate{},
		byRound:    map[uint64]map[ids.NodeID]ids.ID{},
		headerSeen: map[uint64]map[ids.NodeID]ids.ID{},
		faults:     newFaultLedger(),
		batchStore: map[ids.ID][]byte{},
		pubkeys:    map[ids.NodeID]*bls.PublicKey{},
		votes:      map[ids.ID]map[ids.NodeID][]byte{},
	}
}

// Quorum returns the certificate/vote threshold 2f+1, in signature-count
// units for an unweighted DAG or in validator-weight units for one
// constructed via NewWeighted.
func (d *DAG) Quorum() uint64 { return 2*d.f + 1 }

// RegisterValidator records a validator's BLS public key so its vote
// signatures can be verified when folded into a certificate (spec §4.6
// "Certification"). A certificate carrying a signature from an
// unregistered voter is rejected outright, since there is no key to
// attest it was cast by that validator at all.
func (d *DAG) RegisterValidator(id ids.NodeID, pk *bls.PublicKey) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pubkeys[id] = pk
}

// StoreBatch records a batch's bytes as locally available, satisfying the
// prerequisite for certifying any header that references its hash (spec
// §4.6 invariant (iii) "data availability").
func (d *DAG) StoreBatch(hash ids.ID, batch []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.batchStore[hash] = batch
}

// hasBatch reports whether a batch hash has been locally delivered.
func (d *DAG) hasBatch(hash ids.ID) bool {
	_, ok := d.batchStore[hash]
	return ok
}

// OnHeader validates an incoming header against certified parents,
// availability, and per-round equivocation, and records it as seen for
// this author/round (spec §4.6 "Certification"). It returns equivocation
// fault evidence if a second, different header from the same author in
// the same round is observed.
func (d *DAG) OnHeader(h *Header) (*Fault, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if h.Round > 0 {
		have := d.byRound[h.Round-1]
		if uint64(len(h.Parents)) < d.Quorum() {
			return nil, fmt.Errorf("header round %d: only %d parents, need %d", h.Round, len(h.Parents), d.Quorum())
		}
		for _, p := range h.Parents {
			if _, ok := d.certs[p]; !ok {
				return nil, fmt.Errorf("header round %d: parent %s not certified locally", h.Round, p.String())
			}
			found := false
			for _, cid := range have {
				if cid == p {
					found = true
					break
				}
			}
			if !found {
				return nil, fmt.Errorf("header round %d: parent %s is not from round %d", h.Round, p.String(), h.Round-1)
			}
		}
	}
	if !d.hasBatch(h.BatchHash) {
		return nil, fmt.Errorf("header round %d: batch %s not locally available", h.Round, h.BatchHash.String())
	}

	seenInRound, ok := d.headerSeen[h.Round]
	if !ok {
		seenInRound = map[ids.NodeID]ids.ID{}
		d.headerSeen[h.Round] = seenInRound
	}
	hash := h.Hash()
	if prior, ok := seenInRound[h.Author]; ok && prior != hash {
		fault := &Fault{Author: h.Author, Round: h.Round, FirstHeader: prior, SecondHeader: hash}
		d.faults.record(*fault)
		d.logger.Warn("equivocation detected", "author", h.Author.String(), "round", h.Round)
		return fault, fmt.Errorf("equivocation: author %s already produced a header in round %d", h.Author.String(), h.Round)
	}
	seenInRound[h.Author] = hash
	return nil, nil
}

// AddCertificate verifies every vote's BLS signature against its author's
// registered public key and, once a quorum of genuinely valid signatures
// is confirmed, stores the certificate (spec §3 "Certificate ... quorum of
// >= 2f+1 validator signatures over the header"; spec §4.6 "Certification:
// once the author collects 2f+1 matching votes, the votes + header form a
// certificate"). A signature from an unregistered or impersonated voter,
// or one that does not verify against the header it claims to attest,
// voids the whole certificate rather than silently shrinking the count.
func (d *DAG) AddCertificate(cert *Certificate) error {
	// For a weighted DAG Quorum is in weight units, checked below.
	if d.valSet == nil && uint64(len(cert.Signatures)) < d.Quorum() {
		return fmt.Errorf("certificate for round %d: only %d signatures, need %d", cert.Header.Round, len(cert.Signatures), d.Quorum())
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	for voter, sig := range cert.Signatures {
		pk, ok := d.pubkeys[voter]
		if !ok {
			return fmt.Errorf("certificate for round %d: voter %s has no registered validator key", cert.Header.Round, voter.String())
		}
		if !VerifyVote(pk, &cert.Header, sig) {
			return fmt.Errorf("certificate for round %d: invalid signature from voter %s", cert.Header.Round, voter.String())
		}
	}
	if d.valSet != nil {
		if CertificateWeight(d.valSet, cert) < d.Quorum() {
			return fmt.Errorf("certificate for round %d: signing weight below quorum %d", cert.Header.Round, d.Quorum())
		}
	}

	id := cert.ID()
	d.certs[id] = cert
	byAuthor, ok := d.byRound[cert.Header.Round]
	if !ok {
		byAuthor = map[ids.NodeID]ids.ID{}
		d.byRound[cert.Header.Round] = byAuthor
	}
	byAuthor[cert.Header.Author] = id
	return nil
}

// AddVote folds one validator's vote into the DAG's pending tally for a
// header (spec §4.6 "Certification": votes accumulate until quorum forms
// a certificate), the node-side counterpart to AddCertificate for peers
// that gossip individual votes rather than already-assembled
// certificates. It rejects a vote from an unregistered voter or one whose
// signature does not verify, and once a quorum of valid votes has
// accumulated it aggregates them into a certificate via AggregateVotes and
// stores it through AddCertificate, returning the resulting certificate.
func (d *DAG) AddVote(h *Header, voter ids.NodeID, sig []byte) (*Certificate, error) {
	hash := h.Hash()

	d.mu.Lock()
	pk, ok := d.pubkeys[voter]
	if !ok {
		d.mu.Unlock()
		return nil, fmt.Errorf("vote for header %s: voter %s has no registered validator key", hash.String(), voter.String())
	}
	if !VerifyVote(pk, h, sig) {
		d.mu.Unlock()
		return nil, fmt.Errorf("vote for header %s: invalid signature from voter %s", hash.String(), voter.String())
	}
	tally, ok := d.votes[hash]
	if !ok {
		tally = map[ids.NodeID][]byte{}
		d.votes[hash] = tally
	}
	tally[voter] = sig

	have := uint64(len(tally))
	if d.valSet != nil {
		have = 0
		for v := range tally {
			have += weightOf(d.valSet, v)
		}
	}
	ready := have >= d.Quorum()
	var sigs map[ids.NodeID][]byte
	if ready {
		sigs = make(map[ids.NodeID][]byte, len(tally))
		for v, s := range tally {
			sigs[v] = s
		}
		delete(d.votes, hash)
	}
	d.mu.Unlock()

	if !ready {
		return nil, nil
	}

	raw := make([][]byte, 0, len(sigs))
	for _, s := range sigs {
		raw = append(raw, s)
	}
	agg, err := AggregateVotes(raw)
	if err != nil {
		return nil, fmt.Errorf("vote for header %s: %w", hash.String(), err)
	}

	cert := &Certificate{Header: *h, Signatures: sigs, Aggregate: agg}
	if err := d.AddCertificate(cert); err != nil {
		return nil, err
	}
	return cert, nil
}

// Certificate returns a stored certificate by id.
func (d *DAG) Certificate(id ids.ID) (*Certificate, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.certs[id]
	return c, ok
}

// RoundCertificates returns every certified (author -> certificate id) pair
// for a round.
func (d *DAG) RoundCertificates(round uint64) map[ids.NodeID]ids.ID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[ids.NodeID]ids.ID, len(d.byRound[round]))
	for a, c := range d.byRound[round] {
		out[a] = c
	}
	return out
}

// Faults returns all accountable-fault evidence recorded so far.
func (d *DAG) Faults() []Fault {
	return d.faults.All()
}

// FaultLedger exposes the accountable-fault ledger directly, so a
// committer's reputation function can consult per-author fault counts
// without replaying history itself.
func (d *DAG) FaultLedger() *FaultLedger {
	return d.faults
}

// CanAdvanceRound reports whether the local validator has collected 2f+1
// round-`r` certificates from other authors, letting it advance its own
// round even if some parent it wanted is missing (spec §4.6 "Failure
// semantics").
func (d *DAG) CanAdvanceRound(round uint64, self ids.NodeID) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	count := uint64(0)
	for author := range d.byRound[round] {
		if author != self {
			count++
		}
	}
	return count >= d.Quorum()
}
