// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package committer implements the Shoal-style pipelined committer (spec
// §4.7): deterministic anchor selection over a certified DAG, the f+1
// commit rule, and deterministic-order output via reverse-topological
// depth-first traversal.
package committer

import (
	"bytes"
	"sort"
	"sync"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/modalitylabs/modality/dag"
)

// ReputationWindow is the number of trailing rounds a leader-reputation
// score decays over (spec §4.7 "decaying score over the last K rounds").
const ReputationWindow = 50

// reputation tracks a per-author decaying score: on-time certificates add,
// equivocations/missed rounds subtract.
type reputation struct {
	history map[ids.NodeID][]int8 // ring of +1/-1/0 entries, most recent last
}

func newReputation() *reputation {
	return &reputation{history: map[ids.NodeID][]int8{}}
}

func (r *reputation) record(author ids.NodeID, delta int8) {
	h := append(r.history[author], delta)
	if len(h) > ReputationWindow {
		h = h[len(h)-ReputationWindow:]
	}
	r.history[author] = h
}

func (r *reputation) score(author ids.NodeID) int {
	total := 0
	for _, d := range r.history[author] {
		total += int(d)
	}
	return total
}

// Committer consumes a dag.DAG's round-by-round certificates and produces a
// deterministic total order (spec §4.7 "Output").
type Committer struct {
	mu     sync.Mutex
	logger log.Logger
	d      *dag.DAG
	rep    *reputation

	committed    map[ids.ID]bool
	lastAnchors  map[uint64]ids.ID // round -> chosen anchor cert id, once known
	committedSeq []ids.ID          // deterministic output order so far
}

// New constructs a Committer reading certificates from d.
func New(d *dag.DAG, logger log.Logger) *Committer {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Committer{
		logger:      logger.With("component", "committer"),
		d:           d,
		rep:         newReputation(),
		committed:   map[ids.ID]bool{},
		lastAnchors: map[uint64]ids.ID{},
	}
}

// RecordOnTime credits an author for an on-time certificate in round.
func (c *Committer) RecordOnTime(author ids.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rep.record(author, 1)
}

// RecordFault debits an author for an observed equivocation or missed round.
func (c *Committer) RecordFault(author ids.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rep.record(author, -1)
}

// SyncFaults folds every equivocation recorded in the DAG's accountable-
// fault ledger into the reputation function, so an author isolated by a
// past equivocation stays deprioritized across anchor selections even if
// RecordFault was never called directly (spec §4.6 "isolates the offender
// from future leader selection").
func (c *Committer) SyncFaults() {
	c.mu.Lock()
	defer c.mu.Unlock()
	ledger := c.d.FaultLedger()
	authors := map[ids.NodeID]bool{}
	for _, f := range ledger.All() {
		authors[f.Author] = true
	}
	for author := range authors {
		want := ledger.CountForAuthor(author)
		have := 0
		for _, d := range c.rep.history[author] {
			if d < 0 {
				have++
			}
		}
		for ; have < want; have++ {
			c.rep.record(author, -1)
		}
	}
}

// ReputationSnapshot returns a copy of every author's trailing reputation
// history, for persistence (spec §6 "reputations" table).
func (c *Committer) ReputationSnapshot() map[ids.NodeID][]int8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ids.NodeID][]int8, len(c.rep.history))
	for author, h := range c.rep.history {
		out[author] = append([]int8(nil), h...)
	}
	return out
}

// RestoreReputations replaces the reputation function's history from a
// persisted snapshot (spec §6 "boot" / node restart).
func (c *Committer) RestoreReputations(snapshot map[ids.NodeID][]int8) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rep.history = make(map[ids.NodeID][]int8, len(snapshot))
	for author, h := range snapshot {
		c.rep.history[author] = append([]int8(nil), h...)
	}
}

// SelectAnchor deterministically designates round r's anchor author (spec
// §4.7 "Anchor selection"): the certified author in that round with the
// highest reputation score, ties broken by lexicographically lesser
// NodeID.
func (c *Committer) SelectAnchor(round uint64) (ids.ID, ids.NodeID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectAnchorLocked(round)
}

func (c *Committer) selectAnchorLocked(round uint64) (ids.ID, ids.NodeID, bool) {
	if cached, ok := c.lastAnchors[round]; ok {
		certs := c.d.RoundCertificates(round)
		for author, cid := range certs {
			if cid == cached {
				return cid, author, true
			}
		}
	}
	certs := c.d.RoundCertificates(round)
	if len(certs) == 0 {
		return ids.ID{}, ids.NodeID{}, false
	}
	authors := make([]ids.NodeID, 0, len(certs))
	for a := range certs {
		authors = append(authors, a)
	}
	sort.Slice(authors, func(i, j int) bool {
		return bytes.Compare(authors[i][:], authors[j][:]) < 0
	})

	best := authors[0]
	bestScore := c.rep.score(best)
	for _, a := range authors[1:] {
		if s := c.rep.score(a); s > bestScore {
			best, bestScore = a, s
		}
	}
	cid := certs[best]
	c.lastAnchors[round] = cid
	return cid, best, true
}

// TryCommit checks the commit rule for round r's anchor (spec §4.7 "Commit
// rule": committed once, in round r+1, at least f+1 certificates
// reference it as an ancestor) and, if it fires, returns the deterministic
// total order of every not-yet-committed certificate walked back from the
// anchor.
func (c *Committer) TryCommit(round uint64, f uint64) ([]ids.ID, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	anchorID, _, ok := c.selectAnchorLocked(round)
	if !ok || c.committed[anchorID] {
		return nil, false
	}

	refs := uint64(0)
	for _, nextID := range c.d.RoundCertificates(round + 1) {
		if c.references(nextID, anchorID) {
			refs++
		}
	}
	if refs < f+1 {
		return nil, false
	}

	order := c.walkLocked(anchorID)
	c.logger.Info("anchor committed", "round", round, "anchor", anchorID.String(), "emitted", len(order))
	return order, true
}

// references reports whether cert (transitively, via parent edges) reaches
// ancestor.
func (c *Committer) references(certID, ancestor ids.ID) bool {
	seen := map[ids.ID]bool{}
	var dfs func(id ids.ID) bool
	dfs = func(id ids.ID) bool {
		if id == ancestor {
			return true
		}
		if seen[id] {
			return false
		}
		seen[id] = true
		cert, ok := c.d.Certificate(id)
		if !ok {
			return false
		}
		for _, p := range cert.Header.Parents {
			if dfs(p) {
				return true
			}
		}
		return false
	}
	return dfs(certID)
}

// walkLocked performs the deterministic reverse-topological depth-first
// traversal from anchor (spec §4.7 "Commit rule": "children before parents
// in reverse-topological order; ties broken by (round desc, author asc)"),
// emitting every not-yet-committed certificate and marking it committed.
func (c *Committer) walkLocked(anchor ids.ID) []ids.ID {
	var order []ids.ID
	visited := map[ids.ID]bool{}

	var visit func(id ids.ID)
	visit = func(id ids.ID) {
		if visited[id] || c.committed[id] {
			return
		}
		visited[id] = true
		cert, ok := c.d.Certificate(id)
		if !ok {
			return
		}
		order = append(order, id)
		c.committed[id] = true

		parents := append([]ids.ID(nil), cert.Header.Parents...)
		sort.Slice(parents, func(i, j int) bool {
			pi, pj := parentSortKey(c.d, parents[i]), parentSortKey(c.d, parents[j])
			if pi.round != pj.round {
				return pi.round > pj.round // round desc
			}
			return bytes.Compare(pi.author[:], pj.author[:]) < 0 // author asc
		})
		for _, p := range parents {
			visit(p)
		}
	}
	visit(anchor)
	return order
}

type sortKey struct {
	round  uint64
	author ids.NodeID
}

func parentSortKey(d *dag.DAG, id ids.ID) sortKey {
	cert, ok := d.Certificate(id)
	if !ok {
		return sortKey{}
	}
	return sortKey{round: cert.Header.Round, author: cert.Header.Author}
}
