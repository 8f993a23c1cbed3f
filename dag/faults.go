// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"sync"

	"github.com/luxfi/ids"
)

// FaultLedger is the accountable-fault ledger (spec §4.6, §7): equivocation
// evidence is retained permanently per validator rather than discarded
// once detected, so the committer's leader-reputation function (spec
// §4.7) can permanently deprioritize repeat offenders instead of only
// reacting to the most recent round.
type FaultLedger struct {
	mu     sync.RWMutex
	byNode map[ids.NodeID][]Fault
	all    []Fault
}

func newFaultLedger() *FaultLedger {
	return &FaultLedger{byNode: map[ids.NodeID][]Fault{}}
}

func (l *FaultLedger) record(f Fault) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.byNode[f.Author] = append(l.byNode[f.Author], f)
	l.all = append(l.all, f)
}

// ForAuthor returns every recorded fault attributed to author, oldest
// first.
func (l *FaultLedger) ForAuthor(author ids.NodeID) []Fault {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Fault, len(l.byNode[author]))
	copy(out, l.byNode[author])
	return out
}

// CountForAuthor is a convenience for reputation functions that only need
// the tally, not the evidence.
func (l *FaultLedger) CountForAuthor(author ids.NodeID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.byNode[author])
}

// All returns every recorded fault across all authors, oldest first.
func (l *FaultLedger) All() []Fault {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Fault, len(l.all))
	copy(out, l.all)
	return out
}
