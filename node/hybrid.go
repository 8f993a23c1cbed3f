// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"sync"

	"github.com/luxfi/log"
)

// Mode is the node's current ordering-layer mode.
type Mode int

const (
	// ModeMining orders commits via the proof-of-work chain (spec §4.5).
	ModeMining Mode = iota
	// ModeBFT orders commits via the certified DAG + committer (spec
	// §4.6-4.7).
	ModeBFT
)

func (m Mode) String() string {
	if m == ModeBFT {
		return "bft"
	}
	return "mining"
}

// DefaultHandoffRounds is the number of consecutive round windows the
// validator count must clear (or fall below) 2f+1 before the coordinator
// flips mode, giving hysteresis against flapping (SPEC_FULL §D.1).
const DefaultHandoffRounds = 3

// Coordinator implements the mining-to-BFT hand-off rule (SPEC_FULL §D.1):
// once at least 2f+1 distinct validators have produced a certificate in
// the current DAG round window for HandoffRounds consecutive rounds, mode
// flips from Mining to BFT; it flips back only after the same number of
// consecutive rounds below threshold, so a single flaky round doesn't
// toggle it.
type Coordinator struct {
	mu            sync.Mutex
	logger        log.Logger
	handoffRounds int
	quorum        uint64

	mode          Mode
	aboveStreak   int
	belowStreak   int
}

// NewCoordinator constructs a Coordinator starting in ModeMining.
func NewCoordinator(quorum uint64, handoffRounds int, logger log.Logger) *Coordinator {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if handoffRounds <= 0 {
		handoffRounds = DefaultHandoffRounds
	}
	return &Coordinator{
		logger:        logger.With("component", "node.hybrid"),
		handoffRounds: handoffRounds,
		quorum:        quorum,
		mode:          ModeMining,
	}
}

// Mode returns the coordinator's current mode.
func (c *Coordinator) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// ObserveRound reports the number of distinct validators that produced a
// certificate in the just-completed round, advancing the hand-off state
// machine.
func (c *Coordinator) ObserveRound(distinctValidators uint64) Mode {
	c.mu.Lock()
	defer c.mu.Unlock()

	if distinctValidators >= c.quorum {
		c.aboveStreak++
		c.belowStreak = 0
	} else {
		c.belowStreak++
		c.aboveStreak = 0
	}

	switch c.mode {
	case ModeMining:
		if c.aboveStreak >= c.handoffRounds {
			c.mode = ModeBFT
			c.logger.Info("hand-off to BFT ordering", "distinct_validators", distinctValidators)
		}
	case ModeBFT:
		if c.belowStreak >= c.handoffRounds {
			c.mode = ModeMining
			c.logger.Info("hand-off back to mining ordering", "distinct_validators", distinctValidators)
		}
	}
	return c.mode
}
