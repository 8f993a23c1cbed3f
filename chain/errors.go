// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import "fmt"

// ConsensusError is the flat tagged-variant error family for block
// acceptance decisions in the mining chain (spec §7, §4.5).
type ConsensusError struct {
	Kind   string // "checkpoint-violation" | "invalid-proof-of-work" | "replay-rejected"
	Reason string
}

func (e *ConsensusError) Error() string {
	return fmt.Sprintf("consensus-error{%s}: %s", e.Kind, e.Reason)
}
