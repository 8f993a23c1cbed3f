// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package chain

import (
	"math/big"
	"time"
)

// EpochBlocks is the default difficulty-adjustment period (spec §4.5
// "Difficulty adjustment", "default 40 blocks").
const EpochBlocks = 40

// maxHash is the largest possible 256-bit header hash value, used to
// convert a difficulty target into a comparable "weight" (lower target =
// harder = heavier).
var maxHash = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// BlockWeight returns the proof-of-work weight a block with the given
// target contributes to cumulative difficulty (spec §3 "cumulative
// difficulty = sum of per-block difficulties from genesis").
func BlockWeight(target *big.Int) *big.Int {
	if target == nil || target.Sign() <= 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(maxHash, target)
}

// AdjustTarget computes the next epoch's difficulty target from the
// elapsed wall-clock time of the just-completed epoch (spec §4.5
// "Difficulty adjustment"): new = old * actual/expected, clamped to
// [old/4, old*4] to resist oscillation.
func AdjustTarget(oldTarget *big.Int, actualElapsed, expectedElapsed time.Duration) *big.Int {
	if expectedElapsed <= 0 {
		return new(big.Int).Set(oldTarget)
	}
	next := new(big.Int).Mul(oldTarget, big.NewInt(int64(actualElapsed)))
	next.Div(next, big.NewInt(int64(expectedElapsed)))

	lower := new(big.Int).Div(oldTarget, big.NewInt(4))
	upper := new(big.Int).Mul(oldTarget, big.NewInt(4))
	if next.Cmp(lower) < 0 {
		return lower
	}
	if next.Cmp(upper) > 0 {
		return upper
	}
	return next
}
