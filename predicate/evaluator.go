// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"fmt"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
)

// evaluateUnsigned dispatches to the built-in predicate implementation (or
// the metered WASM sandbox for a "wasm" predicate name) named by guard.
func evaluateUnsigned(guard model.Predicate, c *contract.Commit, s contract.State, clk Clock) (bool, *Failure) {
	switch guard.Name {
	// Signature family
	case "signed_by":
		return evalSignedBy(guard, c, s)
	case "any_signed":
		return evalAnySigned(guard, c, s)
	case "all_signed":
		return evalAllSigned(guard, c, s)
	case "threshold":
		return evalThreshold(guard, c, s)

	// Modification family
	case "modifies":
		return evalModifies(guard, c)
	case "adds_rule":
		return evalAddsRule(guard, c)

	// Comparison family
	case "text_equals", "text_contains", "text_starts_with", "text_ends_with",
		"text_length_eq", "text_length_gt", "text_length_lt",
		"text_is_empty", "text_not_empty",
		"bool_is_true", "bool_is_false", "bool_equals",
		"num_eq", "num_gt", "num_lt", "num_gte", "num_lte", "num_between",
		"num_positive", "num_negative", "num_zero":
		return evalComparison(guard, s)

	// Time family
	case "before", "after", "timestamp_within", "timestamp_near":
		return evalTime(guard, c, s, clk)

	// Hash family
	case "sha256_matches", "hash_equals", "commitment_verify":
		return evalHash(guard, s)

	case "wasm":
		return evalWasm(guard, c, s)

	default:
		return fail(guard.Name, "", fmt.Sprintf("unknown predicate %q", guard.Name))
	}
}
