// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import "fmt"

// ValidationError is the flat tagged-variant error family for commit
// acceptance decisions (spec §7 "ValidationError").
type ValidationError struct {
	Kind      string // "no-transition" | "predicate-failed" | "rule-witness-missing" | "rule-unsatisfiable" | "model-violates-rule"
	Predicate string
	Arg       string
	Reason    string
	Rule      string
	// Attempts records, for a rejected commit, every transition the engine
	// tried and the per-predicate failure detail (spec §4.1 "Acceptance").
	Attempts []AttemptResult
}

// AttemptResult is one transition the replay engine tried and rejected.
type AttemptResult struct {
	Action    string
	From, To  string
	Predicate string
	Reason    string
}

func (e *ValidationError) Error() string {
	switch e.Kind {
	case "predicate-failed":
		return fmt.Sprintf("predicate-failed{%s,%s}: %s", e.Predicate, e.Arg, e.Reason)
	case "rule-unsatisfiable":
		return fmt.Sprintf("rule-unsatisfiable: %s", e.Reason)
	case "model-violates-rule":
		return fmt.Sprintf("model-violates-rule{%s}: %s", e.Rule, e.Reason)
	case "rule-witness-missing":
		return "rule-witness-missing: RULE commit must bundle a witness model"
	case "no-transition":
		return fmt.Sprintf("no-transition: no matching transition accepted the commit (%d attempts)", len(e.Attempts))
	default:
		return fmt.Sprintf("validation-error{%s}: %s", e.Kind, e.Reason)
	}
}

func (e *ValidationError) Kind_() string { return e.Kind }

// SignatureError reports a missing, invalid, or unknown-key signature
// (spec §7 "SignatureError").
type SignatureError struct {
	Kind      string // "missing" | "invalid" | "unknown-key"
	PublicKey string
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature-error{%s}: %s", e.Kind, e.PublicKey)
}

// StorageError reports a persistence-layer failure (spec §7 "StorageError").
type StorageError struct {
	Kind string // "io" | "corruption" | "missing-parent" | "snapshot-mismatch"
	Err  error
}

func (e *StorageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("storage-error{%s}: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("storage-error{%s}", e.Kind)
}

func (e *StorageError) Unwrap() error { return e.Err }
