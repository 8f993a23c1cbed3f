// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package predicate implements deterministic evaluation of SignedPredicates
// against a proposed commit, the current state map, and an optional
// wall-clock source, including the metered WASM sandbox for user-defined
// predicates (spec §4.3).
package predicate

import (
	"fmt"
	"time"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
)

// Clock supplies "current time" to time predicates. When nil, the evaluator
// falls back to the commit's DeliveredAt timestamp (deterministic replay,
// spec §4.3 "if W is null").
type Clock interface {
	Now() time.Time
}

// Failure describes why a predicate evaluation returned false, with enough
// detail to populate contract.ValidationError.Attempts.
type Failure struct {
	Predicate string
	Arg       string
	Reason    string
}

func (f *Failure) Error() string {
	if f == nil {
		return ""
	}
	return fmt.Sprintf("%s(%s): %s", f.Predicate, f.Arg, f.Reason)
}

func fail(name, arg, reason string) (bool, *Failure) {
	return false, &Failure{Predicate: name, Arg: arg, Reason: reason}
}

func ok() (bool, *Failure) { return true, nil }

// Evaluate decides whether guard holds for commit c against state s, using
// clock for time predicates (nil falls back to c.DeliveredAt). Evaluate
// applies guard's sign itself: a negative guard holds exactly when the
// unsigned predicate body (evaluateUnsigned) does not.
func Evaluate(guard model.Predicate, c *contract.Commit, s contract.State, clk Clock) (bool, *Failure) {
	res, failure := evaluateUnsigned(guard, c, s, clk)
	if !guard.Positive {
		if failure == nil {
			return !res, nil
		}
		// A negative guard "must not hold" is satisfied precisely when the
		// underlying predicate failed.
		return true, nil
	}
	return res, failure
}

// ResolveArg resolves a literal, path, or template-path argument against s.
// Template substitutions ("{/sub/path}") that don't resolve cause the
// predicate to fail with MissingPath (spec §4.3 "Argument resolution").
func ResolveArg(a model.Arg, s contract.State) (contract.Value, string, error) {
	switch a.Kind {
	case model.ArgLiteral:
		return contract.Value{Suffix: contract.SuffixText, Text: a.Literal}, a.Literal, nil
	case model.ArgPath:
		v, ok := s[a.Path]
		if !ok {
			return contract.Value{}, a.Path, fmt.Errorf("MissingPath: %s", a.Path)
		}
		return v, a.Path, nil
	case model.ArgTemplatePath:
		resolved, err := substituteTemplate(a.Path, s)
		if err != nil {
			return contract.Value{}, a.Path, err
		}
		v, ok := s[resolved]
		if !ok {
			return contract.Value{}, resolved, fmt.Errorf("MissingPath: %s", resolved)
		}
		return v, resolved, nil
	default:
		return contract.Value{}, "", fmt.Errorf("unknown argument kind")
	}
}
