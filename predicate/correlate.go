// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"fmt"

	"github.com/modalitylabs/modality/model"
)

// Correlation is one relation the correlator found between two predicates
// over the same symbolic path (spec §4.3 "Predicate correlation").
type Correlation struct {
	Relation     string // "compatible-implication" | "equivalence" | "constraining-conjunction" | "direct-contradiction"
	Formula      string // rendered formula over the symbolic $path, e.g. "A -> B"
	Satisfiable  bool
}

// Correlate compares two predicates that reference the same path and
// reports the relation between them, used by the model checker at RULE
// admission time to cheaply detect contradictions (spec §4.4 "Admission").
//
// Only comparison-family predicates on numeric/text ranges are correlated;
// anything else returns a satisfiable "compatible-implication" result,
// which is conservative (it never blocks a RULE commit it cannot analyze —
// the full modal-mu model check in mucheck is still the authority).
func Correlate(a, b model.Predicate) Correlation {
	ra, oka := numericRange(a)
	rb, okb := numericRange(b)
	if oka && okb && ra.path == rb.path {
		return correlateRanges(a.Name, b.Name, ra, rb)
	}
	return Correlation{
		Relation:    "compatible-implication",
		Formula:     fmt.Sprintf("%s -> %s", label(a), label(b)),
		Satisfiable: true,
	}
}

func label(p model.Predicate) string {
	sign := "+"
	if !p.Positive {
		sign = "-"
	}
	return sign + p.Name
}

type numRange struct {
	path     string
	lowOpen  bool
	low      float64
	hasLow   bool
	highOpen bool
	high     float64
	hasHigh  bool
}

// numericRange extracts the bound a text_length_*/num_* guard places on its
// path (one-sided, or both sides for the _eq forms),
// for the purpose of detecting direct contradictions like
// text_length_lt(/d/msg.text, 10) vs text_length_gt(/d/msg.text, 20)
// (spec §8 scenario E3).
func numericRange(p model.Predicate) (numRange, bool) {
	if len(p.Args) != 2 || p.Args[0].Kind == model.ArgLiteral {
		return numRange{}, false
	}
	n, isNum := model.LiteralFloat(p.Args[1])
	if !isNum {
		return numRange{}, false
	}
	r := numRange{path: p.Args[0].Path}
	switch p.Name {
	case "text_length_lt", "num_lt":
		r.hasHigh, r.high, r.highOpen = true, n, true
	case "text_length_gt", "num_gt":
		r.hasLow, r.low, r.lowOpen = true, n, true
	case "num_lte":
		r.hasHigh, r.high = true, n
	case "num_gte":
		r.hasLow, r.low = true, n
	case "text_length_eq", "num_eq":
		r.hasLow, r.low = true, n
		r.hasHigh, r.high = true, n
	default:
		return numRange{}, false
	}
	return r, true
}

func correlateRanges(nameA, nameB string, a, b numRange) Correlation {
	// Direct contradiction: a's upper bound is <= b's lower bound (or vice
	// versa), i.e. the two ranges cannot overlap.
	contradicts := false
	if a.hasHigh && b.hasLow {
		if a.high < b.low || (a.high == b.low && (a.highOpen || b.lowOpen)) {
			contradicts = true
		}
	}
	if b.hasHigh && a.hasLow {
		if b.high < a.low || (b.high == a.low && (b.highOpen || a.lowOpen)) {
			contradicts = true
		}
	}
	fa := "A"
	fb := "B"
	if contradicts {
		return Correlation{
			Relation:    "direct-contradiction",
			Formula:     fmt.Sprintf("!(%s & %s)", fa, fb),
			Satisfiable: false,
		}
	}
	if a == b {
		return Correlation{Relation: "equivalence", Formula: fmt.Sprintf("%s <-> %s", fa, fb), Satisfiable: true}
	}
	return Correlation{
		Relation:    "constraining-conjunction",
		Formula:     fmt.Sprintf("%s & %s -> C", fa, fb),
		Satisfiable: true,
	}
}
