// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package mucheck implements the modal-mu-calculus fixed-point model
// checker that gates MODEL and RULE commits (spec §4.4 "Admission"): a
// rule is only admitted once it holds on the witness model bundled with its
// RULE commit, and it is re-checked against every later MODEL commit.
//
// The checker works over the finite Kripke structure induced by a Model's
// states and transitions. Least and greatest fixed points are computed by
// Kleene iteration over the finite lattice of state subsets, which always
// converges in at most |States|+1 rounds.
package mucheck

import (
	"github.com/modalitylabs/modality/model"
	"github.com/modalitylabs/modality/predicate"
)

// stateSet is a set of model state names, used as the carrier of the
// fixed-point lattice (2^States, ⊆).
type stateSet map[string]bool

func (s stateSet) clone() stateSet {
	out := make(stateSet, len(s))
	for k := range s {
		out[k] = true
	}
	return out
}

func equalSets(a, b stateSet) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func allStates(m *model.Model) stateSet {
	out := make(stateSet, len(m.States))
	for _, s := range m.States {
		out[s] = true
	}
	return out
}

// env binds free fixed-point variables to their current approximation
// during Kleene iteration; nested mu/nu binders shadow outer ones of the
// same name, matching the formula grammar's lexical scoping.
type env map[string]stateSet

func (e env) with(name string, set stateSet) env {
	out := make(env, len(e)+1)
	for k, v := range e {
		out[k] = v
	}
	out[name] = set
	return out
}

// guardsCompatible reports whether two guard lists could both gate a real
// transition out of the same state, using the predicate correlator to rule
// out direct numeric/text-range contradictions (spec §4.3 "Predicate
// correlation"). Anything the correlator cannot analyze is assumed
// compatible, consistent with Correlate's conservative default.
func guardsCompatible(a, b []model.Predicate) bool {
	for _, pa := range a {
		for _, pb := range b {
			if pa.Name == "" || pb.Name == "" {
				continue
			}
			if c := predicate.Correlate(pa, pb); !c.Satisfiable {
				return false
			}
		}
	}
	return true
}

// successorsVia returns the target states reachable from q by a transition
// whose own guard list is compatible with filter. An empty filter matches
// every transition out of q (used by bare <> / []).
func successorsVia(m *model.Model, q string, filter []model.Predicate) []string {
	var out []string
	for _, t := range m.TransitionsFrom(q) {
		if guardsCompatible(t.Guards, filter) {
			out = append(out, t.To)
		}
	}
	return out
}

// propHolds implements the atomic-proposition semantics this checker
// assigns to ExprProp{p}: p holds at q iff some transition leaving q is
// gated by a guard of the same name and sign as p. This treats Props as
// "this predicate is live (enabled) here" rather than as a separate
// state-labeling function, which the model/rule grammar has no syntax for.
func propHolds(m *model.Model, q string, p model.Predicate) bool {
	for _, t := range m.TransitionsFrom(q) {
		for _, g := range t.Guards {
			if g.Name == p.Name && g.Positive == p.Positive {
				return true
			}
		}
	}
	return false
}

// Sat returns the set of states of m at which expr holds, under the given
// variable environment (empty at top level).
func Sat(m *model.Model, expr model.FormulaExpr, e env) stateSet {
	switch x := expr.(type) {
	case model.ExprTrue:
		return allStates(m)
	case model.ExprFalse:
		return stateSet{}
	case model.ExprProp:
		out := stateSet{}
		for _, q := range m.States {
			if propHolds(m, q, x.Predicate) {
				out[q] = true
			}
		}
		return out
	case model.ExprNot:
		inner := Sat(m, x.Expr, e)
		out := stateSet{}
		for _, q := range m.States {
			if !inner[q] {
				out[q] = true
			}
		}
		return out
	case model.ExprAnd:
		l, r := Sat(m, x.Left, e), Sat(m, x.Right, e)
		out := stateSet{}
		for q := range l {
			if r[q] {
				out[q] = true
			}
		}
		return out
	case model.ExprOr:
		l, r := Sat(m, x.Left, e), Sat(m, x.Right, e)
		out := l.clone()
		for q := range r {
			out[q] = true
		}
		return out
	case model.ExprImplies:
		l, r := Sat(m, x.Left, e), Sat(m, x.Right, e)
		out := stateSet{}
		for _, q := range m.States {
			if !l[q] || r[q] {
				out[q] = true
			}
		}
		return out
	case model.ExprDiamond:
		inner := Sat(m, x.Expr, e)
		out := stateSet{}
		for _, q := range m.States {
			for _, succ := range successorsVia(m, q, x.Guards) {
				if inner[succ] {
					out[q] = true
					break
				}
			}
		}
		return out
	case model.ExprBox:
		inner := Sat(m, x.Expr, e)
		out := stateSet{}
		for _, q := range m.States {
			holds := true
			for _, succ := range successorsVia(m, q, x.Guards) {
				if !inner[succ] {
					holds = false
					break
				}
			}
			out[q] = holds
		}
		return out
	case model.ExprDiamondBox:
		// Committed-choice modality: at least one matching transition
		// exists, and every one of them leads into the formula.
		diamond := Sat(m, model.ExprDiamond{Guards: x.Guards, Expr: x.Expr}, e)
		box := Sat(m, model.ExprBox{Guards: x.Guards, Expr: x.Expr}, e)
		out := stateSet{}
		for q := range diamond {
			if box[q] {
				out[q] = true
			}
		}
		return out
	case model.ExprVar:
		if s, ok := e[x.Name]; ok {
			return s
		}
		return stateSet{}
	case model.ExprLfp:
		cur := stateSet{}
		for {
			next := Sat(m, x.Expr, e.with(x.Var, cur))
			if equalSets(next, cur) {
				return cur
			}
			cur = next
		}
	case model.ExprGfp:
		cur := allStates(m)
		for {
			next := Sat(m, x.Expr, e.with(x.Var, cur))
			if equalSets(next, cur) {
				return cur
			}
			cur = next
		}
	default:
		return stateSet{}
	}
}

// Holds reports whether f holds at m's initial state, the admission test
// applied to every RULE commit against its bundled witness model, and
// re-applied to every existing rule whenever a new MODEL commit installs a
// replacement LTS (spec §4.4).
func Holds(m *model.Model, f *model.Formula) bool {
	sat := Sat(m, f.Expr, env{})
	return sat[m.Initial]
}
