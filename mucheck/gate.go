// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package mucheck

import (
	"fmt"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
	"github.com/modalitylabs/modality/predicate"
)

// AdmitRule checks a candidate rule against m at RULE-commit time; the
// engine passes the witness model bundled with the RULE commit, and the
// rule must hold there conjoined with every prior rule (spec §4.4
// "Admission"). Before running the (potentially expensive) fixed-point model
// check, it runs the cheap syntactic correlator from predicate.Correlate
// over the new rule's guards against every prior rule's (spec §4.3:
// correlation "runs at RULE admission time to cheaply detect
// contradictions between accumulating rules"), so a direct contradiction
// like text_length_gt(/d/msg.text,20) vs text_length_lt(/d/msg.text,10) is
// rejected without ever invoking the model checker. priorRules may be nil,
// in which case only the new rule itself is checked.
func AdmitRule(m *model.Model, f *model.Formula, priorRules []*model.Formula) *contract.ValidationError {
	if m == nil {
		return &contract.ValidationError{
			Kind: "rule-witness-missing",
			Rule: f.Name,
		}
	}
	for _, prior := range priorRules {
		if corr, ok := correlateAgainst(f, prior); ok && !corr.Satisfiable {
			return &contract.ValidationError{
				Kind:   "rule-unsatisfiable",
				Rule:   f.Name,
				Reason: fmt.Sprintf("contradicts prior rule %q: %s", prior.Name, corr.Formula),
			}
		}
	}

	conjoined := conjoinWithPriors(f.Expr, priorRules)
	combined := &model.Formula{Name: f.Name, Anchor: f.Anchor, Expr: conjoined}
	if Holds(m, combined) {
		return nil
	}
	path := counterexample(m, combined)
	return &contract.ValidationError{
		Kind:   "rule-unsatisfiable",
		Rule:   f.Name,
		Reason: fmt.Sprintf("formula does not hold at initial state %q; witness path: %v", m.Initial, path),
	}
}

// RecheckAll re-validates every previously admitted rule against a newly
// installed model, as required whenever a MODEL commit replaces the LTS
// (spec §4.4: "every existing RULE is re-checked against the new MODEL; if
// any fails, the MODEL commit itself is rejected"). Each rule already
// passed pairwise correlation against its siblings at its own admission
// time, so no prior rules are conjoined here — only whether it still
// holds, alone, against the new model.
func RecheckAll(m *model.Model, rules []*model.Formula) *contract.ValidationError {
	for _, r := range rules {
		if err := AdmitRule(m, r, nil); err != nil {
			err.Kind = "model-violates-rule"
			err.Reason = fmt.Sprintf("installing model %q would violate rule %q: %s", m.Name, r.Name, err.Reason)
			return err
		}
	}
	return nil
}

// conjoinWithPriors folds the new rule's expression together with every
// prior rule's, so the witness model must satisfy all of them at once
// (spec §4.4 "the new rule conjoined with prior rules").
func conjoinWithPriors(expr model.FormulaExpr, priorRules []*model.Formula) model.FormulaExpr {
	out := expr
	for _, prior := range priorRules {
		out = model.ExprAnd{Left: out, Right: prior.Expr}
	}
	return out
}

// correlateAgainst runs the cheap predicate correlator over every guard
// predicate pair drawn from f and prior, returning the first
// unsatisfiable correlation found, if any.
func correlateAgainst(f, prior *model.Formula) (predicate.Correlation, bool) {
	fPreds := collectPredicates(f.Expr)
	priorPreds := collectPredicates(prior.Expr)
	for _, a := range fPreds {
		for _, b := range priorPreds {
			corr := predicate.Correlate(a, b)
			if !corr.Satisfiable {
				return corr, true
			}
		}
	}
	return predicate.Correlation{}, false
}

// collectPredicates walks a formula expression tree and returns every
// guard/proposition predicate it references, for correlator comparison.
func collectPredicates(expr model.FormulaExpr) []model.Predicate {
	var out []model.Predicate
	var walk func(model.FormulaExpr)
	walk = func(e model.FormulaExpr) {
		switch v := e.(type) {
		case model.ExprProp:
			out = append(out, v.Predicate)
		case model.ExprNot:
			walk(v.Expr)
		case model.ExprAnd:
			walk(v.Left)
			walk(v.Right)
		case model.ExprOr:
			walk(v.Left)
			walk(v.Right)
		case model.ExprImplies:
			walk(v.Left)
			walk(v.Right)
		case model.ExprDiamond:
			out = append(out, v.Guards...)
			walk(v.Expr)
		case model.ExprBox:
			out = append(out, v.Guards...)
			walk(v.Expr)
		case model.ExprDiamondBox:
			out = append(out, v.Guards...)
			walk(v.Expr)
		case model.ExprLfp:
			walk(v.Expr)
		case model.ExprGfp:
			walk(v.Expr)
		}
	}
	walk(expr)
	return out
}

// counterexample performs a breadth-first search from the model's initial
// state over the full transition relation (ignoring guard filters, since
// the checker has no concrete contract state to resolve them against) and
// returns the shortest sequence of actions reaching a state outside the
// formula's satisfaction set — a concrete trace an operator can use to see
// why the rule failed.
func counterexample(m *model.Model, f *model.Formula) []string {
	sat := Sat(m, f.Expr, env{})
	if !sat[m.Initial] {
		type frame struct {
			state string
			path  []string
		}
		seen := map[string]bool{m.Initial: true}
		queue := []frame{{state: m.Initial}}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, t := range m.TransitionsFrom(cur.state) {
				if seen[t.To] {
					continue
				}
				seen[t.To] = true
				path := append(append([]string{}, cur.path...), t.Action)
				if !sat[t.To] {
					return path
				}
				queue = append(queue, frame{state: t.To, path: path})
			}
		}
		return []string{fmt.Sprintf("(initial state %q itself violates the formula)", m.Initial)}
	}
	return nil
}
