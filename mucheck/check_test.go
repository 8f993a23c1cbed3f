// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package mucheck

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/modalitylabs/modality/model"
)

// escrowModel mirrors spec §8 scenario E1 (single-party escrow): Created ->
// Funded on +funded, Funded -> Released on +released, Released terminal.
func escrowModel() *model.Model {
	return &model.Model{
		Name:    "escrow",
		States:  []string{"Created", "Funded", "Released"},
		Initial: "Created",
		Terminal: map[string]bool{"Released": true},
		Transitions: []model.Transition{
			{From: "Created", To: "Funded", Action: "fund", Guards: []model.Predicate{{Positive: true, Name: "funded"}}},
			{From: "Funded", To: "Released", Action: "release", Guards: []model.Predicate{{Positive: true, Name: "released"}}},
		},
	}
}

func TestSatTrueFalse(t *testing.T) {
	m := escrowModel()
	require.Equal(t, allStates(m), Sat(m, model.ExprTrue{}, env{}))
	require.Empty(t, Sat(m, model.ExprFalse{}, env{}))
}

func TestEventuallyReleasedHoldsAtInitial(t *testing.T) {
	m := escrowModel()
	f := &model.Formula{
		Name: "eventually-released",
		Expr: model.Eventually(model.ExprProp{Predicate: model.Predicate{Positive: true, Name: "released"}}),
	}
	require.True(t, Holds(m, f))
}

func TestBoxReleasedHoldsAtCreated(t *testing.T) {
	m := escrowModel()
	// []released holds where every successor state has a "released"-guarded
	// transition enabled. Created's only successor is Funded, which does, so
	// it holds at Created.
	f := &model.Formula{
		Name: "always-released-next",
		Expr: model.ExprBox{Expr: model.ExprProp{Predicate: model.Predicate{Positive: true, Name: "released"}}},
	}
	require.True(t, Holds(m, f))
}

func TestAdmitRuleProducesCounterexampleOnFailure(t *testing.T) {
	m := escrowModel()
	// A guard the correlator cannot analyze is compatible with every
	// transition, so <+nonexistent> reaches Funded; no state satisfies
	// false, so the rule fails and the counterexample is the "fund" step.
	f := &model.Formula{
		Name: "impossible",
		Expr: model.ExprDiamond{Guards: []model.Predicate{{Positive: true, Name: "nonexistent"}}, Expr: model.ExprFalse{}},
	}
	err := AdmitRule(m, f, nil)
	require.Error(t, err)
	require.Equal(t, "rule-unsatisfiable", err.Kind)
	require.Contains(t, err.Reason, "witness path: [fund]")
}

func TestAdmitRuleAcceptsSatisfiedFormula(t *testing.T) {
	m := escrowModel()
	f := &model.Formula{
		Name: "eventually-released",
		Expr: model.Eventually(model.ExprProp{Predicate: model.Predicate{Positive: true, Name: "released"}}),
	}
	require.Nil(t, AdmitRule(m, f, nil))
}

func TestRecheckAllFlagsViolatingNewModel(t *testing.T) {
	rule := &model.Formula{
		Name: "eventually-released",
		Expr: model.Eventually(model.ExprProp{Predicate: model.Predicate{Positive: true, Name: "released"}}),
	}
	require.Nil(t, AdmitRule(escrowModel(), rule, nil))

	// A replacement model that can never reach a "released"-guarded
	// transition should be rejected when the rule is re-checked.
	stuck := &model.Model{
		Name:    "escrow-broken",
		States:  []string{"Created", "Abandoned"},
		Initial: "Created",
		Terminal: map[string]bool{"Abandoned": true},
		Transitions: []model.Transition{
			{From: "Created", To: "Abandoned", Action: "abandon", Guards: []model.Predicate{{Positive: true, Name: "abandoned"}}},
		},
	}
	err := RecheckAll(stuck, []*model.Formula{rule})
	require.Error(t, err)
	require.Equal(t, "model-violates-rule", err.Kind)
}
