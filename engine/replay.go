// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package engine drives commit replay: given a contract's append-only
// commit sequence (or a single proposed next commit), it decides
// acceptance against the current model and rule set and produces the
// resulting state map, model, and model-state (spec §4.1 "State Store &
// Commit Replay"). It is the only package that orchestrates contract,
// model, predicate, and mucheck together, keeping contract itself a pure
// data package.
package engine

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/luxfi/ids"
	"github.com/luxfi/log"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
	"github.com/modalitylabs/modality/mucheck"
	"github.com/modalitylabs/modality/predicate"
)

// Engine replays commits against a single contract's accumulated state.
type Engine struct {
	logger log.Logger
	clock  predicate.Clock
}

// New constructs an Engine. clock may be nil, in which case time
// predicates read the delivering block/certificate's timestamp from each
// commit (spec §4.3, deterministic replay).
func New(logger log.Logger, clock predicate.Clock) *Engine {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Engine{logger: logger.With("component", "engine"), clock: clock}
}

// Replay rebuilds a Contract from genesis by applying commits in order,
// returning the first rejection encountered (spec invariant 1, "append-only").
func (e *Engine) Replay(id ids.ID, commits []*contract.Commit) (*contract.Contract, error) {
	c := &contract.Contract{ID: id, State: contract.State{}}
	for _, commit := range commits {
		if err := e.Apply(c, commit); err != nil {
			return c, err
		}
	}
	return c, nil
}

// Apply validates a single candidate commit against c's current state and,
// on acceptance, mutates c in place (state, model, model-state, rules) and
// appends the commit to its log.
func (e *Engine) Apply(c *contract.Contract, commit *contract.Commit) error {
	if err := e.checkChainWellFormed(c, commit); err != nil {
		return err
	}
	if err := e.verifySignatures(commit); err != nil {
		return err
	}

	var attempts []contract.AttemptResult
	if c.Model != nil {
		matched, att, err := e.matchTransition(c, commit)
		attempts = att
		if err != nil {
			return err
		}
		if matched == nil {
			return &contract.ValidationError{Kind: "no-transition", Attempts: attempts}
		}
		c.ModelState = matched.To
	}
	// No model loaded: every method other than MODEL/RULE passes freely
	// (spec §4.1 "Acceptance", case (a)); MODEL/RULE are always gated
	// through applyMethod below regardless of whether a model is active.

	if err := e.applyMethod(c, commit); err != nil {
		return err
	}

	c.Commits = append(c.Commits, commit)
	var method contract.Method
	if len(commit.Body) > 0 {
		method = commit.Body[0].Method
	}
	e.logger.Debug("commit applied", "contract", c.ID.String(), "sequence", commit.Sequence, "method", method)
	return nil
}

func (e *Engine) checkChainWellFormed(c *contract.Contract, commit *contract.Commit) error {
	wantSeq := uint64(len(c.Commits))
	if commit.Sequence != wantSeq {
		return &contract.ValidationError{Kind: "no-transition", Reason: fmt.Sprintf("sequence %d out of order, expected %d", commit.Sequence, wantSeq)}
	}
	var wantParent ids.ID
	if len(c.Commits) > 0 {
		wantParent = c.Commits[len(c.Commits)-1].Hash()
	}
	if commit.ParentHash != wantParent {
		return &contract.ValidationError{Kind: "no-transition", Reason: "parent_hash does not reference the immediately previous commit"}
	}
	return nil
}

// verifySignatures checks invariant 2 ("signature faithfulness"): every
// stored signature verifies under its claimed public key against the
// canonical signing bytes.
func (e *Engine) verifySignatures(commit *contract.Commit) error {
	msg := contract.SigningBytes(commit.Body)
	for _, sig := range commit.Signatures {
		pub, err := hex.DecodeString(sig.PublicKeyHex)
		if err != nil || len(pub) != ed25519.PublicKeySize {
			return &contract.SignatureError{Kind: "unknown-key", PublicKey: sig.PublicKeyHex}
		}
		raw, err := hex.DecodeString(sig.SigHex)
		if err != nil {
			return &contract.SignatureError{Kind: "invalid", PublicKey: sig.PublicKeyHex}
		}
		if !ed25519.Verify(ed25519.PublicKey(pub), msg, raw) {
			return &contract.SignatureError{Kind: "invalid", PublicKey: sig.PublicKeyHex}
		}
	}
	return nil
}

// matchTransition finds the first transition from c's current model-state
// whose guards all hold for commit against c's state (spec §4.1
// "Acceptance" / §4.3). It returns every attempted transition's failure
// detail for the caller's ValidationError on a reject.
func (e *Engine) matchTransition(c *contract.Contract, commit *contract.Commit) (*model.Transition, []contract.AttemptResult, error) {
	m := c.Model.AST
	var attempts []contract.AttemptResult
	for _, t := range m.TransitionsFrom(c.ModelState) {
		failed := false
		for _, g := range t.Guards {
			held, failure := predicate.Evaluate(g, commit, c.State, e.clock)
			if !held {
				failed = true
				reason := "predicate did not hold"
				if failure != nil {
					reason = failure.Reason
				}
				attempts = append(attempts, contract.AttemptResult{
					Action: t.Action, From: t.From, To: t.To,
					Predicate: g.Name, Reason: reason,
				})
				break
			}
		}
		if !failed {
			return &t, attempts, nil
		}
	}
	return nil, attempts, nil
}

// applyMethod executes one commit's effect on state (spec §4.1 "Replay").
func (e *Engine) applyMethod(c *contract.Contract, commit *contract.Commit) error {
	for _, op := range commit.Body {
		switch op.Method {
		case contract.MethodPost:
			if err := checkSuffixMatch(op.Path, op.Value.Suffix); err != nil {
				return err
			}
			c.State[op.Path] = op.Value
		case contract.MethodDelete:
			for _, p := range c.State.Descendants(op.Path) {
				delete(c.State, p)
			}
		case contract.MethodModel:
			if err := e.applyModel(c, commit, op); err != nil {
				return err
			}
		case contract.MethodRule:
			if err := e.applyRule(c, commit, op); err != nil {
				return err
			}
		case contract.MethodInvoke:
			if err := e.applyInvoke(c, commit, op); err != nil {
				return err
			}
		case contract.MethodRepost, contract.MethodCreate, contract.MethodSend, contract.MethodRecv:
			// Treated as typed POSTs carrying a target-contract id and a
			// referenced-commit proof (spec §4.1); cross-contract replay
			// coherence is enforced by the caller when a rule requires it.
			c.State[op.Path] = op.Value
		default:
			return &contract.ValidationError{Kind: "no-transition", Reason: fmt.Sprintf("unknown method %q", op.Method)}
		}
	}
	return nil
}

func (e *Engine) applyModel(c *contract.Contract, commit *contract.Commit, op contract.Op) error {
	ast, err := model.ParseModel(op.Value.Modality)
	if err != nil {
		return &contract.ValidationError{Kind: "no-transition", Reason: fmt.Sprintf("MODEL parse error: %v", err)}
	}
	newRef := &contract.ModelRef{AnchorHash: commit.Hash(), AST: ast}
	if err := e.gateModelAgainstRules(newRef, c.Rules); err != nil {
		return err
	}
	c.Model = newRef
	c.ModelState = ast.Initial
	return nil
}

// gateModelAgainstRules re-validates every accumulated rule against the
// candidate model (spec §4.4 "Admission": "every existing RULE is
// re-checked against the new MODEL").
func (e *Engine) gateModelAgainstRules(candidate *contract.ModelRef, rules []*contract.RuleRef) error {
	formulas := make([]*model.Formula, len(rules))
	for i, r := range rules {
		formulas[i] = r.AST
	}
	if err := mucheck.RecheckAll(candidate.AST, formulas); err != nil {
		return err
	}
	return nil
}

// checkSuffixMatch implements spec §4.1's "typecheck body against path's
// suffix": a path with no recognized suffix carries no type constraint.
func checkSuffixMatch(path string, valueSuffix contract.Suffix) error {
	want, hasSuffix := contract.SuffixOf(path)
	if !hasSuffix {
		return nil
	}
	if want != valueSuffix {
		return &contract.ValidationError{Kind: "no-transition", Reason: fmt.Sprintf("path %q requires a %s value, got %s", path, want, valueSuffix)}
	}
	return nil
}

func (e *Engine) applyRule(c *contract.Contract, commit *contract.Commit, op contract.Op) error {
	formula, err := model.ParseFormula(op.Value.Modality)
	if err != nil {
		return &contract.ValidationError{Kind: "rule-unsatisfiable", Reason: fmt.Sprintf("RULE parse error: %v", err)}
	}
	witnessRaw, hasWitness := op.Args["witness_model"]
	if !hasWitness {
		return &contract.ValidationError{Kind: "rule-witness-missing", Rule: formula.Name}
	}
	witness, err := model.ParseModel(witnessRaw.Modality)
	if err != nil {
		return &contract.ValidationError{Kind: "rule-witness-missing", Rule: formula.Name, Reason: err.Error()}
	}
	priorFormulas := make([]*model.Formula, len(c.Rules))
	for i, r := range c.Rules {
		priorFormulas[i] = r.AST
	}
	if verr := mucheck.AdmitRule(witness, formula, priorFormulas); verr != nil {
		return verr
	}
	formula.Anchor = commit.ParentHash.String()
	c.Rules = append(c.Rules, &contract.RuleRef{AnchorHash: commit.Hash(), AST: formula})
	return nil
}

// applyInvoke runs a sandboxed program and atomically applies the effects
// it returns (spec §4.1 "INVOKE"). Effects must be POST/DELETE ops; they
// are written straight to state here rather than re-entering Apply (no
// further signature/model gating on synthetic effect ops).
func (e *Engine) applyInvoke(c *contract.Contract, commit *contract.Commit, op contract.Op) error {
	if len(op.Path) < len(contract.ProgramsPrefix) || op.Path[:len(contract.ProgramsPrefix)] != contract.ProgramsPrefix {
		return &contract.ValidationError{Kind: "no-transition", Reason: "INVOKE path must lie under " + contract.ProgramsPrefix}
	}
	prog, ok := c.State[op.Path]
	if !ok || prog.Suffix != contract.SuffixWasm {
		return &contract.ValidationError{Kind: "no-transition", Reason: "INVOKE target is not a loaded .wasm value"}
	}
	effects, err := predicate.RunInvoke(prog.Wasm, op.Args)
	if err != nil {
		return &contract.ValidationError{Kind: "no-transition", Reason: fmt.Sprintf("INVOKE sandbox error: %v", err)}
	}
	for _, eff := range effects {
		switch eff.Method {
		case contract.MethodPost:
			c.State[eff.Path] = eff.Value
		case contract.MethodDelete:
			for _, p := range c.State.Descendants(eff.Path) {
				delete(c.State, p)
			}
		default:
			return &contract.ValidationError{Kind: "no-transition", Reason: "INVOKE effects must be POST or DELETE"}
		}
	}
	return nil
}
