// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package engine

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/modalitylabs/modality/contract"
)

const escrowModelSrc = `model Escrow {
	states: Created, Funded, Released
	initial: Created
	terminal: Released
	transition Created-fund->Funded [+signed_by(/buyer.id)]
	transition Funded-release->Released [+signed_by(/seller.id)]
}`

func sign(t *testing.T, priv ed25519.PrivateKey, body []contract.Op) contract.Signature {
	t.Helper()
	msg := contract.SigningBytes(body)
	sig := ed25519.Sign(priv, msg)
	pub := priv.Public().(ed25519.PublicKey)
	return contract.Signature{PublicKeyHex: hex.EncodeToString(pub), SigHex: hex.EncodeToString(sig)}
}

// TestEscrowLifecycle walks a single-party-per-step escrow contract
// (spec §8 scenario E1) through: two unguarded identity POSTs, a MODEL
// install, then a buyer-signed POST accepted under the "fund" transition
// and a seller-signed POST accepted under "release".
func TestEscrowLifecycle(t *testing.T) {
	buyerPub, buyerPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sellerPub, sellerPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	e := New(nil, nil)
	c := &contract.Contract{ID: ids.ID{0x01}, State: contract.State{}}

	mk := func(parent ids.ID, seq uint64, body []contract.Op, sigs ...contract.Signature) *contract.Commit {
		return &contract.Commit{
			ContractID: c.ID,
			Sequence:   seq,
			ParentHash: parent,
			Body:       body,
			Signatures: sigs,
		}
	}

	var parent ids.ID

	buyerIDBody := []contract.Op{{Method: contract.MethodPost, Path: "/buyer.id",
		Value: contract.Value{Suffix: contract.SuffixID, IDHex: hex.EncodeToString(buyerPub)}}}
	c0 := mk(parent, 0, buyerIDBody)
	require.NoError(t, e.Apply(c, c0))
	parent = c0.Hash()
	require.Equal(t, hex.EncodeToString(buyerPub), c.State["/buyer.id"].IDHex)

	sellerIDBody := []contract.Op{{Method: contract.MethodPost, Path: "/seller.id",
		Value: contract.Value{Suffix: contract.SuffixID, IDHex: hex.EncodeToString(sellerPub)}}}
	c1 := mk(parent, 1, sellerIDBody)
	require.NoError(t, e.Apply(c, c1))
	parent = c1.Hash()

	modelBody := []contract.Op{{Method: contract.MethodModel, Path: "/model",
		Value: contract.Value{Suffix: contract.SuffixModality, Modality: escrowModelSrc}}}
	c2 := mk(parent, 2, modelBody)
	require.NoError(t, e.Apply(c, c2))
	parent = c2.Hash()
	require.NotNil(t, c.Model)
	require.Equal(t, "Created", c.ModelState)

	fundBody := []contract.Op{{Method: contract.MethodPost, Path: "/amount.num",
		Value: contract.Value{Suffix: contract.SuffixNum, Num: 100}}}
	c3 := mk(parent, 3, fundBody, sign(t, buyerPriv, fundBody))
	require.NoError(t, e.Apply(c, c3))
	parent = c3.Hash()
	require.Equal(t, "Funded", c.ModelState)

	releaseBody := []contract.Op{{Method: contract.MethodPost, Path: "/delivered.bool",
		Value: contract.Value{Suffix: contract.SuffixBool, Bool: true}}}
	c4 := mk(parent, 4, releaseBody, sign(t, sellerPriv, releaseBody))
	require.NoError(t, e.Apply(c, c4))
	require.Equal(t, "Released", c.ModelState)
}

const longMsgWitnessSrc = `model LongMsgWitness {
	states: S0, S1
	initial: S0
	terminal: S1
	transition S0-grow->S1 [+text_length_gt(/d/msg.text,20)]
}`

const shortMsgWitnessSrc = `model ShortMsgWitness {
	states: S0, S1
	initial: S0
	terminal: S1
	transition S0-shrink->S1 [+text_length_lt(/d/msg.text,10)]
}`

// TestRuleAdmissionRejectsContradictionWithPriorRule walks spec §8 scenario
// E3: a second RULE commit whose formula directly contradicts an already
// accumulated rule over the same path (text_length_gt(...,20) vs
// text_length_lt(...,10)) must be rejected as rule-unsatisfiable, even
// though its own witness model independently satisfies it in isolation.
func TestRuleAdmissionRejectsContradictionWithPriorRule(t *testing.T) {
	e := New(nil, nil)
	c := &contract.Contract{ID: ids.ID{0x03}, State: contract.State{}}

	mk := func(parent ids.ID, seq uint64, body []contract.Op) *contract.Commit {
		return &contract.Commit{ContractID: c.ID, Sequence: seq, ParentHash: parent, Body: body}
	}

	var parent ids.ID

	longRuleBody := []contract.Op{{
		Method: contract.MethodRule,
		Path:   "/rule/long-message",
		Value:  contract.Value{Suffix: contract.SuffixModality, Modality: "rule LongMessage { formula text_length_gt(/d/msg.text,20) }"},
		Args: map[string]contract.Value{
			"witness_model": {Suffix: contract.SuffixModality, Modality: longMsgWitnessSrc},
		},
	}}
	c0 := mk(parent, 0, longRuleBody)
	require.NoError(t, e.Apply(c, c0))
	parent = c0.Hash()
	require.Len(t, c.Rules, 1)

	shortRuleBody := []contract.Op{{
		Method: contract.MethodRule,
		Path:   "/rule/short-message",
		Value:  contract.Value{Suffix: contract.SuffixModality, Modality: "rule ShortMessage { formula text_length_lt(/d/msg.text,10) }"},
		Args: map[string]contract.Value{
			"witness_model": {Suffix: contract.SuffixModality, Modality: shortMsgWitnessSrc},
		},
	}}
	c1 := mk(parent, 1, shortRuleBody)
	err := e.Apply(c, c1)
	require.Error(t, err)
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "rule-unsatisfiable", verr.Kind)
	require.Contains(t, verr.Reason, "LongMessage")
	require.Len(t, c.Rules, 1, "the contradicting rule must not be appended")
}

// TestEscrowRejectsWrongSigner verifies a "fund" attempt signed by the
// wrong party is rejected with no-transition and an attempt trail.
func TestEscrowRejectsWrongSigner(t *testing.T) {
	buyerPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	sellerPub, sellerPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	e := New(nil, nil)
	c := &contract.Contract{ID: ids.ID{0x02}, State: contract.State{}}

	var parent ids.ID
	mk := func(seq uint64, body []contract.Op, sigs ...contract.Signature) *contract.Commit {
		cm := &contract.Commit{ContractID: c.ID, Sequence: seq, ParentHash: parent, Body: body, Signatures: sigs}
		return cm
	}

	c0 := mk(0, []contract.Op{{Method: contract.MethodPost, Path: "/buyer.id",
		Value: contract.Value{Suffix: contract.SuffixID, IDHex: hex.EncodeToString(buyerPub)}}})
	require.NoError(t, e.Apply(c, c0))
	parent = c0.Hash()

	c1 := mk(1, []contract.Op{{Method: contract.MethodPost, Path: "/seller.id",
		Value: contract.Value{Suffix: contract.SuffixID, IDHex: hex.EncodeToString(sellerPub)}}})
	require.NoError(t, e.Apply(c, c1))
	parent = c1.Hash()

	c2 := mk(2, []contract.Op{{Method: contract.MethodModel, Path: "/model",
		Value: contract.Value{Suffix: contract.SuffixModality, Modality: escrowModelSrc}}})
	require.NoError(t, e.Apply(c, c2))
	parent = c2.Hash()

	fundBody := []contract.Op{{Method: contract.MethodPost, Path: "/amount.num",
		Value: contract.Value{Suffix: contract.SuffixNum, Num: 100}}}
	// Signed by the seller, not the buyer the "fund" transition requires.
	c3 := mk(3, fundBody, sign(t, sellerPriv, fundBody))
	err = e.Apply(c, c3)
	require.Error(t, err)
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "no-transition", verr.Kind)
	require.Len(t, verr.Attempts, 1)
	require.Equal(t, "Created", c.ModelState)
}
