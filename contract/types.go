// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract implements the state store and commit replay engine:
// given a contract's append-only commit sequence, it produces the
// authoritative state map, active model, rule list, and model-state.
package contract

import (
	"encoding/hex"
	"strings"

	"github.com/luxfi/ids"

	"github.com/modalitylabs/modality/model"
)

// Method is the verb of a commit.
type Method string

const (
	MethodPost    Method = "POST"
	MethodDelete  Method = "DELETE"
	MethodModel   Method = "MODEL"
	MethodRule    Method = "RULE"
	MethodInvoke  Method = "INVOKE"
	MethodRepost  Method = "REPOST"
	MethodCreate  Method = "CREATE"
	MethodSend    Method = "SEND"
	MethodRecv    Method = "RECV"
)

func (m Method) Valid() bool {
	switch m {
	case MethodPost, MethodDelete, MethodModel, MethodRule, MethodInvoke,
		MethodRepost, MethodCreate, MethodSend, MethodRecv:
		return true
	}
	return false
}

// MutatesPath reports whether this method directly sets or removes a path's
// value (used by the "modifies" predicate family, spec §4.3).
func (m Method) MutatesPath() bool {
	return m == MethodPost || m == MethodDelete
}

// Suffix is the typed tail of a path, e.g. ".id", ".num", ".wasm".
type Suffix string

const (
	SuffixID       Suffix = ".id"
	SuffixNum      Suffix = ".num"
	SuffixText     Suffix = ".text"
	SuffixBool     Suffix = ".bool"
	SuffixDatetime Suffix = ".datetime"
	SuffixDate     Suffix = ".date"
	SuffixHash     Suffix = ".hash"
	SuffixJSON     Suffix = ".json"
	SuffixWasm     Suffix = ".wasm"
	SuffixModality Suffix = ".modality"
)

// SuffixOf returns the typed suffix of a path, and false if the path carries
// none of the recognized suffixes.
func SuffixOf(path string) (Suffix, bool) {
	last := path
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		last = path[i+1:]
	}
	i := strings.LastIndexByte(last, '.')
	if i < 0 {
		return "", false
	}
	s := Suffix(last[i:])
	switch s {
	case SuffixID, SuffixNum, SuffixText, SuffixBool, SuffixDatetime, SuffixDate,
		SuffixHash, SuffixJSON, SuffixWasm, SuffixModality:
		return s, true
	default:
		return "", false
	}
}

// ProgramsPrefix is the only path prefix under which .wasm values are legal.
const ProgramsPrefix = "/__programs__/"

// Value is a typed value stored at a path. Exactly one field is meaningful,
// selected by Suffix.
type Value struct {
	Suffix   Suffix
	Text     string
	Num      float64
	Bool     bool
	Time     int64 // unix seconds, for .datetime/.date
	HashHex  string
	IDHex    string // lowercase hex ed25519 public key, for .id
	JSON     []byte // canonical JSON bytes, for .json
	Wasm     []byte
	Modality string // raw model/rule source text, for .modality
}

// Signature is one signer's signature over a commit's canonical bytes.
type Signature struct {
	PublicKeyHex string // lowercase hex ed25519 public key
	SigHex       string // lowercase hex signature bytes
}

// Op is one (method, path, value) triple carried in a commit body. Most
// commits carry exactly one; INVOKE commits carry the effects returned by
// the sandboxed program as additional ops applied atomically (spec §4.1).
type Op struct {
	Method Method
	Path   string
	Value  Value
	// Args is used by INVOKE (program arguments) and REPOST/CREATE/SEND/RECV
	// (target contract id + referenced-commit proof).
	Args map[string]Value
}

// Commit is one signed, ordered entry in a contract's append-only log.
type Commit struct {
	ContractID ids.ID
	Sequence   uint64
	ParentHash ids.ID // zero ids.ID for genesis
	Body       []Op
	Signatures []Signature

	// DeliveredAt is the timestamp of the block/certificate that ordered
	// this commit. It is set by the ordering layer before the commit is
	// replayed, and is what time predicates read during deterministic
	// replay (spec §4.3, W == nil case).
	DeliveredAt int64
}

// Hash returns the sha-256 content hash of the commit's canonical encoding
// (spec §6 "Commit wire format" / §9 canonicalization decision).
func (c *Commit) Hash() ids.ID {
	return ids.ID(CanonicalHash(c))
}

// SignedBy reports whether pubKeyHex (lowercase hex) appears among the
// commit's verified signatures.
func (c *Commit) SignedBy(pubKeyHex string) bool {
	pubKeyHex = strings.ToLower(pubKeyHex)
	for _, s := range c.Signatures {
		if strings.ToLower(s.PublicKeyHex) == pubKeyHex {
			return true
		}
	}
	return false
}

// SignerSet returns the lowercase-hex public keys that signed this commit.
func (c *Commit) SignerSet() map[string]struct{} {
	out := make(map[string]struct{}, len(c.Signatures))
	for _, s := range c.Signatures {
		out[strings.ToLower(s.PublicKeyHex)] = struct{}{}
	}
	return out
}

func decodeHexKey(s string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.ToLower(s), "0x"))
}

// State is the derived path -> typed value map for a contract.
type State map[string]Value

// Clone returns a shallow copy of the state map.
func (s State) Clone() State {
	out := make(State, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Descendants reports the set of paths in s that are path or a descendant of
// path (used by DELETE and by the "modifies" predicate family).
func (s State) Descendants(path string) []string {
	var out []string
	prefix := strings.TrimSuffix(path, "/") + "/"
	for k := range s {
		if k == path || strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// Contract is the full materialized view of one append-only commit log.
type Contract struct {
	ID ids.ID

	Commits []*Commit
	State   State

	Model      *ModelRef // nil if no model is currently loaded
	ModelState string    // current model-state symbol

	Rules []*RuleRef // append-only, never shrinks
}

// ModelRef binds a parsed model AST to the commit that installed it.
type ModelRef struct {
	AnchorHash ids.ID
	AST        *model.Model
}

// RuleRef binds a parsed rule AST to the commit that installed it.
type RuleRef struct {
	AnchorHash ids.ID
	AST        *model.Formula
}
