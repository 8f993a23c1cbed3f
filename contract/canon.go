// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package contract

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
)

// canonBody is the JSON shape of one op within the canonical commit
// encoding (spec §6 "Commit wire format").
type canonBody struct {
	Method string      `json:"method"`
	Path   string      `json:"path,omitempty"`
	Value  interface{} `json:"value,omitempty"`
}

type canonHead struct {
	ParentHash string            `json:"parent_hash"`
	Signatures map[string]string `json:"signatures"`
}

type canonCommit struct {
	ContractID string      `json:"contract_id"`
	Sequence   uint64      `json:"sequence"`
	Body       []canonBody `json:"body"`
	Head       canonHead   `json:"head"`
}

func valueToJSON(v Value) interface{} {
	switch v.Suffix {
	case SuffixNum:
		return v.Num
	case SuffixBool:
		return v.Bool
	case SuffixDatetime, SuffixDate:
		return v.Time
	case SuffixHash, SuffixID:
		if v.Suffix == SuffixID {
			return v.IDHex
		}
		return v.HashHex
	case SuffixJSON:
		var out interface{}
		if len(v.Value2()) > 0 {
			_ = json.Unmarshal(v.Value2(), &out)
		}
		return out
	case SuffixWasm:
		return fmt.Sprintf("%x", v.Wasm)
	case SuffixModality:
		return v.Modality
	default:
		return v.Text
	}
}

// Value2 isolates the raw JSON bytes accessor so valueToJSON stays small.
func (v Value) Value2() []byte { return v.JSON }

// signatureMap renders a commit's signatures as a lowercase-hex
// pubkey -> signature map, for canonicalization and for the wire format.
func (c *Commit) signatureMap() map[string]string {
	out := make(map[string]string, len(c.Signatures))
	for _, s := range c.Signatures {
		out[s.PublicKeyHex] = s.SigHex
	}
	return out
}

// CanonicalBytes returns the sorted-key JSON canonical encoding of the
// whole commit (contract_id, sequence, body, head), which CanonicalHash
// digests into the commit's identity (spec §6).
//
// Signatures are made and verified over SigningBytes instead. Both
// encodings go through marshalSortedKeys, so sorted-key JSON is the one
// canonicalization used by every signer, verifier and hasher.
func CanonicalBytes(c *Commit) []byte {
	cc := canonCommit{
		ContractID: c.ContractID.String(),
		Sequence:   c.Sequence,
		Head: canonHead{
			ParentHash: c.ParentHash.String(),
			Signatures: c.signatureMap(),
		},
	}
	for _, op := range c.Body {
		cc.Body = append(cc.Body, canonBody{
			Method: string(op.Method),
			Path:   op.Path,
			Value:  valueToJSON(op.Value),
		})
	}
	return marshalSortedKeys(cc)
}

// SigningBytes returns the bytes that must be signed by each signer: the
// canonical encoding of (method, path, body) ONLY, excluding head/signatures
// (a signature cannot cover itself).
func SigningBytes(body []Op) []byte {
	type sb struct {
		Body []canonBody `json:"body"`
	}
	out := sb{}
	for _, op := range body {
		out.Body = append(out.Body, canonBody{
			Method: string(op.Method),
			Path:   op.Path,
			Value:  valueToJSON(op.Value),
		})
	}
	return marshalSortedKeys(out)
}

// CanonicalHash returns the sha-256 digest of a commit's canonical bytes.
func CanonicalHash(c *Commit) [32]byte {
	return sha256.Sum256(CanonicalBytes(c))
}

// marshalSortedKeys marshals v to JSON with every object's keys sorted
// recursively, matching spec §6's "canonical key ordering for hashing".
// encoding/json already sorts map keys, but struct field order follows Go
// declaration order, so we round-trip through a generic map to normalize
// both in one place.
func marshalSortedKeys(v interface{}) []byte {
	raw, err := json.Marshal(v)
	if err != nil {
		// Only reachable for values outside the canon* types above, which
		// are all JSON-marshalable by construction.
		panic(fmt.Sprintf("contract: canonical marshal: %v", err))
	}
	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		panic(fmt.Sprintf("contract: canonical unmarshal: %v", err))
	}
	return sortedMarshal(generic)
}

func sortedMarshal(v interface{}) []byte {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := []byte("{")
		for i, k := range keys {
			if i > 0 {
				out = append(out, ',')
			}
			kb, _ := json.Marshal(k)
			out = append(out, kb...)
			out = append(out, ':')
			out = append(out, sortedMarshal(t[k])...)
		}
		out = append(out, '}')
		return out
	case []interface{}:
		out := []byte("[")
		for i, e := range t {
			if i > 0 {
				out = append(out, ',')
			}
			out = append(out, sortedMarshal(e)...)
		}
		out = append(out, ']')
		return out
	default:
		b, _ := json.Marshal(t)
		return b
	}
}
