// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/modalitylabs/modality/contract"
)

// InvokeEffect is one POST/DELETE effect a sandboxed program returned for
// an INVOKE commit to apply atomically (spec §4.1 "INVOKE").
type InvokeEffect struct {
	Method contract.Method
	Path   string
	Value  contract.Value
}

type wireEffect struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Value  string `json:"value,omitempty"`
}

// RunInvoke executes program's "invoke" entry with args marshalled in
// sorted-key order (for determinism) and decodes its returned buffer as a
// JSON array of effects, each a typed POST (text value) or DELETE.
//
// The sandbox ABI only hands back opaque bytes, so the effect encoding is
// intentionally the simplest thing that is still deterministic: a JSON
// array, rather than a second bespoke binary format, matching how the rest
// of this package already leans on encoding/json for canonical encodings.
func RunInvoke(program []byte, args map[string]contract.Value) ([]InvokeEffect, error) {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	packed := make([][]byte, 0, len(keys)*2)
	for _, k := range keys {
		packed = append(packed, []byte(k), []byte(renderValue(args[k])))
	}

	sb := NewSandbox(nil)
	out, _, err := sb.Invoke(program, "invoke", packed, DefaultGasLimit)
	if err != nil {
		return nil, err
	}

	var wire []wireEffect
	if err := json.Unmarshal(out, &wire); err != nil {
		return nil, fmt.Errorf("invoke: malformed effect buffer: %w", err)
	}
	effects := make([]InvokeEffect, 0, len(wire))
	for _, w := range wire {
		m := contract.Method(w.Method)
		if m != contract.MethodPost && m != contract.MethodDelete {
			return nil, fmt.Errorf("invoke: effect method %q is not POST or DELETE", w.Method)
		}
		effects = append(effects, InvokeEffect{
			Method: m,
			Path:   w.Path,
			Value:  contract.Value{Suffix: contract.SuffixText, Text: w.Value},
		})
	}
	return effects, nil
}
