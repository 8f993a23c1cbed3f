// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"fmt"
	"strings"

	"github.com/modalitylabs/modality/contract"
)

// substituteTemplate resolves every "{/sub/path}" marker in tmpl against s
// and returns the fully-resolved path.
func substituteTemplate(tmpl string, s contract.State) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(tmpl) {
		if tmpl[i] == '{' {
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("MissingPath: unterminated template in %q", tmpl)
			}
			sub := tmpl[i+1 : i+end]
			v, ok := s[sub]
			if !ok {
				return "", fmt.Errorf("MissingPath: %s", sub)
			}
			out.WriteString(renderValue(v))
			i += end + 1
			continue
		}
		out.WriteByte(tmpl[i])
		i++
	}
	return out.String(), nil
}

func renderValue(v contract.Value) string {
	switch v.Suffix {
	case contract.SuffixText:
		return v.Text
	case contract.SuffixID:
		return v.IDHex
	case contract.SuffixHash:
		return v.HashHex
	default:
		return v.Text
	}
}
