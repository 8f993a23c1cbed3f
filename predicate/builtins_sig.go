// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"strconv"
	"strings"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
)

// idKeysUnderPrefix returns the lowercase-hex public keys of every .id path
// in s that lies at or under prefix.
func idKeysUnderPrefix(s contract.State, prefix string) []string {
	var out []string
	trimmed := strings.TrimSuffix(prefix, "/") + "/"
	for path, v := range s {
		if v.Suffix != contract.SuffixID {
			continue
		}
		if path == prefix || strings.HasPrefix(path, trimmed) {
			out = append(out, strings.ToLower(v.IDHex))
		}
	}
	return out
}

func evalSignedBy(guard model.Predicate, c *contract.Commit, s contract.State) (bool, *Failure) {
	if len(guard.Args) != 1 {
		return fail("signed_by", "", "expects exactly one path argument")
	}
	v, arg, err := ResolveArg(guard.Args[0], s)
	if err != nil {
		return fail("signed_by", arg, err.Error())
	}
	if v.Suffix != contract.SuffixID {
		return fail("signed_by", arg, "argument path is not a .id value")
	}
	if !c.SignedBy(v.IDHex) {
		return fail("signed_by", arg, "commit not signed by this key")
	}
	return ok()
}

func evalAnySigned(guard model.Predicate, c *contract.Commit, s contract.State) (bool, *Failure) {
	if len(guard.Args) != 1 {
		return fail("any_signed", "", "expects exactly one path-prefix argument")
	}
	prefix := guard.Args[0].Path
	keys := idKeysUnderPrefix(s, prefix)
	if len(keys) == 0 {
		return fail("any_signed", prefix, "no .id members under prefix")
	}
	signers := c.SignerSet()
	for _, k := range keys {
		if _, ok := signers[k]; ok {
			return ok()
		}
	}
	return fail("any_signed", prefix, "no member of prefix signed the commit")
}

func evalAllSigned(guard model.Predicate, c *contract.Commit, s contract.State) (bool, *Failure) {
	if len(guard.Args) != 1 {
		return fail("all_signed", "", "expects exactly one path-prefix argument")
	}
	prefix := guard.Args[0].Path
	keys := idKeysUnderPrefix(s, prefix)
	if len(keys) == 0 {
		// Vacuously-true disabled (spec §8 Boundary behaviors).
		return fail("all_signed", prefix, "no .id members under prefix (vacuous case disabled)")
	}
	signers := c.SignerSet()
	for _, k := range keys {
		if _, ok := signers[k]; !ok {
			return fail("all_signed", prefix, "member "+k+" did not sign")
		}
	}
	return ok()
}

func evalThreshold(guard model.Predicate, c *contract.Commit, s contract.State) (bool, *Failure) {
	if len(guard.Args) != 2 {
		return fail("threshold", "", "expects (n, prefix)")
	}
	n, isNum := model.LiteralFloat(guard.Args[0])
	if !isNum {
		return fail("threshold", "", "first argument must be a numeric literal")
	}
	prefix := guard.Args[1].Path
	keys := idKeysUnderPrefix(s, prefix)
	signers := c.SignerSet()
	count := 0
	for _, k := range keys {
		if _, ok := signers[k]; ok {
			count++
		}
	}
	if float64(count) < n {
		return fail("threshold", prefix, "only "+strconv.Itoa(count)+" of required "+strconv.FormatFloat(n, 'f', -1, 64)+" keys signed")
	}
	return ok()
}

func evalModifies(guard model.Predicate, c *contract.Commit) (bool, *Failure) {
	if len(guard.Args) != 1 {
		return fail("modifies", "", "expects exactly one path argument")
	}
	path := guard.Args[0].Path
	for _, op := range c.Body {
		if !op.Method.MutatesPath() {
			continue
		}
		if op.Path == path || strings.HasPrefix(op.Path, strings.TrimSuffix(path, "/")+"/") {
			return ok()
		}
	}
	return fail("modifies", path, "commit does not POST/DELETE this path")
}

func evalAddsRule(guard model.Predicate, c *contract.Commit) (bool, *Failure) {
	for _, op := range c.Body {
		if op.Method == contract.MethodRule {
			return ok()
		}
	}
	return fail("adds_rule", "", "commit is not a RULE commit")
}
