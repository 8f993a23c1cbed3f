// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package predicate

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/model"
)

// evalHash implements sha256_matches (preimage check), hash_equals (bytewise
// comparison), and commitment_verify (sha-256 over preimage‖salt). The hash
// algorithm for commitment_verify is fixed to sha-256, resolving the Open
// Question in spec §9.
func evalHash(guard model.Predicate, s contract.State) (bool, *Failure) {
	switch guard.Name {
	case "sha256_matches":
		if len(guard.Args) != 2 {
			return fail("sha256_matches", "", "expects (data, expected_hash)")
		}
		data, arg, err := resolveComparand(guard.Args[0], s)
		if err != nil {
			return fail("sha256_matches", arg, err.Error())
		}
		expected, _, err := resolveComparand(guard.Args[1], s)
		if err != nil {
			return fail("sha256_matches", arg, err.Error())
		}
		sum := sha256.Sum256([]byte(data.Text))
		got := hex.EncodeToString(sum[:])
		want := strings.ToLower(strings.TrimPrefix(expected.Text, "0x"))
		return boolResult("sha256_matches", arg, got == want, "hash does not match preimage")

	case "hash_equals":
		if len(guard.Args) != 2 {
			return fail("hash_equals", "", "expects (h1, h2)")
		}
		h1, arg, err := resolveComparand(guard.Args[0], s)
		if err != nil {
			return fail("hash_equals", arg, err.Error())
		}
		h2, _, err := resolveComparand(guard.Args[1], s)
		if err != nil {
			return fail("hash_equals", arg, err.Error())
		}
		a := strings.ToLower(strings.TrimPrefix(hashText(h1), "0x"))
		b := strings.ToLower(strings.TrimPrefix(hashText(h2), "0x"))
		return boolResult("hash_equals", arg, a == b, "hashes differ")

	case "commitment_verify":
		if len(guard.Args) != 3 {
			return fail("commitment_verify", "", "expects (preimage, salt, commitment)")
		}
		preimage, arg, err := resolveComparand(guard.Args[0], s)
		if err != nil {
			return fail("commitment_verify", arg, err.Error())
		}
		salt, _, err := resolveComparand(guard.Args[1], s)
		if err != nil {
			return fail("commitment_verify", arg, err.Error())
		}
		commitment, _, err := resolveComparand(guard.Args[2], s)
		if err != nil {
			return fail("commitment_verify", arg, err.Error())
		}
		sum := sha256.Sum256([]byte(preimage.Text + salt.Text))
		got := hex.EncodeToString(sum[:])
		want := strings.ToLower(strings.TrimPrefix(commitment.Text, "0x"))
		return boolResult("commitment_verify", arg, got == want, "commitment does not verify")

	default:
		return fail(guard.Name, "", "unhandled hash predicate")
	}
}

func hashText(v contract.Value) string {
	if v.HashHex != "" {
		return v.HashHex
	}
	return v.Text
}
