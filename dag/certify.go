// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"fmt"

	"github.com/luxfi/crypto/bls"
)

// SignHeader produces a validator's BLS vote signature over a header's
// content hash (spec §4.6 "Certification": validators sign the headers
// they consider well-formed), grounded on the teacher's
// CertificateGenerator.GenerateBLSSignature (engine/pq/crypto.go).
func SignHeader(sk *bls.SecretKey, h *Header) ([]byte, error) {
	hash := h.Hash()
	sig, err := sk.Sign(hash[:])
	if err != nil {
		return nil, fmt.Errorf("sign header: %w", err)
	}
	return bls.SignatureToBytes(sig), nil
}

// VerifyVote checks a single validator's BLS signature over a header before
// it is folded into a certificate's quorum (spec §4.6 "Certification"),
// grounded on the teacher's VerifyBLSAggregate (engine/pq/crypto.go)
// specialized to one signer.
func VerifyVote(pk *bls.PublicKey, h *Header, sigBytes []byte) bool {
	sig, err := bls.SignatureFromBytes(sigBytes)
	if err != nil {
		return false
	}
	hash := h.Hash()
	return bls.Verify(pk, sig, hash[:])
}

// AggregateVotes combines individual validator signatures into a single
// aggregate signature (spec §4.6: "2f+1 matching votes ... form a
// certificate"), grounded on the teacher's GenerateBLSAggregate
// (engine/pq/crypto.go), which wraps the same bls.AggregateSignatures call.
func AggregateVotes(sigs [][]byte) ([]byte, error) {
	parsed := make([]*bls.Signature, 0, len(sigs))
	for _, raw := range sigs {
		sig, err := bls.SignatureFromBytes(raw)
		if err != nil {
			return nil, fmt.Errorf("aggregate votes: %w", err)
		}
		parsed = append(parsed, sig)
	}
	agg, err := bls.AggregateSignatures(parsed)
	if err != nil {
		return nil, fmt.Errorf("aggregate votes: %w", err)
	}
	return bls.SignatureToBytes(agg), nil
}
