// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package dag

import (
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/luxfi/validators"
)

// NewWeighted constructs a DAG whose quorum (2f+1) is derived from a
// validators.Set's light (weight) distribution rather than a raw
// validator count, grounded on the teacher's validators.Set/Manager
// weighted-quorum convention (luxfi-consensus validators.Set.Light()).
func NewWeighted(set validators.Set, logger log.Logger) *DAG {
	total := set.Light()
	f := (total - 1) / 3
	d := New(f, logger)
	d.valSet = set
	return d
}

// weightOf looks up a member's signing weight (light) in a validator set,
// returning 0 for non-members.
func weightOf(set validators.Set, node ids.NodeID) uint64 {
	for _, v := range set.List() {
		if v.ID() == node {
			return v.Light()
		}
	}
	return 0
}

// CertificateWeight sums the signing weight backing a certificate's
// aggregate signature, letting a caller confirm a received certificate
// actually carries >= 2f+1 weight rather than just >= 2f+1 signatures,
// which matters once validators carry unequal weight.
func CertificateWeight(set validators.Set, cert *Certificate) uint64 {
	var total uint64
	for voter := range cert.Signatures {
		total += weightOf(set, voter)
	}
	return total
}
