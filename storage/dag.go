// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package storage

import (
	"github.com/luxfi/ids"

	"github.com/modalitylabs/modality/dag"
)

// CertificateStore persists DAG certificates and the committed-round
// anchor sequence (spec §6 "Persisted layout": certificates, rounds).
type CertificateStore struct {
	s *Session
}

// NewCertificateStore wraps s.
func NewCertificateStore(s *Session) *CertificateStore { return &CertificateStore{s: s} }

// Put persists a certificate, keyed by its header hash.
func (cs *CertificateStore) Put(cert *dag.Certificate) error {
	return cs.s.PutJSON(TableCertificates, IDKey(cert.ID()), cert)
}

// Get loads a certificate by id.
func (cs *CertificateStore) Get(id ids.ID) (*dag.Certificate, bool, error) {
	var cert dag.Certificate
	ok, err := cs.s.GetJSON(TableCertificates, IDKey(id), &cert)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &cert, true, nil
}

// All walks every persisted certificate, for rebuilding a dag.DAG on boot.
func (cs *CertificateStore) All() ([]*dag.Certificate, error) {
	var out []*dag.Certificate
	err := cs.s.Iterate(TableCertificates, nil, func(_, value []byte) error {
		var cert dag.Certificate
		if err := unmarshalJSONInto(value, &cert); err != nil {
			return err
		}
		out = append(out, &cert)
		return nil
	})
	return out, err
}

// PutCommittedRound records the anchor committed at round, and the
// deterministic commit-order output it produced, so a restarted committer
// doesn't replay an already-committed sequence (spec §4.7 "Output").
func (cs *CertificateStore) PutCommittedRound(round uint64, anchor ids.ID, order []ids.ID) error {
	record := struct {
		Anchor ids.ID   `json:"anchor"`
		Order  []ids.ID `json:"order"`
	}{Anchor: anchor, Order: order}
	return cs.s.PutJSON(TableRounds, HeightKey(round), record)
}

// CommittedRounds loads every persisted committed round's commit order,
// keyed by round.
func (cs *CertificateStore) CommittedRounds() (map[uint64][]ids.ID, error) {
	out := map[uint64][]ids.ID{}
	err := cs.s.Iterate(TableRounds, nil, func(key, value []byte) error {
		var record struct {
			Anchor ids.ID   `json:"anchor"`
			Order  []ids.ID `json:"order"`
		}
		if err := unmarshalJSONInto(value, &record); err != nil {
			return err
		}
		out[heightFromKey(key)] = record.Order
		return nil
	})
	return out, err
}
