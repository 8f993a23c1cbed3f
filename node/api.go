// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/modalitylabs/modality/chain"
	"github.com/modalitylabs/modality/dag"
)

// Server is the node request/response API (spec §6 "Node request/response
// API"), grounded on the teacher's JSON-handler conventions
// (certen-validator pkg/server/attestation_handlers.go writeJSONError
// style) but routed with chi instead of hand-rolled method switches.
type Server struct {
	logger   log.Logger
	observer *chain.Observer
	dagStore *dag.DAG
	round    atomic.Uint64
}

// NewServer constructs the request/response API server.
func NewServer(observer *chain.Observer, dagStore *dag.DAG, logger log.Logger) *Server {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Server{logger: logger.With("component", "node.api"), observer: observer, dagStore: dagStore}
}

// CurrentRound returns the node's current DAG round, as last set through
// SetCurrentRound.
func (s *Server) CurrentRound() uint64 { return s.round.Load() }

// SetCurrentRound updates the round counter reported by /status.
func (s *Server) SetCurrentRound(r uint64) { s.round.Store(r) }

// Routes builds the chi router for the request/response paths in spec §6.
func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ping", s.handlePing)
	r.Get("/status", s.handleStatus)
	r.Post("/data/block", s.handleDataBlock)
	r.Post("/data/round/block_headers", s.handleRoundHeaders)
	r.Post("/consensus/block/ack", s.handleBlockAck)
	r.Post("/consensus/scribes/page_draft", s.handlePageDraft)
	r.Post("/consensus/scribes/page_cert", s.handlePageCert)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handlePing answers /ping with an echo (spec §6 "`/ping` -> echo").
func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"pong": true, "at": time.Now().UTC().Format(time.RFC3339)})
}

// statusResponse is the /status payload (spec §6).
type statusResponse struct {
	CurrentRound     uint64 `json:"current_round"`
	LatestBlockIndex uint64 `json:"latest_block_index"`
	ChainTipHash     string `json:"chain_tip_hash"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	tip, height := s.observer.Tip()
	writeJSON(w, http.StatusOK, statusResponse{
		CurrentRound:     s.CurrentRound(),
		LatestBlockIndex: height,
		ChainTipHash:     tip.String(),
	})
}

type dataBlockRequest struct {
	RoundID *uint64 `json:"round_id,omitempty"`
	Index   *uint64 `json:"index,omitempty"`
	PeerID  string  `json:"peer_id"`
}

// handleDataBlock answers `/data/block` (request `{round_id|index,
// peer_id}`). It answers null when no index is given, when the index is
// above the chain height, or when the current tip is not canonical;
// otherwise it answers `{index, tip}` with the current tip hash. It does
// not look up or return the block at that index, and round_id is ignored.
func (s *Server) handleDataBlock(w http.ResponseWriter, r *http.Request) {
	var req dataBlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Index == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	tip, height := s.observer.Tip()
	if *req.Index > height {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	status, _, ok := s.observer.Status(tip)
	if !ok || status != chain.StatusCanonical {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"index": *req.Index, "tip": tip.String()})
}

type roundHeadersRequest struct {
	RoundID uint64 `json:"round_id"`
}

// handleRoundHeaders answers `/data/round/block_headers` (spec §6: request
// `{round_id}` -> list of headers at round).
func (s *Server) handleRoundHeaders(w http.ResponseWriter, r *http.Request) {
	var req roundHeadersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	certs := s.dagStore.RoundCertificates(req.RoundID)
	headers := make([]dag.Header, 0, len(certs))
	for _, cid := range certs {
		if cert, ok := s.dagStore.Certificate(cid); ok {
			headers = append(headers, cert.Header)
		}
	}
	writeJSON(w, http.StatusOK, headers)
}

// ackRequest is the certificate-vote payload for `/consensus/block/ack`: a
// validator's signature attesting that it considers Header well-formed.
type ackRequest struct {
	Voter     ids.NodeID `json:"voter"`
	Header    dag.Header `json:"header"`
	Signature []byte     `json:"signature"`
}

// handleBlockAck folds an incoming vote into the DAG's per-header tally
// (spec §4.6 "Certification"), rejecting a vote whose signature does not
// verify against its claimed voter rather than just logging and
// acknowledging it.
func (s *Server) handleBlockAck(w http.ResponseWriter, r *http.Request) {
	var req ackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	cert, err := s.dagStore.AddVote(&req.Header, req.Voter, req.Signature)
	if err != nil {
		s.logger.Warn("rejected block ack", "voter", req.Voter.String(), "err", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": false, "reason": err.Error()})
		return
	}
	s.logger.Debug("accepted block ack", "voter", req.Voter.String(), "header", req.Header.Hash().String(), "certified", cert != nil)
	writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": true, "certified": cert != nil})
}

func (s *Server) handlePageDraft(w http.ResponseWriter, r *http.Request) {
	var h dag.Header
	if err := json.NewDecoder(r.Body).Decode(&h); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	fault, err := s.dagStore.OnHeader(&h)
	if err != nil {
		s.logger.Warn("rejected header draft", "err", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{"accepted": false, "reason": err.Error(), "fault": fault != nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func (s *Server) handlePageCert(w http.ResponseWriter, r *http.Request) {
	var cert dag.Certificate
	if err := json.NewDecoder(r.Body).Decode(&cert); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.dagStore.AddCertificate(&cert); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}
