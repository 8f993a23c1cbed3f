// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/luxfi/ids"
	"github.com/luxfi/log"
	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/engine"
)

// ContractRegistry is the subset of contract storage the Hub needs: create
// a new contract record, look one up, and store it back. A
// concrete storage-backed implementation is expected to wrap
// storage.Session; an in-memory implementation is adequate for tests.
type ContractRegistry interface {
	Create(id ids.ID) (*contract.Contract, error)
	Get(id ids.ID) (*contract.Contract, bool)
	Put(c *contract.Contract)
}

// MemoryRegistry is a ContractRegistry kept entirely in memory, suitable
// for tests and single-process demos.
type MemoryRegistry struct {
	mu        sync.RWMutex
	contracts map[ids.ID]*contract.Contract
}

// NewMemoryRegistry constructs an empty MemoryRegistry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{contracts: map[ids.ID]*contract.Contract{}}
}

func (m *MemoryRegistry) Create(id ids.ID) (*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.contracts[id]; exists {
		return nil, fmt.Errorf("contract %s already exists", id.String())
	}
	c := &contract.Contract{ID: id, State: contract.State{}}
	m.contracts[id] = c
	return c, nil
}

func (m *MemoryRegistry) Get(id ids.ID) (*contract.Contract, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[id]
	return c, ok
}

func (m *MemoryRegistry) Put(c *contract.Contract) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[c.ID] = c
}

// Hub is the Contract Hub HTTP surface (spec §6 "Contract Hub HTTP"),
// grounded on the Synnergy explorer's chi-routed service pattern
// (cmd/explorer/service.go) and certen-validator's JSON-handler idiom.
type Hub struct {
	logger   log.Logger
	engine   *engine.Engine
	registry ContractRegistry

	upgrader websocket.Upgrader

	mu          sync.Mutex
	subscribers map[ids.ID]map[string]chan commitEvent
}

type commitEvent struct {
	ContractID string `json:"contract_id"`
	Sequence   uint64 `json:"sequence"`
	Hash       string `json:"hash"`
}

// NewHub constructs a Contract Hub.
func NewHub(e *engine.Engine, registry ContractRegistry, logger log.Logger) *Hub {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	return &Hub{
		logger:      logger.With("component", "node.hub"),
		engine:      e,
		registry:    registry,
		upgrader:    websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		subscribers: map[ids.ID]map[string]chan commitEvent{},
	}
}

// Routes builds the chi router for the Contract Hub surface.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/contracts", h.handleCreateContract)
	r.Post("/rpc", h.handleRPC)
	r.Get("/ws", h.handleWebsocket)
	return r
}

func (h *Hub) handleCreateContract(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID ids.ID `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := req.ID
	if id == (ids.ID{}) {
		u := uuid.New()
		sum := sha256.Sum256(u[:])
		id, _ = ids.ToID(sum[:])
	}
	c, err := h.registry.Create(id)
	if err != nil {
		writeJSONError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": c.ID.String()})
}

type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// handleRPC serves `getContract` and `submitCommit` (spec §6 "POST /rpc
// with {method, params}").
func (h *Hub) handleRPC(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	switch req.Method {
	case "getContract":
		h.rpcGetContract(w, req.Params)
	case "submitCommit":
		h.rpcSubmitCommit(w, req.Params)
	default:
		writeJSONError(w, http.StatusBadRequest, "unknown method "+req.Method)
	}
}

func (h *Hub) rpcGetContract(w http.ResponseWriter, params json.RawMessage) {
	var p struct {
		ID ids.ID `json:"id"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid params")
		return
	}
	c, ok := h.registry.Get(p.ID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "contract not found")
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Hub) rpcSubmitCommit(w http.ResponseWriter, params json.RawMessage) {
	var p struct {
		ID     ids.ID          `json:"id"`
		Commit *contract.Commit `json:"commit"`
	}
	if err := json.Unmarshal(params, &p); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid params")
		return
	}
	c, ok := h.registry.Get(p.ID)
	if !ok {
		writeJSONError(w, http.StatusNotFound, "contract not found")
		return
	}
	if err := h.engine.Apply(c, p.Commit); err != nil {
		writeJSONError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.registry.Put(c)
	h.publish(p.ID, commitEvent{
		ContractID: p.ID.String(),
		Sequence:   p.Commit.Sequence,
		Hash:       p.Commit.Hash().String(),
	})
	writeJSON(w, http.StatusOK, map[string]string{"model_state": c.ModelState})
}

// handleWebsocket upgrades to a stream publishing commit events for
// subscribed contract ids (spec §6 "GET /ws upgrades to a stream
// publishing `commit` events for subscribed contract IDs").
func (h *Hub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	idHex := r.URL.Query().Get("contract_id")
	var cid ids.ID
	if idHex != "" {
		parsed, err := ids.FromString(idHex)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid contract_id")
			return
		}
		cid = parsed
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	subID := uuid.NewString()
	ch := make(chan commitEvent, 16)
	h.addSubscriber(cid, subID, ch)
	defer h.removeSubscriber(cid, subID)

	for event := range ch {
		if err := conn.WriteJSON(event); err != nil {
			return
		}
	}
}

func (h *Hub) addSubscriber(cid ids.ID, subID string, ch chan commitEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subscribers[cid] == nil {
		h.subscribers[cid] = map[string]chan commitEvent{}
	}
	h.subscribers[cid][subID] = ch
}

func (h *Hub) removeSubscriber(cid ids.ID, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subscribers[cid]; ok {
		if ch, ok := subs[subID]; ok {
			close(ch)
			delete(subs, subID)
		}
	}
}

func (h *Hub) publish(cid ids.ID, event commitEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers[cid] {
		select {
		case ch <- event:
		default:
		}
	}
}
