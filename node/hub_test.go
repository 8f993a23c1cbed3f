// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/modalitylabs/modality/contract"
	"github.com/modalitylabs/modality/engine"
)

func newTestHub() (*Hub, *httptest.Server) {
	reg := NewMemoryRegistry()
	eng := engine.New(nil, nil)
	hub := NewHub(eng, reg, nil)
	srv := httptest.NewServer(hub.Routes())
	return hub, srv
}

func postJSON(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestHubCreateContractGeneratesID(t *testing.T) {
	_, srv := newTestHub()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/contracts", map[string]string{})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out["id"])

	resp2 := postJSON(t, srv.URL+"/contracts", map[string]string{})
	defer resp2.Body.Close()
	var out2 map[string]string
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&out2))
	require.NotEqual(t, out["id"], out2["id"])
}

func TestHubCreateContractRejectsDuplicateID(t *testing.T) {
	_, srv := newTestHub()
	defer srv.Close()

	id := ids.ID{1, 2, 3}
	resp := postJSON(t, srv.URL+"/contracts", map[string]string{"id": id.String()})
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp2 := postJSON(t, srv.URL+"/contracts", map[string]string{"id": id.String()})
	defer resp2.Body.Close()
	require.Equal(t, http.StatusConflict, resp2.StatusCode)
}

func TestHubRPCGetContractNotFound(t *testing.T) {
	_, srv := newTestHub()
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/rpc", rpcRequest{
		Method: "getContract",
		Params: json.RawMessage(`{"id":"` + ids.ID{9}.String() + `"}`),
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHubRPCSubmitCommitAppliesAndStreamsEvent(t *testing.T) {
	hub, srv := newTestHub()
	defer srv.Close()

	createResp := postJSON(t, srv.URL+"/contracts", map[string]string{})
	defer createResp.Body.Close()
	var created map[string]string
	require.NoError(t, json.NewDecoder(createResp.Body).Decode(&created))
	cid, err := ids.FromString(created["id"])
	require.NoError(t, err)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?contract_id=" + cid.String()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// give the server a moment to register the subscriber before publishing.
	time.Sleep(20 * time.Millisecond)
	require.NotNil(t, hub.subscribers[cid])

	commit := &contract.Commit{
		ContractID: cid,
		Sequence:   0,
		Body: []contract.Op{
			{Method: contract.MethodPost, Path: "/greeting", Value: contract.Value{Text: "hello"}},
		},
	}
	params, err := json.Marshal(struct {
		ID     ids.ID          `json:"id"`
		Commit *contract.Commit `json:"commit"`
	}{ID: cid, Commit: commit})
	require.NoError(t, err)

	resp := postJSON(t, srv.URL+"/rpc", rpcRequest{Method: "submitCommit", Params: params})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event commitEvent
	require.NoError(t, conn.ReadJSON(&event))
	require.Equal(t, cid.String(), event.ContractID)
	require.Equal(t, uint64(0), event.Sequence)

	getResp := postJSON(t, srv.URL+"/rpc", rpcRequest{
		Method: "getContract",
		Params: json.RawMessage(`{"id":"` + cid.String() + `"}`),
	})
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)
	var c contract.Contract
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&c))
	require.Len(t, c.Commits, 1)
	require.Equal(t, "hello", c.State["/greeting"].Text)
}
