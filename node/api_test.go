// Copyright (C) 2019-2026, Modality Labs. All rights reserved.
// See the file LICENSE for licensing terms.

package node

import (
	"bytes"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/luxfi/ids"
	"github.com/stretchr/testify/require"

	"github.com/modalitylabs/modality/chain"
	"github.com/modalitylabs/modality/dag"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	observer := chain.NewObserver(nil, nil)
	genesis := &chain.Block{Index: 0, DifficultyTarget: big.NewInt(1 << 40)}
	require.NoError(t, observer.Submit(genesis))

	d := dag.New(1, nil)
	s := NewServer(observer, d, nil)
	srv := httptest.NewServer(s.Routes())
	return s, srv
}

func doPost(t *testing.T, url string, body interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	require.NoError(t, err)
	return resp
}

func TestServerPing(t *testing.T) {
	_, srv := newTestServer(t)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ping")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, true, out["pong"])
}

func TestServerStatusReportsTip(t *testing.T) {
	s, srv := newTestServer(t)
	defer srv.Close()
	s.SetCurrentRound(7)

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, uint64(7), out.CurrentRound)
	require.Equal(t, uint64(0), out.LatestBlockIndex)
	require.NotEmpty(t, out.ChainTipHash)
}

func TestServerDataBlockReturnsNullForUnknownIndex(t *testing.T) {
	_, srv := newTestServer(t)
	defer srv.Close()

	idx := uint64(5)
	resp := doPost(t, srv.URL+"/data/block", dataBlockRequest{Index: &idx, PeerID: "peer-1"})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := readAll(resp)
	require.NoError(t, err)
	require.Equal(t, "null", string(bytes.TrimSpace(body)))
}

func TestServerPageDraftAndRoundHeaders(t *testing.T) {
	s, srv := newTestServer(t)
	defer srv.Close()

	batch := ids.ID{7}
	s.dagStore.StoreBatch(batch, []byte("payload"))

	author := nodeIDFor(1)
	header := dag.Header{Author: author, Round: 0, BatchHash: batch}

	resp := doPost(t, srv.URL+"/consensus/scribes/page_draft", header)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Equal(t, true, out["accepted"])

	resp2 := doPost(t, srv.URL+"/data/round/block_headers", roundHeadersRequest{RoundID: 0})
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var headers []dag.Header
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&headers))
	require.Empty(t, headers) // a bare header draft isn't yet a certificate
}

func nodeIDFor(b byte) ids.NodeID {
	var id ids.NodeID
	id[0] = b
	return id
}

func readAll(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	buf := new(bytes.Buffer)
	_, err := buf.ReadFrom(resp.Body)
	return buf.Bytes(), err
}
