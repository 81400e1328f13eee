package gateway

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eth-fabric/fabric/internal/types"
)

func rpcCall(t *testing.T, url, method string, params ...any) rpcResponse {
	t.Helper()
	raw := make([]json.RawMessage, 0, len(params))
	for _, p := range params {
		b, err := json.Marshal(p)
		require.NoError(t, err)
		raw = append(raw, b)
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: raw, ID: json.RawMessage("1")})
	require.NoError(t, err)

	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out rpcResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHandler_CommitmentRequestAndResult(t *testing.T) {
	svc, blsKeys, ecdsaKeys, _ := setupService(t)
	h := NewHandler(svc, nil, svc.log)
	srv := httptest.NewServer(h)
	defer srv.Close()

	proposerPub, err := blsKeys.AddFromSeed([]byte("rpc-proposer-seed-012345678901234"))
	require.NoError(t, err)
	committer, err := ecdsaKeys.GenerateAndAdd()
	require.NoError(t, err)

	const slot = 4_000_000
	storeDelegation(t, svc.store, slot, proposerPub, svc.cfg.DelegatePubKey, committer)

	payload := types.EncodeInclusionPayload(types.InclusionPayload{Slot: slot, SignedTxRLP: []byte{0x01, 0x02}})
	resp := rpcCall(t, srv.URL, "commitmentRequest", commitmentRequestParams{
		Type:    types.InclusionCommitmentType,
		Payload: "0x" + hex.EncodeToString(payload),
	})
	require.Nil(t, resp.Error)

	resultBytes, err := json.Marshal(resp.Result)
	require.NoError(t, err)
	var sc types.SignedCommitment
	require.NoError(t, json.Unmarshal(resultBytes, &sc))

	got := rpcCall(t, srv.URL, "commitmentResult", "0x"+hex.EncodeToString(sc.Commitment.RequestHash[:]))
	require.Nil(t, got.Error)
}

func TestHandler_UnknownMethod(t *testing.T) {
	svc, _, _, _ := setupService(t)
	h := NewHandler(svc, nil, svc.log)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp := rpcCall(t, srv.URL, "nonexistent")
	require.NotNil(t, resp.Error)
}

func TestHandler_Slots(t *testing.T) {
	svc, _, _, _ := setupService(t)
	h := NewHandler(svc, nil, svc.log)
	srv := httptest.NewServer(h)
	defer srv.Close()

	resp := rpcCall(t, srv.URL, "slots")
	require.Nil(t, resp.Error)
}
