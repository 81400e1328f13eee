package relay

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/eth-fabric/fabric/internal/relayproxy"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
)

func TestServer_HealthAndCapabilities(t *testing.T) {
	svc, _, _, _ := setupRelay(t)
	srv := httptest.NewServer(NewServer(svc, nil, nil, svc.log))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/constraints/v0/builder/capabilities")
	require.NoError(t, err)
	defer resp.Body.Close()
	var caps capabilitiesResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&caps))
	require.Equal(t, []uint64{types.InclusionConstraintType}, caps.ConstraintTypes)
}

func TestServer_PostDelegationAndGetDelegations(t *testing.T) {
	svc, blsKeys, la, _ := setupRelay(t)
	srv := httptest.NewServer(NewServer(svc, nil, nil, svc.log))
	defer srv.Close()

	proposerPub, err := blsKeys.AddFromSeed([]byte("server-proposer-seed-01234567890"))
	require.NoError(t, err)
	delegatePub, err := blsKeys.AddFromSeed([]byte("server-delegate-seed-01234567890"))
	require.NoError(t, err)

	const slot = 9_600_000_000 // far in the future relative to genesis=0
	la.Set(slot, proposerPub)

	d := types.Delegation{
		ProposerPubKey:   proposerPub,
		DelegatePubKey:   delegatePub,
		CommitterAddress: common.HexToAddress("0x1111"),
		Slot:             slot,
	}
	sd := signDelegation(t, blsKeys, d, proposerPub)

	body, err := json.Marshal(sd)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/delegation", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/delegations/9600000000")
	require.NoError(t, err)
	defer resp.Body.Close()
	var got getDelegationsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Delegations, 1)
	require.Equal(t, uint64(slot), got.Delegations[0].Message.Slot)
}

func TestServer_GetConstraints_MissingAuthReturns400(t *testing.T) {
	svc, blsKeys, _, _ := setupRelay(t)
	srv := httptest.NewServer(NewServer(svc, nil, nil, svc.log))
	defer srv.Close()

	receiverPub, err := blsKeys.AddFromSeed([]byte("server-receiver-seed-01234567890"))
	require.NoError(t, err)
	const slot = 9_100_000_000
	sc := types.SignedConstraints{Message: types.ConstraintsMessage{Slot: slot, Receivers: []types.BLSPubKey{receiverPub}}}
	raw, err := json.Marshal(sc)
	require.NoError(t, err)
	require.NoError(t, svc.store.Put(store.SignedConstraintsKey(slot), raw))

	resp, err := http.Get(srv.URL + "/constraints/v0/relay/constraints/9100000000")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_FallbackProxiesUnmatchedRoutes(t *testing.T) {
	svc, _, _, _ := setupRelay(t)
	downstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer downstream.Close()

	proxy := relayproxy.New(downstream.URL, downstream.Client())
	srv := httptest.NewServer(NewServer(svc, proxy, nil, svc.log))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/some/unmapped/route")
	require.NoError(t, err)
	require.Equal(t, http.StatusTeapot, resp.StatusCode)
}
