package proposer

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/eth-fabric/fabric/internal/beacon"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
	"github.com/eth-fabric/fabric/internal/urc"
)

type recordingRelay struct {
	mu          sync.Mutex
	delegations []types.SignedDelegation
}

func (r *recordingRelay) PostDelegation(ctx context.Context, sd types.SignedDelegation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delegations = append(r.delegations, sd)
	return nil
}

func (r *recordingRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.delegations)
}

func TestHandleDuty_PersistsBeforeTransmitting(t *testing.T) {
	keyStore := signing.NewBLSKeyStore()
	proposerPub, err := keyStore.AddFromSeed([]byte("proposer-seed-0123456789012345678"))
	require.NoError(t, err)
	delegatePub, err := keyStore.AddFromSeed([]byte("delegate-seed-012345678901234567"))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	signer := signing.NewLocalBLSSigner(keyStore)
	relay := &recordingRelay{}
	registry := urc.NewStaticRegistryReader([]types.BLSPubKey{proposerPub})

	svc := New(st, nil, signer, relay, registry, Config{
		GatewayDelegatePubKey:   delegatePub,
		GatewayCommitterAddress: common.HexToAddress("0xabc"),
		PollInterval:            time.Second,
	}, log.New(0))

	duty := beacon.Duty{PubKey: proposerPub, Slot: 100}
	require.NoError(t, svc.handleDuty(context.Background(), duty))

	has, err := st.Has(store.SignedDelegationKey(100))
	require.NoError(t, err)
	require.True(t, has)
	require.Equal(t, 1, relay.count())

	raw, err := st.Get(store.SignedDelegationKey(100))
	require.NoError(t, err)
	var sd types.SignedDelegation
	require.NoError(t, json.Unmarshal(raw, &sd))
	require.Equal(t, uint64(100), sd.Message.Slot)
}

// T1: at most one signed delegation is ever stored per slot; a second
// duty for the same slot must be skipped (equivocation guard).
func TestHandleDuty_EquivocationGuard_T1(t *testing.T) {
	keyStore := signing.NewBLSKeyStore()
	proposerPub, err := keyStore.AddFromSeed([]byte("proposer-seed-0123456789012345678"))
	require.NoError(t, err)
	delegatePub, err := keyStore.AddFromSeed([]byte("delegate-seed-012345678901234567"))
	require.NoError(t, err)

	st := store.NewMemoryStore()
	signer := signing.NewLocalBLSSigner(keyStore)
	relay := &recordingRelay{}
	registry := urc.NewStaticRegistryReader([]types.BLSPubKey{proposerPub})

	svc := New(st, nil, signer, relay, registry, Config{
		GatewayDelegatePubKey:   delegatePub,
		GatewayCommitterAddress: common.HexToAddress("0xabc"),
	}, log.New(0))

	duty := beacon.Duty{PubKey: proposerPub, Slot: 200}
	require.NoError(t, svc.handleDuty(context.Background(), duty))
	require.NoError(t, svc.handleDuty(context.Background(), duty))

	require.Equal(t, 1, relay.count())
}
