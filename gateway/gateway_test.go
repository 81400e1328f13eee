package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
)

var errRelayUnavailable = errors.New("gateway_test: relay unavailable")

type recordingConstraintsRelay struct {
	mu    sync.Mutex
	calls []types.SignedConstraints
	fail  bool
}

func (r *recordingConstraintsRelay) PostConstraints(ctx context.Context, sc types.SignedConstraints) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errRelayUnavailable
	}
	r.calls = append(r.calls, sc)
	return nil
}

func (r *recordingConstraintsRelay) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func setupService(t *testing.T) (*Service, *signing.BLSKeyStore, *signing.ECDSAKeyStore, *recordingConstraintsRelay) {
	t.Helper()
	blsKeys := signing.NewBLSKeyStore()
	ecdsaKeys := signing.NewECDSAKeyStore()
	st := store.NewMemoryStore()
	signer := signing.NewSigner(signing.NewLocalBLSSigner(blsKeys), signing.NewLocalECDSASigner(ecdsaKeys))
	relay := &recordingConstraintsRelay{}

	delegatePub, err := blsKeys.AddFromSeed([]byte("delegate-seed-012345678901234567"))
	require.NoError(t, err)

	svc := New(st, signer, relay, Config{
		DelegatePubKey:        delegatePub,
		GenesisUnixSec:        time.Now().Unix(),
		SchedulerPollInterval: 10 * time.Millisecond,
	}, log.New(0))
	return svc, blsKeys, ecdsaKeys, relay
}

func storeDelegation(t *testing.T, st store.KVStore, slot uint64, proposerPub, delegatePub types.BLSPubKey, committer common.Address) {
	t.Helper()
	sd := types.SignedDelegation{
		Message: types.Delegation{
			ProposerPubKey:   proposerPub,
			DelegatePubKey:   delegatePub,
			CommitterAddress: committer,
			Slot:             slot,
		},
	}
	raw, err := json.Marshal(sd)
	require.NoError(t, err)
	require.NoError(t, st.Put(store.SignedDelegationKey(slot), raw))
}

// storeConstraint persists one raw inclusion constraint for slot, so that
// release has something to sign and post.
func storeConstraint(t *testing.T, st store.KVStore, slot uint64) {
	t.Helper()
	raw, err := json.Marshal(types.Constraint{ConstraintType: types.InclusionConstraintType, Payload: []byte{0x01}})
	require.NoError(t, err)
	require.NoError(t, st.Put(store.RawConstraintKey(slot, [32]byte{1}), raw))
}

func TestHandleCommitmentRequest_NoDelegation(t *testing.T) {
	svc, _, _, _ := setupService(t)

	payload := types.EncodeInclusionPayload(types.InclusionPayload{Slot: 1_000_000, SignedTxRLP: []byte{0xde, 0xad}})
	_, err := svc.HandleCommitmentRequest(context.Background(), types.CommitmentRequest{
		CommitmentType: types.InclusionCommitmentType,
		Payload:        payload,
	})
	require.Error(t, err)
}

func TestHandleCommitmentRequest_PersistsCommitmentAndConstraint(t *testing.T) {
	svc, blsKeys, ecdsaKeys, _ := setupService(t)

	proposerPub, err := blsKeys.AddFromSeed([]byte("proposer-seed-0123456789012345678"))
	require.NoError(t, err)
	committer, err := ecdsaKeys.GenerateAndAdd()
	require.NoError(t, err)

	const slot = 1_000_000
	storeDelegation(t, svc.store, slot, proposerPub, svc.cfg.DelegatePubKey, committer)

	txRLP := []byte{0x01, 0x02, 0x03}
	payload := types.EncodeInclusionPayload(types.InclusionPayload{Slot: slot, SignedTxRLP: txRLP})
	req := types.CommitmentRequest{
		CommitmentType: types.InclusionCommitmentType,
		Payload:        payload,
		Slasher:        common.HexToAddress("0x01"),
	}

	sc, err := svc.HandleCommitmentRequest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, req.Payload, sc.Commitment.Payload)

	has, err := svc.store.Has(store.SignedCommitmentKey(sc.Commitment.RequestHash))
	require.NoError(t, err)
	require.True(t, has)

	has, err = svc.store.Has(store.RawConstraintKey(slot, sc.Commitment.RequestHash))
	require.NoError(t, err)
	require.True(t, has)

	got, err := svc.CommitmentResult(context.Background(), sc.Commitment.RequestHash)
	require.NoError(t, err)
	require.Equal(t, sc.Commitment.RequestHash, got.Commitment.RequestHash)
}

func TestHandleCommitmentRequest_RejectsPastSlot(t *testing.T) {
	svc, _, _, _ := setupService(t)
	payload := types.EncodeInclusionPayload(types.InclusionPayload{Slot: 0, SignedTxRLP: []byte{0x01}})
	_, err := svc.HandleCommitmentRequest(context.Background(), types.CommitmentRequest{
		CommitmentType: types.InclusionCommitmentType,
		Payload:        payload,
	})
	require.Error(t, err)
}

func TestRelease_SetsFinalizationFlagAfterSuccessfulPost(t *testing.T) {
	svc, blsKeys, ecdsaKeys, relay := setupService(t)

	proposerPub, err := blsKeys.AddFromSeed([]byte("proposer-seed-release-0123456789"))
	require.NoError(t, err)
	committer, err := ecdsaKeys.GenerateAndAdd()
	require.NoError(t, err)

	const slot = 2_000_000
	storeDelegation(t, svc.store, slot, proposerPub, svc.cfg.DelegatePubKey, committer)
	storeConstraint(t, svc.store, slot)

	sd, err := svc.loadDelegation(slot)
	require.NoError(t, err)

	require.NoError(t, svc.release(context.Background(), slot, sd))
	require.Equal(t, 1, relay.count())

	has, err := svc.store.Has(store.FinalizationFlagKey(slot))
	require.NoError(t, err)
	require.True(t, has)
}

func TestRelease_DoesNotFinalizeOnPostFailure(t *testing.T) {
	svc, blsKeys, ecdsaKeys, relay := setupService(t)
	relay.fail = true

	proposerPub, err := blsKeys.AddFromSeed([]byte("proposer-seed-failcase-012345678"))
	require.NoError(t, err)
	committer, err := ecdsaKeys.GenerateAndAdd()
	require.NoError(t, err)

	const slot = 3_000_000
	storeDelegation(t, svc.store, slot, proposerPub, svc.cfg.DelegatePubKey, committer)
	storeConstraint(t, svc.store, slot)

	sd, err := svc.loadDelegation(slot)
	require.NoError(t, err)

	require.Error(t, svc.release(context.Background(), slot, sd))

	has, err := svc.store.Has(store.FinalizationFlagKey(slot))
	require.NoError(t, err)
	require.False(t, has)
}
