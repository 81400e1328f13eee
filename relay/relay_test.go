package relay

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/eth-fabric/fabric/internal/abiroot"
	"github.com/eth-fabric/fabric/internal/chrono"
	"github.com/eth-fabric/fabric/internal/lookahead"
	"github.com/eth-fabric/fabric/internal/log"
	"github.com/eth-fabric/fabric/internal/signing"
	"github.com/eth-fabric/fabric/internal/store"
	"github.com/eth-fabric/fabric/internal/types"
)

type noopForwarder struct {
	forwarded []types.SubmitBlockRequest
}

func (f *noopForwarder) ForwardBlock(ctx context.Context, block types.SubmitBlockRequest) error {
	f.forwarded = append(f.forwarded, block)
	return nil
}

func setupRelay(t *testing.T) (*Service, *signing.BLSKeyStore, *lookahead.Manager, *noopForwarder) {
	t.Helper()
	blsKeys := signing.NewBLSKeyStore()
	st := store.NewMemoryStore()
	verifier := signing.NewVerifier()
	la := lookahead.NewManager(chrono.NewClock(0), nil, log.New(0))
	forwarder := &noopForwarder{}

	svc := New(st, verifier, la, forwarder, Config{}, log.New(0))
	return svc, blsKeys, la, forwarder
}

func signDelegation(t *testing.T, blsKeys *signing.BLSKeyStore, d types.Delegation, proposerPub types.BLSPubKey) types.SignedDelegation {
	t.Helper()
	root, err := abiroot.DelegationSigningRoot(d)
	require.NoError(t, err)
	signer := signing.NewLocalBLSSigner(blsKeys)
	sig, err := signer.SignBLS(context.Background(), proposerPub, root)
	require.NoError(t, err)
	return types.SignedDelegation{Message: d, Nonce: sig.Nonce, SigningID: sig.SigningID, Signature: sig.Signature}
}

func TestHandleDelegation_AcceptsMatchingLookahead(t *testing.T) {
	svc, blsKeys, la, _ := setupRelay(t)
	proposerPub, err := blsKeys.AddFromSeed([]byte("relay-proposer-seed-0123456789012"))
	require.NoError(t, err)
	delegatePub, err := blsKeys.AddFromSeed([]byte("relay-delegate-seed-0123456789012"))
	require.NoError(t, err)

	const slot = 9_500_000_000 // far in the future relative to genesis=0
	la.Set(slot, proposerPub)

	d := types.Delegation{
		ProposerPubKey:   proposerPub,
		DelegatePubKey:   delegatePub,
		CommitterAddress: common.HexToAddress("0x1111"),
		Slot:             slot,
	}
	sd := signDelegation(t, blsKeys, d, proposerPub)

	require.NoError(t, svc.HandleDelegation(context.Background(), sd))

	has, err := svc.store.Has(store.SignedDelegationKey(slot))
	require.NoError(t, err)
	require.True(t, has)
}

// T6: a second POST delegation for an already-delegated slot is rejected.
func TestHandleDelegation_EquivocationGuard_T6(t *testing.T) {
	svc, blsKeys, la, _ := setupRelay(t)
	proposerPub, err := blsKeys.AddFromSeed([]byte("relay-proposer-seed-equiv-012345"))
	require.NoError(t, err)
	delegatePub, err := blsKeys.AddFromSeed([]byte("relay-delegate-seed-equiv-012345"))
	require.NoError(t, err)

	const slot = 9_500_000_001
	la.Set(slot, proposerPub)

	d := types.Delegation{
		ProposerPubKey:   proposerPub,
		DelegatePubKey:   delegatePub,
		CommitterAddress: common.HexToAddress("0x1111"),
		Slot:             slot,
	}
	sd := signDelegation(t, blsKeys, d, proposerPub)

	require.NoError(t, svc.HandleDelegation(context.Background(), sd))
	err = svc.HandleDelegation(context.Background(), sd)
	require.Error(t, err)
}

func TestHandleDelegation_RejectsProposerMismatch(t *testing.T) {
	svc, blsKeys, la, _ := setupRelay(t)
	proposerPub, err := blsKeys.AddFromSeed([]byte("relay-proposer-seed-mismatch-012"))
	require.NoError(t, err)
	otherPub, err := blsKeys.AddFromSeed([]byte("relay-other-seed-mismatch-012345"))
	require.NoError(t, err)
	delegatePub, err := blsKeys.AddFromSeed([]byte("relay-delegate-seed-mismatch-012"))
	require.NoError(t, err)

	const slot = 9_500_000_002
	la.Set(slot, otherPub) // lookahead says a different proposer

	d := types.Delegation{
		ProposerPubKey:   proposerPub,
		DelegatePubKey:   delegatePub,
		CommitterAddress: common.HexToAddress("0x1111"),
		Slot:             slot,
	}
	sd := signDelegation(t, blsKeys, d, proposerPub)

	require.Error(t, svc.HandleDelegation(context.Background(), sd))
}

// T7: GET constraints with no receiver headers returns an error when
// receivers is non-empty and the slot has not yet passed; it succeeds
// without auth once the slot has passed.
func TestGetConstraints_PreSlotAuth_T7(t *testing.T) {
	svc, blsKeys, _, _ := setupRelay(t)
	receiverPub, err := blsKeys.AddFromSeed([]byte("relay-receiver-seed-012345678901"))
	require.NoError(t, err)

	const slot = 9_000_000_000 // far in the future relative to genesis=0
	sc := types.SignedConstraints{
		Message: types.ConstraintsMessage{
			Slot:      slot,
			Receivers: []types.BLSPubKey{receiverPub},
		},
	}
	raw, err := json.Marshal(sc)
	require.NoError(t, err)
	require.NoError(t, svc.store.Put(store.SignedConstraintsKey(slot), raw))

	_, err = svc.GetConstraints(context.Background(), slot, ReceiverAuth{})
	require.Error(t, err)

	signer := signing.NewLocalBLSSigner(blsKeys)
	root := slotSigningRoot(slot)
	sig, err := signer.SignBLS(context.Background(), receiverPub, root)
	require.NoError(t, err)

	got, err := svc.GetConstraints(context.Background(), slot, ReceiverAuth{
		PublicKey: receiverPub,
		Signature: sig.Signature,
		Present:   true,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(slot), got.Message.Slot)
}

func TestGetConstraints_PastSlotBypassesAuth(t *testing.T) {
	svc, _, _, _ := setupRelay(t)
	const slot = 1 // far in the past given genesis=0 and real wall-clock time
	sc := types.SignedConstraints{
		Message: types.ConstraintsMessage{
			Slot:      slot,
			Receivers: []types.BLSPubKey{{0xaa}},
		},
	}
	raw, err := json.Marshal(sc)
	require.NoError(t, err)
	require.NoError(t, svc.store.Put(store.SignedConstraintsKey(slot), raw))

	got, err := svc.GetConstraints(context.Background(), slot, ReceiverAuth{})
	require.NoError(t, err)
	require.Equal(t, uint64(slot), got.Message.Slot)
}
