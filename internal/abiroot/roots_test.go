package abiroot

import (
	"encoding/hex"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/eth-fabric/fabric/internal/types"
)

func mustPubKey(t *testing.T, hexStr string) types.BLSPubKey {
	t.Helper()
	b, err := hex.DecodeString(hexStr[2:])
	require.NoError(t, err)
	require.Len(t, b, 48)
	var pk types.BLSPubKey
	copy(pk[:], b)
	return pk
}

// S1: commitment request signing root.
func TestCommitmentRequestSigningRoot_S1(t *testing.T) {
	req := types.CommitmentRequest{
		CommitmentType: 1,
		Payload:        nil,
		Slasher:        common.Address{},
	}
	got := CommitmentRequestSigningRoot(req)
	want := common.HexToHash("0xf61a6130b6ebfffcb3738e03fe820e4b883b623ec3ab7657ffbf385b2e94edba")
	require.Equal(t, want, got)
}

// S2: commitment signing root.
func TestCommitmentSigningRoot_S2(t *testing.T) {
	c := types.Commitment{
		CommitmentType: 1,
		Payload:        nil,
		RequestHash:    common.Hash{},
		Slasher:        common.Address{},
	}
	got := CommitmentSigningRoot(c)
	want := common.HexToHash("0x9770f15c80e37efd7af931b39a8b67e01003b923ee5d808b5a87619ebdf30da1")
	require.Equal(t, want, got)
}

// S3: delegation signing root.
func TestDelegationSigningRoot_S3(t *testing.T) {
	proposer := mustPubKey(t, "0xaf6e96c0eccd8d4ae868be9299af737855a1b08d57bccb565ea7e69311a30baeebe08d493c3fea97077e8337e95ac5a6")
	delegate := mustPubKey(t, "0xaf53b192a82ec1229e8fce4f99cb60287ce33896192b6063ac332b36fbe87ba1b2936bbc849ec68a0132362ab11a7754")

	d := types.Delegation{
		ProposerPubKey:   proposer,
		DelegatePubKey:   delegate,
		CommitterAddress: common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Slot:             5,
		Metadata:         []byte("some-metadata-here"),
	}

	got, err := DelegationSigningRoot(d)
	require.NoError(t, err)
	want := common.HexToHash("0xcd9aca062121f6f50df1bfd7e74e2b023a5a0d9e1387447568a2119db5022e1b")
	require.Equal(t, want, got)
}

// S4: constraints message signing root.
func TestConstraintsMessageSigningRoot_S4(t *testing.T) {
	proposer := mustPubKey(t, "0xaf6e96c0eccd8d4ae868be9299af737855a1b08d57bccb565ea7e69311a30baeebe08d493c3fea97077e8337e95ac5a6")
	delegate := mustPubKey(t, "0xaf53b192a82ec1229e8fce4f99cb60287ce33896192b6063ac332b36fbe87ba1b2936bbc849ec68a0132362ab11a7754")

	m := types.ConstraintsMessage{
		ProposerPubKey: proposer,
		DelegatePubKey: delegate,
		Slot:           67890,
		Constraints: []types.Constraint{
			{ConstraintType: 1, Payload: []byte{0x01, 0x02}},
			{ConstraintType: 2, Payload: []byte{0x03, 0x04}},
		},
		Receivers: []types.BLSPubKey{proposer},
	}

	got, err := ConstraintsMessageSigningRoot(m)
	require.NoError(t, err)
	want := common.HexToHash("0xb27bb26406c8fe6cf9e5bb1723d7dd2b06e4d32efc0cb0419dc57cc6c4b0ca87")
	require.Equal(t, want, got)
}

func TestEncodeArgs_Determinism(t *testing.T) {
	req := types.CommitmentRequest{CommitmentType: 7, Payload: []byte("payload"), Slasher: common.HexToAddress("0xabc")}
	a := CommitmentRequestSigningRoot(req)
	b := CommitmentRequestSigningRoot(req)
	require.Equal(t, a, b)
}
