package txtrie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"github.com/eth-fabric/fabric/internal/types"
)

func TestBuildProveVerify_RoundTrip(t *testing.T) {
	txs := [][]byte{
		[]byte("signed-tx-one"),
		[]byte("signed-tx-two"),
		[]byte("signed-tx-three"),
	}

	tr, err := Build(txs)
	require.NoError(t, err)

	root := tr.Root()
	h := crypto.Keccak256Hash(txs[1])

	proof, err := tr.Prove(h)
	require.NoError(t, err)
	require.Equal(t, uint64(1), proof.TxIndex)
	require.Equal(t, h, proof.TxHash)

	proofs, err := tr.ProveBatch([]common.Hash{h})
	require.NoError(t, err)
	require.NoError(t, VerifyBatch(root, proofs))
}

func TestProve_EmptyBlock(t *testing.T) {
	tr, err := Build(nil)
	require.NoError(t, err)

	_, err = tr.Prove(crypto.Keccak256Hash([]byte("anything")))
	require.ErrorIs(t, err, ErrEmptyBlock)
}

func TestVerifyBatch_RejectsWrongConstraintType(t *testing.T) {
	err := VerifyBatch(common.Hash{}, types.ConstraintProofs{
		ConstraintTypes: []uint64{2},
		Payloads:        [][]byte{{}},
	})
	require.ErrorIs(t, err, ErrUnsupportedConstraintType)
}

func TestDuplicateTransactions_FirstIndexWins(t *testing.T) {
	txs := [][]byte{[]byte("same-tx"), []byte("same-tx"), []byte("other")}
	tr, err := Build(txs)
	require.NoError(t, err)

	h := crypto.Keccak256Hash(txs[0])
	proof, err := tr.Prove(h)
	require.NoError(t, err)
	require.Equal(t, uint64(0), proof.TxIndex)

	root := tr.Root()
	proofs, err := tr.ProveBatch([]common.Hash{h})
	require.NoError(t, err)
	require.NoError(t, VerifyBatch(root, proofs))
}
