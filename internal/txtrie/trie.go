// Package txtrie builds, proves, and verifies the Merkle-Patricia
// transaction trie a block's execution header commits to as
// transactions_root (spec §4.2). It reuses go-ethereum's own trie and rlp
// packages rather than the teacher's hand-rolled trie/rlp implementations,
// so the computed root is bit-exact with transactions_root (see
// DESIGN.md).
package txtrie

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/eth-fabric/fabric/internal/types"
)

// ErrEmptyBlock is returned by Prove/ProveBatch when the trie has no
// transactions (spec §4.2 edge case: "empty block -> build accepted, any
// prove fails with 'no transactions'").
var ErrEmptyBlock = errors.New("txtrie: no transactions")

// ErrTxNotFound is returned when a proof is requested for a hash absent
// from the built trie.
var ErrTxNotFound = errors.New("txtrie: transaction not found")

// ErrUnsupportedConstraintType is returned by VerifyBatch when a
// constraint's type is not INCLUSION_CONSTRAINT_TYPE.
var ErrUnsupportedConstraintType = errors.New("txtrie: unsupported constraint type")

// ErrTxHashMismatch is returned by VerifyBatch when the decoded
// transaction's hash does not match the proof's declared tx_hash.
var ErrTxHashMismatch = errors.New("txtrie: declared tx_hash does not match proof contents")

// Trie wraps a go-ethereum Merkle-Patricia trie keyed by RLP-encoded
// transaction index, plus the hash->index side table needed to prove by
// transaction hash (spec §4.2: "looking up by hash requires an auxiliary
// hash->index table built alongside").
type Trie struct {
	inner      *trie.Trie
	db         *trie.Database
	txs        [][]byte
	hashToIdx  map[common.Hash]uint64
}

// Build inserts (rlp(index_i), tx_i) for every transaction and returns the
// resulting trie. Transactions are the raw RLP-encoded signed transaction
// envelopes. Duplicate hashes: the first index wins in the side table,
// matching spec §4.2 ("first index wins in the hash table; proofs still
// validate because indices remain unique").
func Build(txs [][]byte) (*Trie, error) {
	db := trie.NewDatabase(rawdb.NewMemoryDatabase(), nil)
	t := trie.NewEmpty(db)

	hashToIdx := make(map[common.Hash]uint64, len(txs))
	for i, tx := range txs {
		key, err := rlp.EncodeToBytes(uint64(i))
		if err != nil {
			return nil, err
		}
		if err := t.Update(key, tx); err != nil {
			return nil, err
		}
		h := crypto.Keccak256Hash(tx)
		if _, exists := hashToIdx[h]; !exists {
			hashToIdx[h] = uint64(i)
		}
	}

	return &Trie{inner: t, db: db, txs: txs, hashToIdx: hashToIdx}, nil
}

// Root returns the trie's current root hash, which must equal the block
// header's transactions_root.
func (t *Trie) Root() common.Hash {
	return t.inner.Hash()
}

// Prove returns an inclusion proof for the transaction with the given
// hash.
func (t *Trie) Prove(txHash common.Hash) (types.InclusionProof, error) {
	if len(t.txs) == 0 {
		return types.InclusionProof{}, ErrEmptyBlock
	}
	idx, ok := t.hashToIdx[txHash]
	if !ok {
		return types.InclusionProof{}, ErrTxNotFound
	}

	key, err := rlp.EncodeToBytes(idx)
	if err != nil {
		return types.InclusionProof{}, err
	}

	proofDB := memorydb.New()
	if err := t.inner.Prove(key, proofDB); err != nil {
		return types.InclusionProof{}, err
	}

	nodes, err := collectProofNodes(proofDB)
	if err != nil {
		return types.InclusionProof{}, err
	}

	return types.InclusionProof{
		TxHash:  txHash,
		TxIndex: idx,
		Proof:   nodes,
	}, nil
}

// ProveBatch builds a ConstraintProofs envelope over txHashes, tagging
// every entry as INCLUSION_CONSTRAINT_TYPE (spec §4.2).
func (t *Trie) ProveBatch(txHashes []common.Hash) (types.ConstraintProofs, error) {
	out := types.ConstraintProofs{
		ConstraintTypes: make([]uint64, 0, len(txHashes)),
		Payloads:        make([][]byte, 0, len(txHashes)),
	}
	for _, h := range txHashes {
		proof, err := t.Prove(h)
		if err != nil {
			return types.ConstraintProofs{}, err
		}
		payload, err := rlp.EncodeToBytes(rlpInclusionProof(proof))
		if err != nil {
			return types.ConstraintProofs{}, err
		}
		out.ConstraintTypes = append(out.ConstraintTypes, types.InclusionConstraintType)
		out.Payloads = append(out.Payloads, payload)
	}
	return out, nil
}

// VerifyBatch verifies every (type, payload) pair in proofs against root,
// failing fast on the first mismatch (spec §4.2).
func VerifyBatch(root common.Hash, proofs types.ConstraintProofs) error {
	if len(proofs.ConstraintTypes) != len(proofs.Payloads) {
		return errors.New("txtrie: constraint_types/payloads length mismatch")
	}

	for i, ct := range proofs.ConstraintTypes {
		if ct != types.InclusionConstraintType {
			return ErrUnsupportedConstraintType
		}

		var rp rlpInclusionProof
		if err := rlp.DecodeBytes(proofs.Payloads[i], &rp); err != nil {
			return err
		}
		proof := rp.toInclusionProof()

		key, err := rlp.EncodeToBytes(proof.TxIndex)
		if err != nil {
			return err
		}

		proofDB := memorydb.New()
		for _, node := range proof.Proof {
			if err := proofDB.Put(crypto.Keccak256(node), node); err != nil {
				return err
			}
		}

		txBytes, err := trie.VerifyProof(root, key, proofDB)
		if err != nil {
			return err
		}

		gotHash := crypto.Keccak256Hash(txBytes)
		if gotHash != proof.TxHash {
			return ErrTxHashMismatch
		}
	}
	return nil
}

func collectProofNodes(db *memorydb.Database) ([][]byte, error) {
	var nodes [][]byte
	it := db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		v := it.Value()
		cp := make([]byte, len(v))
		copy(cp, v)
		nodes = append(nodes, cp)
	}
	return nodes, it.Error()
}

// rlpInclusionProof is the RLP-serializable mirror of types.InclusionProof
// (common.Hash does not need special treatment, but keeping a local shadow
// type avoids coupling internal/types to rlp tags).
type rlpInclusionProof struct {
	TxHash  common.Hash
	TxIndex uint64
	Proof   [][]byte
}

func (r rlpInclusionProof) toInclusionProof() types.InclusionProof {
	return types.InclusionProof{TxHash: r.TxHash, TxIndex: r.TxIndex, Proof: r.Proof}
}
