package signing

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	blst "github.com/supranational/blst/bindings/go"

	"github.com/eth-fabric/fabric/internal/types"
)

// blstDST is the domain separation tag for signing-root signatures,
// matching the teacher's BLS adapter convention.
var blstDST = []byte("FABRIC_PRECONF_BLS_SIG_DST")

var (
	// ErrUnknownKey is returned when the signer has no secret key for the
	// requested public key.
	ErrUnknownKey = errors.New("signing: unknown BLS key")
	// ErrInvalidSignature is returned by verification when the compressed
	// signature bytes do not decompress to a valid G2 point.
	ErrInvalidSignature = errors.New("signing: invalid BLS signature encoding")
)

// BLSKeyStore holds BLS secret keys indexed by their compressed public key,
// for the local/in-process signer used in development and tests. A real
// deployment's signer lives outside the core (spec §1 Non-goals).
type BLSKeyStore struct {
	keys map[types.BLSPubKey]*blst.SecretKey
}

// NewBLSKeyStore creates an empty key store.
func NewBLSKeyStore() *BLSKeyStore {
	return &BLSKeyStore{keys: make(map[types.BLSPubKey]*blst.SecretKey)}
}

// AddFromSeed derives and registers a keypair from a 32+ byte seed,
// returning the resulting compressed public key.
func (k *BLSKeyStore) AddFromSeed(seed []byte) (types.BLSPubKey, error) {
	sk := blst.KeyGen(seed)
	if sk == nil {
		return types.BLSPubKey{}, errors.New("signing: key generation failed")
	}
	pk := new(blst.P1Affine).From(sk)
	var pub types.BLSPubKey
	copy(pub[:], pk.Compress())
	k.keys[pub] = sk
	return pub, nil
}

// LocalBLSSigner signs with in-process secret keys. It is the grounding
// for tests and local development; production deployments call an
// out-of-process signer over the abstract Signer interface.
type LocalBLSSigner struct {
	store *BLSKeyStore
	nonce atomic.Uint64
}

// NewLocalBLSSigner wraps a key store as a Signer.
func NewLocalBLSSigner(store *BLSKeyStore) *LocalBLSSigner {
	return &LocalBLSSigner{store: store}
}

// SignBLS implements the BLS half of Signer.
func (s *LocalBLSSigner) SignBLS(ctx context.Context, pubkey types.BLSPubKey, signingRoot common.Hash) (BLSResult, error) {
	sk, ok := s.store.keys[pubkey]
	if !ok {
		return BLSResult{}, ErrUnknownKey
	}
	sig := new(blst.P2Affine).Sign(sk, signingRoot[:], blstDST)
	var out types.BLSSignature
	copy(out[:], sig.Compress())

	id, err := uuid.NewRandom()
	if err != nil {
		return BLSResult{}, err
	}
	return BLSResult{
		Signature: out,
		Nonce:     s.nonce.Add(1),
		SigningID: common.BytesToHash(id[:]),
	}, nil
}

// BLSVerifier checks BLS signatures against a decompressed public key,
// grounded in the teacher's crypto/bls_blst_adapter.go Verify path.
type BLSVerifier struct{}

// NewBLSVerifier constructs a stateless BLS verifier.
func NewBLSVerifier() BLSVerifier { return BLSVerifier{} }

// VerifyBLS verifies sig over signingRoot under pubkey.
func (BLSVerifier) VerifyBLS(pubkey types.BLSPubKey, signingRoot common.Hash, sig types.BLSSignature) (bool, error) {
	var pk blst.P1Affine
	if pk.Uncompress(pubkey[:]) == nil {
		return false, ErrInvalidPubKeyEncoding
	}
	var s blst.P2Affine
	if s.Uncompress(sig[:]) == nil {
		return false, ErrInvalidSignature
	}
	ok := s.Verify(true, &pk, true, signingRoot[:], blstDST)
	return ok, nil
}

// ErrInvalidPubKeyEncoding is returned when a compressed BLS public key
// fails to decompress during signature verification.
var ErrInvalidPubKeyEncoding = errors.New("signing: invalid BLS public key encoding")
