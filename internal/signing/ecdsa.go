package signing

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/eth-fabric/fabric/internal/types"
)

// ECDSAKeyStore holds ECDSA secret keys indexed by their derived address,
// for the local/in-process signer used in development and tests.
type ECDSAKeyStore struct {
	keys map[common.Address]*ecdsa.PrivateKey
}

// NewECDSAKeyStore creates an empty key store.
func NewECDSAKeyStore() *ECDSAKeyStore {
	return &ECDSAKeyStore{keys: make(map[common.Address]*ecdsa.PrivateKey)}
}

// Add registers a secret key, returning its derived address.
func (k *ECDSAKeyStore) Add(key *ecdsa.PrivateKey) common.Address {
	addr := crypto.PubkeyToAddress(key.PublicKey)
	k.keys[addr] = key
	return addr
}

// GenerateAndAdd creates a fresh secp256k1 key and registers it.
func (k *ECDSAKeyStore) GenerateAndAdd() (common.Address, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return common.Address{}, err
	}
	return k.Add(key), nil
}

// LocalECDSASigner signs with in-process secret keys.
type LocalECDSASigner struct {
	store *ECDSAKeyStore
	nonce atomic.Uint64
}

// NewLocalECDSASigner wraps a key store as a Signer.
func NewLocalECDSASigner(store *ECDSAKeyStore) *LocalECDSASigner {
	return &LocalECDSASigner{store: store}
}

// SignECDSA implements the ECDSA half of Signer.
func (s *LocalECDSASigner) SignECDSA(ctx context.Context, addr common.Address, signingRoot common.Hash) (ECDSAResult, error) {
	key, ok := s.store.keys[addr]
	if !ok {
		return ECDSAResult{}, ErrUnknownKey
	}
	sig, err := crypto.Sign(signingRoot[:], key)
	if err != nil {
		return ECDSAResult{}, err
	}
	var out types.ECDSASignature
	copy(out[:], sig)

	id, err := uuid.NewRandom()
	if err != nil {
		return ECDSAResult{}, err
	}
	return ECDSAResult{
		Signature: out,
		Nonce:     s.nonce.Add(1),
		SigningID: common.BytesToHash(id[:]),
	}, nil
}

// ErrRecoveryFailed is returned when an ECDSA signature cannot be
// recovered to a public key.
var ErrRecoveryFailed = errors.New("signing: ECDSA signature recovery failed")

// ECDSAVerifier recovers the signing address from a 65-byte (r,s,v)
// signature.
type ECDSAVerifier struct{}

// NewECDSAVerifier constructs a stateless ECDSA verifier.
func NewECDSAVerifier() ECDSAVerifier { return ECDSAVerifier{} }

// RecoverECDSA recovers the address that produced sig over signingRoot.
func (ECDSAVerifier) RecoverECDSA(signingRoot common.Hash, sig types.ECDSASignature) (common.Address, error) {
	pub, err := crypto.SigToPub(signingRoot[:], sig[:])
	if err != nil {
		return common.Address{}, ErrRecoveryFailed
	}
	return crypto.PubkeyToAddress(*pub), nil
}
