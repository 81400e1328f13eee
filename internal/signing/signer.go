// Package signing defines the abstract signer the proposer and gateway
// services consume (spec §6 "Signer (consumed, abstract)") plus the
// blst/go-ethereum-backed implementations used for local development and
// testing. Callers never sign an in-memory struct directly — they compute
// a signing root (internal/abiroot) and hand it to the signer.
package signing

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/eth-fabric/fabric/internal/types"
)

// BLSResult is the signer's response to a BLS signing request.
type BLSResult struct {
	Signature types.BLSSignature
	Nonce     uint64
	SigningID common.Hash
}

// ECDSAResult is the signer's response to an ECDSA signing request.
type ECDSAResult struct {
	Signature types.ECDSASignature
	Nonce     uint64
	SigningID common.Hash
}

// BLSSigner is the BLS half of Signer; the proposer only needs this much
// to issue delegations.
type BLSSigner interface {
	// SignBLS signs signingRoot under the BLS key identified by pubkey.
	SignBLS(ctx context.Context, pubkey types.BLSPubKey, signingRoot common.Hash) (BLSResult, error)
}

// ECDSASigner is the ECDSA half of Signer; the gateway's commitment
// handler needs this much to sign commitments.
type ECDSASigner interface {
	// SignECDSA signs signingRoot under the ECDSA key identified by addr.
	SignECDSA(ctx context.Context, addr common.Address, signingRoot common.Hash) (ECDSAResult, error)
}

// Signer is the abstract key-custody service the core depends on. It is
// trusted but may be temporarily unavailable; a signing failure must abort
// the caller's operation without partial writes. The gateway's constraint
// scheduler signs BLS; its commitment handler signs ECDSA, so it depends
// on the full Signer.
type Signer interface {
	BLSSigner
	ECDSASigner
}

// Verifier checks signatures produced elsewhere, used by the relay to
// authenticate delegations, constraints, and receiver reads.
type Verifier interface {
	VerifyBLS(pubkey types.BLSPubKey, signingRoot common.Hash, sig types.BLSSignature) (bool, error)
	RecoverECDSA(signingRoot common.Hash, sig types.ECDSASignature) (common.Address, error)
}
