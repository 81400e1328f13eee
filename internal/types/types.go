// Package types holds the wire data model shared by the proposer, gateway,
// and relay services: delegations, constraints, commitments, inclusion
// proofs, and the wire constants that govern them.
package types

import (
	"github.com/ethereum/go-ethereum/common"
)

// Wire constants (spec §6).
const (
	InclusionConstraintType  = uint64(1)
	InclusionCommitmentType  = uint64(1)
	MaxConstraintsPerSlot    = 256
	ConstraintTriggerOffsetMS = 14_000
	LookaheadWindowSize      = 64
)

// BLSPubKey is a compressed BLS12-381 G1 public key.
type BLSPubKey [48]byte

// BLSSignature is a compressed BLS12-381 G2 signature.
type BLSSignature [96]byte

// ECDSASignature is an Ethereum (r,s,v) 65-byte signature.
type ECDSASignature [65]byte

// Delegation is a proposer's statement handing one slot's authority to a
// delegate key and committer address.
type Delegation struct {
	ProposerPubKey   BLSPubKey      `json:"proposer_pubkey"`
	DelegatePubKey   BLSPubKey      `json:"delegate_pubkey"`
	CommitterAddress common.Address `json:"committer_address"`
	Slot             uint64         `json:"slot"`
	Metadata         []byte         `json:"metadata"`
}

// SignedDelegation is a Delegation plus the signing envelope.
type SignedDelegation struct {
	Message   Delegation   `json:"message"`
	Nonce     uint64       `json:"nonce"`
	SigningID common.Hash  `json:"signing_id"`
	Signature BLSSignature `json:"signature"`
}

// Constraint is one element of a delegate's per-slot guarantee.
type Constraint struct {
	ConstraintType uint64 `json:"constraint_type"`
	Payload        []byte `json:"payload"`
}

// InclusionPayload is the ABI-decoded payload of an inclusion Constraint.
type InclusionPayload struct {
	Slot        uint64 `json:"slot"`
	SignedTxRLP []byte `json:"signed_tx_rlp"`
}

// ConstraintsMessage is the batch a delegate commits to at slot-minus-delta.
type ConstraintsMessage struct {
	ProposerPubKey BLSPubKey   `json:"proposer_pubkey"`
	DelegatePubKey BLSPubKey   `json:"delegate_pubkey"`
	Slot           uint64      `json:"slot"`
	Constraints    []Constraint `json:"constraints"`
	Receivers      []BLSPubKey `json:"receivers"`
}

// SignedConstraints is a ConstraintsMessage plus the signing envelope.
type SignedConstraints struct {
	Message   ConstraintsMessage `json:"message"`
	Nonce     uint64             `json:"nonce"`
	SigningID common.Hash        `json:"signing_id"`
	Signature BLSSignature       `json:"signature"`
}

// CommitmentRequest is the inbound request to the gateway's commitment RPC.
type CommitmentRequest struct {
	CommitmentType uint64         `json:"type"`
	Payload        []byte         `json:"payload"`
	Slasher        common.Address `json:"slasher"`
}

// Commitment is the user-facing object the gateway returns.
type Commitment struct {
	CommitmentType uint64         `json:"commitment_type"`
	Payload        []byte         `json:"payload"`
	RequestHash    common.Hash    `json:"request_hash"`
	Slasher        common.Address `json:"slasher"`
}

// SignedCommitment is a Commitment plus the signing envelope, signed by the
// committer address named in the governing delegation.
type SignedCommitment struct {
	Commitment Commitment     `json:"commitment"`
	Nonce      uint64         `json:"nonce"`
	SigningID  common.Hash    `json:"signing_id"`
	Signature  ECDSASignature `json:"signature"`
}

// InclusionProof is a Merkle-Patricia-trie inclusion witness for one
// transaction in a block body.
type InclusionProof struct {
	TxHash   common.Hash `json:"tx_hash"`
	TxIndex  uint64      `json:"tx_index"`
	Proof    [][]byte    `json:"proof"`
}

// ConstraintProofs carries one InclusionProof (RLP-encoded in Payloads) per
// constraint, in the same order as the stored constraints' types.
type ConstraintProofs struct {
	ConstraintTypes []uint64 `json:"constraint_types"`
	Payloads        [][]byte `json:"payloads"`
}

// LookaheadEntry maps a slot to the proposer BLS pubkey assigned to it.
type LookaheadEntry struct {
	Slot           uint64    `json:"slot"`
	ProposerPubKey BLSPubKey `json:"proposer_pubkey"`
}

// SubmitBlockRequest is the minimal block envelope the relay forwards
// downstream once proofs are stripped and verified.
type SubmitBlockRequest struct {
	Slot              uint64      `json:"slot"`
	TransactionsRoot  common.Hash `json:"transactions_root"`
	Transactions      [][]byte    `json:"transactions"`
}

// SubmitBlockRequestWithProofs is the wire body of POST blocks_with_proofs.
type SubmitBlockRequestWithProofs struct {
	Block  SubmitBlockRequest `json:"block"`
	Proofs ConstraintProofs   `json:"proofs"`
}
