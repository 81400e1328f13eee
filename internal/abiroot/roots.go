package abiroot

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/eth-fabric/fabric/internal/types"
)

func addressValue(a common.Address) AddressValue {
	var v AddressValue
	copy(v[:], a[:])
	return v
}

func hashValue(h common.Hash) Bytes32Value {
	var v Bytes32Value
	copy(v[:], h[:])
	return v
}

// commitmentRequestTuple builds the {type, payload, slasher} ABI tuple
// hashed by CommitmentRequestSigningRoot. CommitmentSigningRoot builds its
// own four-field tuple, with request_hash between payload and slasher.
func commitmentRequestTuple(req types.CommitmentRequest) Value {
	return TupleValue{Fields: []Value{
		Uint256Value(req.CommitmentType),
		BytesValue(req.Payload),
		addressValue(req.Slasher),
	}}
}

// CommitmentRequestSigningRoot computes the signing root of a
// CommitmentRequest: keccak256(abi.encode({type, payload, slasher})). This
// is also the value stored as Commitment.RequestHash.
func CommitmentRequestSigningRoot(req types.CommitmentRequest) common.Hash {
	enc := Encode(commitmentRequestTuple(req))
	return crypto.Keccak256Hash(enc)
}

// CommitmentSigningRoot computes the signing root of a Commitment:
// keccak256(abi.encode(3, {type, payload, request_hash, slasher})).
func CommitmentSigningRoot(c types.Commitment) common.Hash {
	tuple := TupleValue{Fields: []Value{
		Uint256Value(c.CommitmentType),
		BytesValue(c.Payload),
		hashValue(c.RequestHash),
		addressValue(c.Slasher),
	}}
	enc := Encode(MessageTypeCommitment.Uint256(), tuple)
	return crypto.Keccak256Hash(enc)
}

// DelegationSigningRoot computes the signing root of a Delegation:
// keccak256(abi.encode(2, {proposer_g1, delegate_g1, committer, slot,
// metadata})). BLS pubkeys are decompressed into affine G1Point form per
// spec §4.3.
func DelegationSigningRoot(d types.Delegation) (common.Hash, error) {
	proposerG1, err := ConvertPubKeyToG1Point(d.ProposerPubKey)
	if err != nil {
		return common.Hash{}, err
	}
	delegateG1, err := ConvertPubKeyToG1Point(d.DelegatePubKey)
	if err != nil {
		return common.Hash{}, err
	}

	tuple := TupleValue{Fields: []Value{
		proposerG1.ToValue(),
		delegateG1.ToValue(),
		addressValue(d.CommitterAddress),
		Uint256Value(d.Slot),
		BytesValue(d.Metadata),
	}}
	enc := Encode(MessageTypeDelegation.Uint256(), tuple)
	return crypto.Keccak256Hash(enc), nil
}

func constraintValue(c types.Constraint) Value {
	return TupleValue{Fields: []Value{
		Uint256Value(c.ConstraintType),
		BytesValue(c.Payload),
	}}
}

// ConstraintsMessageSigningRoot computes the signing root of a
// ConstraintsMessage: keccak256(abi.encode(4, {proposer_g1, delegate_g1,
// slot, constraints[], receivers_g1[]})).
func ConstraintsMessageSigningRoot(m types.ConstraintsMessage) (common.Hash, error) {
	proposerG1, err := ConvertPubKeyToG1Point(m.ProposerPubKey)
	if err != nil {
		return common.Hash{}, err
	}
	delegateG1, err := ConvertPubKeyToG1Point(m.DelegatePubKey)
	if err != nil {
		return common.Hash{}, err
	}

	constraintValues := make([]Value, len(m.Constraints))
	for i, c := range m.Constraints {
		constraintValues[i] = constraintValue(c)
	}

	receiverValues := make([]Value, len(m.Receivers))
	for i, r := range m.Receivers {
		g1, err := ConvertPubKeyToG1Point(r)
		if err != nil {
			return common.Hash{}, err
		}
		receiverValues[i] = g1.ToValue()
	}

	tuple := TupleValue{Fields: []Value{
		proposerG1.ToValue(),
		delegateG1.ToValue(),
		Uint256Value(m.Slot),
		ArrayValue{Elements: constraintValues},
		ArrayValue{Elements: receiverValues},
	}}
	enc := Encode(MessageTypeConstraints.Uint256(), tuple)
	return crypto.Keccak256Hash(enc), nil
}

// RegistrationSigningRoot computes the signing root of a registration
// statement: keccak256(abi.encode({owner})). The reference table lists
// this both as "no tag; bare struct" and as abi.encode(tag=1, {owner}) in
// the same row; original_source/crates/urc/src/utils.rs's
// get_registration_signing_root is the tie-breaker and omits the tag, so
// this implementation follows the bare-struct reading (see DESIGN.md).
func RegistrationSigningRoot(owner common.Address) common.Hash {
	tuple := TupleValue{Fields: []Value{addressValue(owner)}}
	enc := Encode(tuple)
	return crypto.Keccak256Hash(enc)
}
