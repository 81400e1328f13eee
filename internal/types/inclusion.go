package types

import (
	"encoding/binary"
	"errors"
)

// ErrMalformedInclusionPayload is returned when a commitment request's
// payload cannot be decoded as an ABI-encoded InclusionPayload.
var ErrMalformedInclusionPayload = errors.New("types: malformed inclusion payload")

// EncodeInclusionPayload ABI-encodes {slot uint64, signed_tx_rlp bytes} as
// the payload of an inclusion-type CommitmentRequest/Constraint (spec
// §3 "For inclusion: payload is an ABI-encoded InclusionPayload{slot,
// signed_tx_rlp}").
func EncodeInclusionPayload(p InclusionPayload) []byte {
	head := make([]byte, 64)
	binary.BigEndian.PutUint64(head[24:32], p.Slot)
	binary.BigEndian.PutUint64(head[56:64], 64) // offset to tail, one static word ahead

	tailLen := make([]byte, 32)
	binary.BigEndian.PutUint64(tailLen[24:32], uint64(len(p.SignedTxRLP)))

	out := append(head, tailLen...)
	out = append(out, rightPad32(p.SignedTxRLP)...)
	return out
}

// DecodeInclusionPayload reverses EncodeInclusionPayload.
func DecodeInclusionPayload(data []byte) (InclusionPayload, error) {
	if len(data) < 64 {
		return InclusionPayload{}, ErrMalformedInclusionPayload
	}
	slot := binary.BigEndian.Uint64(data[24:32])
	offset := binary.BigEndian.Uint64(data[56:64])

	if uint64(len(data)) < offset+32 {
		return InclusionPayload{}, ErrMalformedInclusionPayload
	}
	length := binary.BigEndian.Uint64(data[offset+24 : offset+32])
	start := offset + 32
	if uint64(len(data)) < start+length {
		return InclusionPayload{}, ErrMalformedInclusionPayload
	}
	txRLP := make([]byte, length)
	copy(txRLP, data[start:start+length])

	return InclusionPayload{Slot: slot, SignedTxRLP: txRLP}, nil
}

func rightPad32(b []byte) []byte {
	rem := len(b) % 32
	if rem == 0 {
		return append([]byte(nil), b...)
	}
	out := append([]byte(nil), b...)
	return append(out, make([]byte, 32-rem)...)
}
