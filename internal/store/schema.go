// Package store implements the slot-keyed persistent key-value store
// shared by all three services (spec §4.1): a single ordered keyspace
// partitioned by one-byte entity-kind prefixes so that a forward range
// scan over kind||slot_be yields rows grouped by kind and sorted by slot.
// Adapted from the teacher's core/rawdb schema + key_value_store design.
package store

import "encoding/binary"

// Kind is the one-byte entity-kind prefix partitioning the keyspace.
type Kind byte

const (
	KindSignedDelegation  Kind = 'A' // A || slot
	KindSignedConstraints Kind = 'B' // B || slot
	KindRawConstraint     Kind = 'C' // C || slot || request_hash(32B)
	KindSignedCommitment  Kind = 'D' // D || request_hash(32B)
	KindProposerLookahead Kind = 'E' // E || slot
	KindFinalizationFlag  Kind = 'F' // F || slot
)

// healthCheckKey is a reserved key round-tripped at store-open time.
var healthCheckKey = []byte{0, 'h', 'e', 'a', 'l', 't', 'h'}

func encodeSlot(slot uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, slot)
	return b
}

func decodeSlot(b []byte) uint64 {
	return binary.BigEndian.Uint64(b)
}

// SignedDelegationKey builds the key for a signed delegation at slot.
func SignedDelegationKey(slot uint64) []byte {
	return append([]byte{byte(KindSignedDelegation)}, encodeSlot(slot)...)
}

// SignedConstraintsKey builds the key for a signed constraints message at slot.
func SignedConstraintsKey(slot uint64) []byte {
	return append([]byte{byte(KindSignedConstraints)}, encodeSlot(slot)...)
}

// RawConstraintKey builds the key for a raw constraint paired with one
// commitment request at slot, keyed by request hash.
func RawConstraintKey(slot uint64, requestHash [32]byte) []byte {
	k := append([]byte{byte(KindRawConstraint)}, encodeSlot(slot)...)
	return append(k, requestHash[:]...)
}

// SignedCommitmentKey builds the key for a signed commitment by request hash.
func SignedCommitmentKey(requestHash [32]byte) []byte {
	return append([]byte{byte(KindSignedCommitment)}, requestHash[:]...)
}

// ProposerLookaheadKey builds the key for a lookahead entry at slot.
func ProposerLookaheadKey(slot uint64) []byte {
	return append([]byte{byte(KindProposerLookahead)}, encodeSlot(slot)...)
}

// FinalizationFlagKey builds the key for a slot's finalization flag.
func FinalizationFlagKey(slot uint64) []byte {
	return append([]byte{byte(KindFinalizationFlag)}, encodeSlot(slot)...)
}

// slotRangeKeys returns the inclusive-low/exclusive-high byte bounds for a
// forward scan over kind in [slotLo, slotHi].
func slotRangeKeys(kind Kind, slotLo, slotHi uint64) (lo, hi []byte) {
	lo = append([]byte{byte(kind)}, encodeSlot(slotLo)...)
	hi = append([]byte{byte(kind)}, encodeSlot(slotHi)...)
	// hi must be exclusive for range scans that operate on half-open
	// intervals; callers needing the slot itself included (the common
	// case here) pass slotHi+1 or rely on keyInRange below, which checks
	// the slot value directly rather than pure byte-range termination.
	return lo, hi
}

// keyInRange reports whether key belongs to kind and falls within
// [slotLo, slotHi]; used by scan implementations to terminate iteration at
// the first key whose kind byte differs or whose slot exceeds slotHi.
func keyInRange(key []byte, kind Kind, slotLo, slotHi uint64) bool {
	if len(key) < 9 || Kind(key[0]) != kind {
		return false
	}
	slot := decodeSlot(key[1:9])
	return slot >= slotLo && slot <= slotHi
}
