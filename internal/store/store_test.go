package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_PutGetDelete(t *testing.T) {
	s := NewMemoryStore()

	key := SignedDelegationKey(5)
	_, err := s.Get(key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(key, []byte("hello")))
	v, err := s.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v)

	has, err := s.Has(key)
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.Delete(key))
	has, err = s.Has(key)
	require.NoError(t, err)
	require.False(t, has)
}

func TestMemoryStore_BatchAtomicity(t *testing.T) {
	s := NewMemoryStore()
	batch := s.NewBatch()
	batch.Put(SignedCommitmentKey([32]byte{1}), []byte("commitment"))
	batch.Put(RawConstraintKey(10, [32]byte{1}), []byte("constraint"))
	require.Equal(t, 2, batch.Len())
	require.NoError(t, batch.Write())

	_, err := s.Get(SignedCommitmentKey([32]byte{1}))
	require.NoError(t, err)
	_, err = s.Get(RawConstraintKey(10, [32]byte{1}))
	require.NoError(t, err)

	require.ErrorIs(t, batch.Write(), ErrBatchApplied)
}

func TestMemoryStore_ScanOrderedBySlot(t *testing.T) {
	s := NewMemoryStore()
	for _, slot := range []uint64{5, 1, 3} {
		require.NoError(t, s.Put(SignedDelegationKey(slot), []byte{byte(slot)}))
	}
	// A key of a different kind must never be returned by the scan.
	require.NoError(t, s.Put(SignedConstraintsKey(2), []byte("other-kind")))

	it, err := s.Scan(KindSignedDelegation, 0, 10)
	require.NoError(t, err)
	defer it.Release()

	var slots []byte
	for it.Next() {
		slots = append(slots, it.Value()[0])
	}
	require.Equal(t, []byte{1, 3, 5}, slots)
}

func TestMemoryStore_ScanRespectsSlotBounds(t *testing.T) {
	s := NewMemoryStore()
	for _, slot := range []uint64{1, 2, 3, 4, 5} {
		require.NoError(t, s.Put(SignedDelegationKey(slot), []byte{byte(slot)}))
	}

	it, err := s.Scan(KindSignedDelegation, 2, 4)
	require.NoError(t, err)
	defer it.Release()

	var slots []byte
	for it.Next() {
		slots = append(slots, it.Value()[0])
	}
	require.Equal(t, []byte{2, 3, 4}, slots)
}

func TestMemoryStore_Healthcheck(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Healthcheck())
}
