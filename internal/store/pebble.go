package store

import (
	"github.com/cockroachdb/pebble"
)

// PebbleStore is the production KVStore backend: an ordered LSM engine
// with native prefix/range iteration, matching spec §4.1's requirement of
// O(log n + k) range reads (promoted from the teacher's indirect
// go-ethereum dependency on cockroachdb/pebble; see DESIGN.md).
type PebbleStore struct {
	db *pebble.DB
}

// OpenPebbleStore opens (creating if absent) a pebble database at dir.
func OpenPebbleStore(dir string) (*PebbleStore, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleStore{db: db}, nil
}

func (s *PebbleStore) Get(key []byte) ([]byte, error) {
	v, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, closer.Close()
}

func (s *PebbleStore) Put(key, value []byte) error {
	return s.db.Set(key, value, pebble.Sync)
}

func (s *PebbleStore) Delete(key []byte) error {
	return s.db.Delete(key, pebble.Sync)
}

func (s *PebbleStore) Has(key []byte) (bool, error) {
	_, closer, err := s.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, closer.Close()
}

func (s *PebbleStore) NewBatch() WriteBatch {
	return &pebbleBatch{batch: s.db.NewBatch()}
}

type pebbleBatch struct {
	batch   *pebble.Batch
	count   int
	written bool
}

func (b *pebbleBatch) Put(key, value []byte) {
	_ = b.batch.Set(key, value, nil)
	b.count++
}

func (b *pebbleBatch) Delete(key []byte) {
	_ = b.batch.Delete(key, nil)
	b.count++
}

func (b *pebbleBatch) Len() int { return b.count }

func (b *pebbleBatch) Write() error {
	if b.written {
		return ErrBatchApplied
	}
	b.written = true
	return b.batch.Commit(pebble.Sync)
}

func (s *PebbleStore) Scan(kind Kind, slotLo, slotHi uint64) (Iterator, error) {
	lo, _ := slotRangeKeys(kind, slotLo, 0)
	// Upper bound is exclusive in pebble; scan one kind byte past slotHi's
	// prefix so every key with this kind byte is visible to the range,
	// then keyInRange trims to the exact [slotLo, slotHi] slot window.
	hi := []byte{byte(kind) + 1}

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lo, UpperBound: hi})
	if err != nil {
		return nil, err
	}
	return &pebbleIterator{iter: iter, kind: kind, slotLo: slotLo, slotHi: slotHi, started: false}, nil
}

type pebbleIterator struct {
	iter    *pebble.Iterator
	kind    Kind
	slotLo  uint64
	slotHi  uint64
	started bool
}

func (it *pebbleIterator) Next() bool {
	var valid bool
	if !it.started {
		it.started = true
		valid = it.iter.First()
	} else {
		valid = it.iter.Next()
	}
	for valid {
		if keyInRange(it.iter.Key(), it.kind, it.slotLo, it.slotHi) {
			return true
		}
		key := it.iter.Key()
		if Kind(key[0]) != it.kind || (len(key) >= 9 && decodeSlot(key[1:9]) > it.slotHi) {
			return false
		}
		valid = it.iter.Next()
	}
	return false
}

func (it *pebbleIterator) Key() []byte {
	out := make([]byte, len(it.iter.Key()))
	copy(out, it.iter.Key())
	return out
}

func (it *pebbleIterator) Value() []byte {
	out := make([]byte, len(it.iter.Value()))
	copy(out, it.iter.Value())
	return out
}

func (it *pebbleIterator) Release() {
	_ = it.iter.Close()
}

func (s *PebbleStore) Healthcheck() error {
	if err := s.Put(healthCheckKey, []byte{1}); err != nil {
		return err
	}
	v, err := s.Get(healthCheckKey)
	if err != nil {
		return err
	}
	if len(v) != 1 || v[0] != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PebbleStore) Close() error {
	return s.db.Close()
}

var _ KVStore = (*PebbleStore)(nil)
