package append

import (
	"github.com/scttfrdmn/logarc/internal/store"
)

// defaultHashTableBuckets sizes a file's DATA/FIELD hash tables the first
// time anything is interned into them. Not part of the wire format (spec
// §9); chosen so that a 250k-entry file stays under HashTableLoadFactor with
// typical field cardinality.
const defaultHashTableBuckets = 4096

// internData returns the offset and hash of the DATA object for payload
// (key=value), creating it — and its FIELD, if key hasn't been seen before
// — on first sight.
func internData(f *store.File, key string, payload []byte) (offset uint64, hash uint64, err error) {
	h := f.Header()

	dataTable, err := ensureHashTable(f, &h.DataHashTableOffset, &h.DataHashTableSize, store.ObjectDataHashTable)
	if err != nil {
		return 0, 0, err
	}

	hash = hashKeyedFor(f, payload)

	nextOffset := func(o uint64) uint64 {
		d, rerr := store.ReadData(f, o)
		if rerr != nil {
			return 0
		}
		return d.NextHashOffset
	}
	match := func(o uint64) bool {
		d, rerr := store.ReadData(f, o)
		return rerr == nil && string(d.Payload) == string(payload)
	}

	if existing, found := dataTable.Lookup(hash, nextOffset, match); found {
		return existing, hash, nil
	}

	fieldObj, ferr := internField(f, key)
	if ferr != nil {
		return 0, 0, ferr
	}

	newOffset, werr := store.WriteData(f, hash, payload)
	if werr != nil {
		return 0, 0, werr
	}
	d, rerr := store.ReadData(f, newOffset)
	if rerr != nil {
		return 0, 0, rerr
	}

	previousHashHead := dataTable.Insert(hash, newOffset)
	d.SetNextHashOffset(f, previousHashHead)

	previousFieldHead := fieldObj.PrependDataChain(f, newOffset)
	d.SetNextFieldOffset(f, previousFieldHead)

	return newOffset, hash, nil
}

// internField returns the FIELD object for key, creating it and its hash
// table entry on first sight.
func internField(f *store.File, key string) (*store.FieldObject, error) {
	h := f.Header()

	fieldTable, err := ensureHashTable(f, &h.FieldHashTableOffset, &h.FieldHashTableSize, store.ObjectFieldHashTable)
	if err != nil {
		return nil, err
	}

	keyBytes := []byte(key)
	hash := hashKeyedFor(f, keyBytes)

	nextOffset := func(o uint64) uint64 {
		ff, rerr := store.ReadField(f, o)
		if rerr != nil {
			return 0
		}
		return ff.NextHashOffset
	}
	match := func(o uint64) bool {
		ff, rerr := store.ReadField(f, o)
		return rerr == nil && string(ff.Key) == key
	}

	if existing, found := fieldTable.Lookup(hash, nextOffset, match); found {
		return store.ReadField(f, existing)
	}

	newOffset, err := store.WriteField(f, hash, keyBytes)
	if err != nil {
		return nil, err
	}
	fieldObj, err := store.ReadField(f, newOffset)
	if err != nil {
		return nil, err
	}

	previousHead := fieldTable.Insert(hash, newOffset)
	fieldObj.SetNextHashOffset(f, previousHead)

	return fieldObj, nil
}

// ensureHashTable lazily allocates a hash table the first time it's needed,
// persisting its offset/size into the header fields the caller points at.
func ensureHashTable(f *store.File, offsetField, sizeField *uint64, typ store.ObjectType) (*store.HashTable, error) {
	if *offsetField == 0 {
		ht, err := store.NewHashTable(f, typ, defaultHashTableBuckets)
		if err != nil {
			return nil, err
		}
		*offsetField = ht.Offset()
		*sizeField = ht.Capacity() * 8
		return ht, nil
	}
	return store.OpenHashTable(f, *offsetField, typ)
}

// hashKeyedFor exposes store's file-keyed SipHash through the append
// package's call sites without re-deriving the key material here; the hash
// function itself is part of the on-disk format (spec §6.1, §9) and lives in
// internal/store so every reader/writer shares one implementation.
func hashKeyedFor(f *store.File, payload []byte) uint64 {
	return store.HashPayload(f.Header().FileID, payload)
}
