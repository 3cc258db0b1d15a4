package store

import (
	"encoding/binary"

	"github.com/dchest/siphash"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

// HashTableLoadFactor is the fraction of filled buckets at which the engine
// suggests rotation rather than continuing to degrade chain length. Not part
// of the on-disk format (spec §9 Open Questions); 0.75 matches common
// open-addressing guidance and keeps chain walks short without wasting more
// than a quarter of the table on headroom.
const HashTableLoadFactor = 0.75

// hashKeyed computes SipHash-2-4 of payload keyed by the file's FileID, the
// mandatory hash function for DATA_HASH_TABLE / FIELD_HASH_TABLE buckets and
// for DATA object hash fields (spec §6.1, §9).
func hashKeyed(fileID [16]byte, payload []byte) uint64 {
	k0 := binary.LittleEndian.Uint64(fileID[0:8])
	k1 := binary.LittleEndian.Uint64(fileID[8:16])
	return siphash.Hash(k0, k1, payload)
}

// HashPayload is the exported form of hashKeyed, used by internal/append to
// compute the same file-keyed hash that the hash tables index by.
func HashPayload(fileID [16]byte, payload []byte) uint64 {
	return hashKeyed(fileID, payload)
}

// HashTable is a fixed-capacity array of bucket-head offsets. Each bucket
// holds the offset of the first DATA or FIELD object hashing to it; objects
// within a bucket are chained via their own next_hash_offset field.
type HashTable struct {
	f        *File
	offset   uint64
	capacity uint64
}

func bucketCount(sizeBytes uint64) uint64 {
	return sizeBytes / 8
}

// NewHashTable allocates a fresh hash table object with nBuckets zeroed
// bucket-head slots.
func NewHashTable(f *File, typ ObjectType, nBuckets uint64) (*HashTable, error) {
	if typ != ObjectDataHashTable && typ != ObjectFieldHashTable {
		return nil, logerrors.NewError(logerrors.ErrCodeInvalidArgument, "not a hash table object type").
			WithComponent("store").WithOperation("NewHashTable")
	}
	payloadSize := nBuckets * 8
	offset, err := f.Allocate(typ, 0, payloadSize)
	if err != nil {
		return nil, err
	}
	return &HashTable{f: f, offset: offset, capacity: nBuckets}, nil
}

// OpenHashTable maps an existing hash table object.
func OpenHashTable(f *File, offset uint64, typ ObjectType) (*HashTable, error) {
	_, payload, err := f.MapObject(offset, typ)
	if err != nil {
		return nil, err
	}
	return &HashTable{f: f, offset: offset, capacity: bucketCount(uint64(len(payload)))}, nil
}

func (h *HashTable) bucketFor(hash uint64) uint64 {
	return hash % h.capacity
}

func (h *HashTable) bucketHead(bucket uint64) uint64 {
	_, payload, err := h.f.MapObject(h.offset, ObjectUnused)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(payload[bucket*8:])
}

func (h *HashTable) setBucketHead(bucket uint64, newHead uint64) {
	data := h.f.arena()
	binary.LittleEndian.PutUint64(data[h.offset+ObjectHeaderSize+bucket*8:], newHead)
}

// Lookup walks the chain at hash's bucket, calling match(offset) for each
// linked object until it returns true, and returns that object's offset (or
// 0, false if the chain is exhausted). nextOffset reads an object's
// next_hash_offset field, which differs between DATA and FIELD payload
// layouts, so the caller supplies it.
func (h *HashTable) Lookup(hash uint64, nextOffset func(objOffset uint64) uint64, match func(objOffset uint64) bool) (uint64, bool) {
	bucket := h.bucketFor(hash)
	offset := h.bucketHead(bucket)
	for offset != 0 {
		if match(offset) {
			return offset, true
		}
		offset = nextOffset(offset)
	}
	return 0, false
}

// Insert prepends newObjOffset to hash's bucket chain, returning the previous
// head so the caller can store it as newObjOffset's next_hash_offset.
func (h *HashTable) Insert(hash uint64, newObjOffset uint64) (previousHead uint64) {
	bucket := h.bucketFor(hash)
	previousHead = h.bucketHead(bucket)
	h.setBucketHead(bucket, newObjOffset)
	return previousHead
}

// LoadFactor reports the fraction of buckets currently non-empty, used by
// internal/rotate's space accounting to decide when a file's hash tables
// have become too crowded and rotation is advisable (spec §9).
func (h *HashTable) LoadFactor() float64 {
	_, payload, err := h.f.MapObject(h.offset, ObjectUnused)
	if err != nil {
		return 0
	}
	filled := 0
	for b := uint64(0); b < h.capacity; b++ {
		if binary.LittleEndian.Uint64(payload[b*8:]) != 0 {
			filled++
		}
	}
	return float64(filled) / float64(h.capacity)
}

func (h *HashTable) Offset() uint64   { return h.offset }
func (h *HashTable) Capacity() uint64 { return h.capacity }
