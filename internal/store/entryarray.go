package store

import "encoding/binary"

// Entry arrays are chunked singly-linked lists of 64-bit (or, under the
// compact flag, 32-bit) offsets. Chunk capacities grow geometrically so a
// long array amortizes to O(log N) chunk hops for bisection (spec §3.2,
// §4.4).
const (
	firstChunkItems = 4
	maxChunkItems   = 16384
)

// itemWidth returns the on-disk width of one entry-array/ENTRY item list
// slot: 4 bytes under the compact incompatible flag, 8 otherwise.
func itemWidth(compact bool) uint64 {
	if compact {
		return 4
	}
	return 8
}

// EntryArray is a handle to one chunk of a chunked entry-array linked list.
type EntryArray struct {
	f        *File
	offset   uint64
	compact  bool
	capacity uint64 // item slots in this chunk
}

// entryArrayPayloadSize returns the on-disk payload size, in bytes, of a
// chunk holding nItems items: an 8-byte next-chunk offset followed by the
// item slots.
func entryArrayPayloadSize(nItems uint64, compact bool) uint64 {
	return 8 + nItems*itemWidth(compact)
}

// NewEntryArrayChunk allocates a fresh, empty chunk able to hold nItems
// items.
func NewEntryArrayChunk(f *File, nItems uint64, compact bool) (*EntryArray, error) {
	offset, err := f.Allocate(ObjectEntryArray, 0, entryArrayPayloadSize(nItems, compact))
	if err != nil {
		return nil, err
	}
	return &EntryArray{f: f, offset: offset, compact: compact, capacity: nItems}, nil
}

// OpenEntryArrayChunk maps an existing chunk.
func OpenEntryArrayChunk(f *File, offset uint64, compact bool) (*EntryArray, error) {
	_, payload, err := f.MapObject(offset, ObjectEntryArray)
	if err != nil {
		return nil, err
	}
	capacity := (uint64(len(payload)) - 8) / itemWidth(compact)
	return &EntryArray{f: f, offset: offset, compact: compact, capacity: capacity}, nil
}

func (a *EntryArray) NextChunkOffset() uint64 {
	_, payload, err := a.f.MapObject(a.offset, ObjectEntryArray)
	if err != nil {
		return 0
	}
	return binary.LittleEndian.Uint64(payload[0:])
}

func (a *EntryArray) setNextChunkOffset(next uint64) {
	data := a.f.arena()
	binary.LittleEndian.PutUint64(data[a.offset+ObjectHeaderSize:], next)
}

func (a *EntryArray) Capacity() uint64 { return a.capacity }
func (a *EntryArray) Offset() uint64   { return a.offset }

// Get returns the i-th item offset in this chunk (0-indexed, i < Capacity).
func (a *EntryArray) Get(i uint64) uint64 {
	_, payload, err := a.f.MapObject(a.offset, ObjectEntryArray)
	if err != nil {
		return 0
	}
	w := itemWidth(a.compact)
	base := 8 + i*w
	if a.compact {
		return uint64(binary.LittleEndian.Uint32(payload[base:]))
	}
	return binary.LittleEndian.Uint64(payload[base:])
}

// Set writes the i-th item offset in this chunk.
func (a *EntryArray) Set(i uint64, value uint64) {
	data := a.f.arena()
	w := itemWidth(a.compact)
	base := a.offset + ObjectHeaderSize + 8 + i*w
	if a.compact {
		binary.LittleEndian.PutUint32(data[base:], uint32(value))
		return
	}
	binary.LittleEndian.PutUint64(data[base:], value)
}

// nextChunkSize computes the geometric growth of the next chunk given the
// current chunk's item capacity, capped at maxChunkItems.
func nextChunkSize(currentCapacity uint64) uint64 {
	next := currentCapacity * 2
	if next < firstChunkItems {
		next = firstChunkItems
	}
	if next > maxChunkItems {
		next = maxChunkItems
	}
	return next
}

// AppendArrayChain appends value to the tail of the chain starting at
// headOffset (0 meaning empty), growing a new chunk when the current tail is
// full. It returns the (possibly unchanged) head offset and the offset of
// the chunk the item landed in, needed by chain-cache callers that want to
// anchor a subsequent sequential append.
func AppendArrayChain(f *File, compact bool, headOffset uint64, value uint64) (newHead uint64, tailChunkOffset uint64, err error) {
	if headOffset == 0 {
		chunk, cerr := NewEntryArrayChunk(f, firstChunkItems, compact)
		if cerr != nil {
			return 0, 0, cerr
		}
		chunk.Set(0, value)
		return chunk.offset, chunk.offset, nil
	}

	// Walk to the last chunk, tracking slot usage via a zero sentinel: the
	// first zero-valued slot (value 0 is never a valid object offset — offset
	// 0 falls inside the header) marks the next free slot.
	chunk, operr := OpenEntryArrayChunk(f, headOffset, compact)
	if operr != nil {
		return 0, 0, operr
	}
	for {
		next := chunk.NextChunkOffset()
		if next == 0 {
			break
		}
		chunk, operr = OpenEntryArrayChunk(f, next, compact)
		if operr != nil {
			return 0, 0, operr
		}
	}

	slot, full := firstFreeSlot(chunk)
	if !full {
		chunk.Set(slot, value)
		return headOffset, chunk.offset, nil
	}

	newChunk, cerr := NewEntryArrayChunk(f, nextChunkSize(chunk.capacity), compact)
	if cerr != nil {
		return 0, 0, cerr
	}
	chunk.setNextChunkOffset(newChunk.offset)
	newChunk.Set(0, value)
	return headOffset, newChunk.offset, nil
}

func firstFreeSlot(a *EntryArray) (uint64, bool) {
	for i := uint64(0); i < a.capacity; i++ {
		if a.Get(i) == 0 {
			return i, false
		}
	}
	return 0, true
}
