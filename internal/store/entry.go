package store

import "encoding/binary"

// ENTRY payload: [seqnum:u64][realtime:u64][monotonic:u64][boot_id:16B]
// [xor_hash:u64][items: (object_offset, hash) * n] (spec §6.1). Item widths
// follow the file's compact flag, same as entry arrays.
const entryFixedSize = 56 // 8+8+8+16+8+8 (padding to keep items 8-aligned)

type EntryItem struct {
	DataOffset uint64
	DataHash   uint64
}

type EntryObject struct {
	Offset    uint64
	Seqnum    uint64
	Realtime  uint64
	Monotonic uint64
	BootID    [16]byte
	XorHash   uint64
	Items     []EntryItem
}

func ReadEntry(f *File, offset uint64, compact bool) (*EntryObject, error) {
	oh, raw, err := f.MapObject(offset, ObjectEntry)
	if err != nil {
		return nil, err
	}
	e := &EntryObject{
		Offset:    offset,
		Seqnum:    binary.LittleEndian.Uint64(raw[0:]),
		Realtime:  binary.LittleEndian.Uint64(raw[8:]),
		Monotonic: binary.LittleEndian.Uint64(raw[16:]),
		XorHash:   binary.LittleEndian.Uint64(raw[40:]),
	}
	copy(e.BootID[:], raw[24:40])

	w := itemWidth(compact)
	pairSize := 2 * w
	itemsBytes := oh.Size - ObjectHeaderSize - entryFixedSize
	n := itemsBytes / pairSize
	e.Items = make([]EntryItem, 0, n)
	for i := uint64(0); i < n; i++ {
		base := entryFixedSize + i*pairSize
		var offsetVal, hashVal uint64
		if compact {
			offsetVal = uint64(binary.LittleEndian.Uint32(raw[base:]))
			hashVal = uint64(binary.LittleEndian.Uint32(raw[base+w:]))
		} else {
			offsetVal = binary.LittleEndian.Uint64(raw[base:])
			hashVal = binary.LittleEndian.Uint64(raw[base+w:])
		}
		e.Items = append(e.Items, EntryItem{DataOffset: offsetVal, DataHash: hashVal})
	}
	return e, nil
}

// WriteEntry allocates and fills a new ENTRY object.
func WriteEntry(f *File, compact bool, seqnum, realtime, monotonic uint64, bootID [16]byte, xorHash uint64, items []EntryItem) (uint64, error) {
	w := itemWidth(compact)
	pairSize := 2 * w
	payloadSize := entryFixedSize + uint64(len(items))*pairSize

	offset, err := f.Allocate(ObjectEntry, 0, payloadSize)
	if err != nil {
		return 0, err
	}

	data := f.arena()
	base := offset + ObjectHeaderSize
	binary.LittleEndian.PutUint64(data[base+0:], seqnum)
	binary.LittleEndian.PutUint64(data[base+8:], realtime)
	binary.LittleEndian.PutUint64(data[base+16:], monotonic)
	copy(data[base+24:base+40], bootID[:])
	binary.LittleEndian.PutUint64(data[base+40:], xorHash)

	for i, item := range items {
		itemBase := base + entryFixedSize + uint64(i)*pairSize
		if compact {
			binary.LittleEndian.PutUint32(data[itemBase:], uint32(item.DataOffset))
			binary.LittleEndian.PutUint32(data[itemBase+w:], uint32(item.DataHash))
		} else {
			binary.LittleEndian.PutUint64(data[itemBase:], item.DataOffset)
			binary.LittleEndian.PutUint64(data[itemBase+w:], item.DataHash)
		}
	}

	return offset, nil
}

// XorHash computes the XOR of a set of DATA hashes, used by ENTRY objects so
// a reader can detect tampering with the set of referenced DATA cells
// without re-reading each one.
func XorHash(hashes []uint64) uint64 {
	var x uint64
	for _, h := range hashes {
		x ^= h
	}
	return x
}
