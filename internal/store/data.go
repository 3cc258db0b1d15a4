package store

import "encoding/binary"

// DataObject is the decoded, fixed-width prefix of a DATA payload:
// [hash:u64][next_hash_offset:u64][next_field_offset:u64][entry_offset:u64]
// [entry_array_offset:u64][n_entries:u64][payload_bytes...] (spec §6.1).
const dataFixedSize = 48

type DataObject struct {
	Offset           uint64
	Hash             uint64
	NextHashOffset   uint64
	NextFieldOffset  uint64
	EntryOffset      uint64
	EntryArrayOffset uint64
	NEntries         uint64
	Payload          []byte
}

// ReadData decodes the DATA object at offset, decompressing its payload if
// the object's flags indicate a codec.
func ReadData(f *File, offset uint64) (*DataObject, error) {
	oh, raw, err := f.MapObject(offset, ObjectData)
	if err != nil {
		return nil, err
	}
	d := &DataObject{
		Offset:           offset,
		Hash:             binary.LittleEndian.Uint64(raw[0:]),
		NextHashOffset:   binary.LittleEndian.Uint64(raw[8:]),
		NextFieldOffset:  binary.LittleEndian.Uint64(raw[16:]),
		EntryOffset:      binary.LittleEndian.Uint64(raw[24:]),
		EntryArrayOffset: binary.LittleEndian.Uint64(raw[32:]),
		NEntries:         binary.LittleEndian.Uint64(raw[40:]),
	}
	compressed := raw[dataFixedSize:]
	payload, err := Decompress(oh.Flags, compressed)
	if err != nil {
		return nil, err
	}
	d.Payload = payload
	return d, nil
}

// WriteData allocates and fills a new DATA object for payload, compressing
// it first when payload exceeds the file's compress threshold.
func WriteData(f *File, hash uint64, payload []byte) (uint64, error) {
	flags, stored, err := maybeCompress(f, payload)
	if err != nil {
		return 0, err
	}

	offset, err := f.Allocate(ObjectData, flags, dataFixedSize+uint64(len(stored)))
	if err != nil {
		return 0, err
	}

	data := f.arena()
	base := offset + ObjectHeaderSize
	binary.LittleEndian.PutUint64(data[base+0:], hash)
	binary.LittleEndian.PutUint64(data[base+8:], 0) // next_hash_offset, linked by caller
	binary.LittleEndian.PutUint64(data[base+16:], 0) // next_field_offset, linked by caller
	binary.LittleEndian.PutUint64(data[base+24:], 0) // entry_offset, set on first link
	binary.LittleEndian.PutUint64(data[base+32:], 0) // entry_array_offset, set on first link
	binary.LittleEndian.PutUint64(data[base+40:], 0) // n_entries
	copy(data[base+dataFixedSize:], stored)

	f.header.NData++
	return offset, nil
}

func (d *DataObject) SetNextHashOffset(f *File, v uint64) {
	data := f.arena()
	binary.LittleEndian.PutUint64(data[d.Offset+ObjectHeaderSize+8:], v)
}

func (d *DataObject) SetNextFieldOffset(f *File, v uint64) {
	data := f.arena()
	binary.LittleEndian.PutUint64(data[d.Offset+ObjectHeaderSize+16:], v)
}

func (d *DataObject) SetEntryArrayOffset(f *File, v uint64) {
	data := f.arena()
	binary.LittleEndian.PutUint64(data[d.Offset+ObjectHeaderSize+32:], v)
}

func (d *DataObject) IncrementNEntries(f *File) {
	data := f.arena()
	n := binary.LittleEndian.Uint64(data[d.Offset+ObjectHeaderSize+40:])
	binary.LittleEndian.PutUint64(data[d.Offset+ObjectHeaderSize+40:], n+1)
}
