package store

import "encoding/binary"

// FieldObject is the decoded FIELD payload:
// [hash:u64][next_hash_offset:u64][head_data_offset:u64][key_bytes...].
// A FIELD holds the key half of a key=value pair (e.g. "PRIORITY") and the
// head of the chain of every DATA object sharing that key (spec §3.2).
const fieldFixedSize = 24

type FieldObject struct {
	Offset         uint64
	Hash           uint64
	NextHashOffset uint64
	HeadDataOffset uint64
	Key            []byte
}

func ReadField(f *File, offset uint64) (*FieldObject, error) {
	_, raw, err := f.MapObject(offset, ObjectField)
	if err != nil {
		return nil, err
	}
	return &FieldObject{
		Offset:         offset,
		Hash:           binary.LittleEndian.Uint64(raw[0:]),
		NextHashOffset: binary.LittleEndian.Uint64(raw[8:]),
		HeadDataOffset: binary.LittleEndian.Uint64(raw[16:]),
		Key:            append([]byte(nil), raw[fieldFixedSize:]...),
	}, nil
}

func WriteField(f *File, hash uint64, key []byte) (uint64, error) {
	offset, err := f.Allocate(ObjectField, 0, fieldFixedSize+uint64(len(key)))
	if err != nil {
		return 0, err
	}
	data := f.arena()
	base := offset + ObjectHeaderSize
	binary.LittleEndian.PutUint64(data[base+0:], hash)
	binary.LittleEndian.PutUint64(data[base+8:], 0)
	binary.LittleEndian.PutUint64(data[base+16:], 0)
	copy(data[base+fieldFixedSize:], key)

	f.header.NFields++
	return offset, nil
}

func (ff *FieldObject) SetNextHashOffset(f *File, v uint64) {
	data := f.arena()
	binary.LittleEndian.PutUint64(data[ff.Offset+ObjectHeaderSize+8:], v)
}

func (ff *FieldObject) SetHeadDataOffset(f *File, v uint64) {
	data := f.arena()
	binary.LittleEndian.PutUint64(data[ff.Offset+ObjectHeaderSize+16:], v)
}

// PrependDataChain links newDataOffset to the front of this field's
// per-field DATA chain, returning what was the previous head so the caller
// can store it as the new DATA object's next_field_offset.
func (ff *FieldObject) PrependDataChain(f *File, newDataOffset uint64) (previousHead uint64) {
	previousHead = ff.HeadDataOffset
	ff.SetHeadDataOffset(f, newDataOffset)
	ff.HeadDataOffset = newDataOffset
	return previousHead
}
