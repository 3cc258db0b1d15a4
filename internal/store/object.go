package store

import (
	"encoding/binary"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

// ObjectType is the 1-byte tag every arena object begins with (spec §3.2).
type ObjectType uint8

const (
	ObjectUnused ObjectType = iota
	ObjectData
	ObjectField
	ObjectEntry
	ObjectDataHashTable
	ObjectFieldHashTable
	ObjectEntryArray
	ObjectTag
	objectTypeMax
)

func (t ObjectType) String() string {
	switch t {
	case ObjectUnused:
		return "UNUSED"
	case ObjectData:
		return "DATA"
	case ObjectField:
		return "FIELD"
	case ObjectEntry:
		return "ENTRY"
	case ObjectDataHashTable:
		return "DATA_HASH_TABLE"
	case ObjectFieldHashTable:
		return "FIELD_HASH_TABLE"
	case ObjectEntryArray:
		return "ENTRY_ARRAY"
	case ObjectTag:
		return "TAG"
	default:
		return "INVALID"
	}
}

// Object flags (the flags byte of ObjectHeader). Only DATA objects use the
// compression bits; they mirror the incompatible-flags codec bits but live
// per-object since compression is a per-payload decision.
const (
	ObjectFlagCompressedLZ4  uint8 = 1 << 0
	ObjectFlagCompressedZSTD uint8 = 1 << 1
	ObjectFlagCompressedXZ   uint8 = 1 << 2

	objectCompressedMask = ObjectFlagCompressedLZ4 | ObjectFlagCompressedZSTD | ObjectFlagCompressedXZ
)

// ObjectHeaderSize is the fixed 16-byte prefix of every arena object:
// [type:u8][flags:u8][reserved:6][size:u64].
const ObjectHeaderSize = 16

// ObjectHeader is the common prefix decoded from every arena object.
type ObjectHeader struct {
	Type  ObjectType
	Flags uint8
	// Size is the object size including ObjectHeaderSize. It excludes the
	// zero padding that follows the object up to the next 8-byte boundary.
	Size uint64
}

func decodeObjectHeader(data []byte, offset uint64) (ObjectHeader, error) {
	if offset%8 != 0 {
		return ObjectHeader{}, logerrors.NewError(logerrors.ErrCodeCorrupted, "unaligned object offset").
			WithComponent("store").WithOperation("decodeObjectHeader").
			WithDetail("offset", offset)
	}
	if uint64(len(data))-offset < ObjectHeaderSize {
		return ObjectHeader{}, logerrors.NewError(logerrors.ErrCodeCorrupted, "object header runs past end of arena").
			WithComponent("store").WithOperation("decodeObjectHeader").
			WithDetail("offset", offset)
	}
	oh := ObjectHeader{
		Type:  ObjectType(data[offset]),
		Flags: data[offset+1],
		Size:  binary.LittleEndian.Uint64(data[offset+8:]),
	}
	if oh.Type >= objectTypeMax {
		return ObjectHeader{}, logerrors.NewError(logerrors.ErrCodeCorrupted, "invalid object type tag").
			WithComponent("store").WithOperation("decodeObjectHeader").
			WithDetail("offset", offset).WithDetail("type", uint8(oh.Type))
	}
	return oh, nil
}

func encodeObjectHeader(buf []byte, typ ObjectType, flags uint8, size uint64) {
	buf[0] = byte(typ)
	buf[1] = flags
	binary.LittleEndian.PutUint64(buf[8:], size)
}

// alignUp8 rounds n up to the next multiple of 8.
func alignUp8(n uint64) uint64 {
	return (n + 7) &^ 7
}

// MapObject bounds-checks offset+size against the arena and validates the
// type tag, returning the object's decoded header and the byte range of its
// payload (everything after ObjectHeaderSize). The returned slice aliases the
// mapped window; callers must not retain it past the borrow (spec §4.1).
func (f *File) MapObject(offset uint64, expected ObjectType) (ObjectHeader, []byte, error) {
	data := f.arena()

	if offset >= uint64(len(data)) {
		return ObjectHeader{}, nil, logerrors.NewError(logerrors.ErrCodeCorrupted, "object offset outside arena").
			WithComponent("store").WithOperation("MapObject").WithFileID(f.IDString()).
			WithDetail("offset", offset).WithDetail("arena_size", len(data))
	}

	oh, err := decodeObjectHeader(data, offset)
	if err != nil {
		return ObjectHeader{}, nil, err
	}
	if expected != ObjectUnused && oh.Type != expected {
		return ObjectHeader{}, nil, logerrors.NewError(logerrors.ErrCodeCorrupted, "object type mismatch").
			WithComponent("store").WithOperation("MapObject").WithFileID(f.IDString()).
			WithDetail("offset", offset).
			WithDetail("want", expected.String()).WithDetail("have", oh.Type.String())
	}
	if oh.Size < ObjectHeaderSize || offset+oh.Size > uint64(len(data)) {
		return ObjectHeader{}, nil, logerrors.NewError(logerrors.ErrCodeCorrupted, "object size overflows arena").
			WithComponent("store").WithOperation("MapObject").WithFileID(f.IDString()).
			WithDetail("offset", offset).WithDetail("size", oh.Size)
	}

	payload := data[offset+ObjectHeaderSize : offset+oh.Size]
	return oh, payload, nil
}

// Allocate bumps the tail pointer by size (aligned to 8 bytes), returning the
// offset of the newly reserved object. It fails with SpaceExhausted when the
// projected tail would cross the file's arena cap (spec §4.1). Allocate does
// not take File's lock; internal/append holds it (via Lock) across Append.
func (f *File) Allocate(typ ObjectType, flags uint8, payloadSize uint64) (uint64, error) {
	total := alignUp8(ObjectHeaderSize + payloadSize)

	offset := f.header.ArenaSize
	if offset < HeaderSize {
		offset = uint64(HeaderSize)
	}
	newTail := offset + total
	if newTail > f.arenaCap {
		return 0, logerrors.NewError(logerrors.ErrCodeSpaceExhausted, "allocation would exceed arena cap").
			WithComponent("store").WithOperation("Allocate").WithFileID(f.IDString()).
			WithDetail("requested", total).WithDetail("cap", f.arenaCap)
	}

	if err := f.growTo(newTail); err != nil {
		return 0, err
	}

	buf := f.arena()
	encodeObjectHeader(buf[offset:], typ, flags, ObjectHeaderSize+payloadSize)
	// Zero any padding introduced by alignment so readers never see garbage
	// past the logical payload.
	for i := ObjectHeaderSize + payloadSize; i < total; i++ {
		buf[offset+i] = 0
	}

	f.header.TailObjectOffset = offset
	f.header.ArenaSize = newTail
	f.header.NObjects++

	return offset, nil
}
