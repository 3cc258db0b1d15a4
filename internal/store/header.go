package store

import (
	"encoding/binary"
	"fmt"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

// Magic identifies a logarc journal file. It occupies the first 8 bytes of
// every file and is checked byte-for-byte before anything else is trusted.
var Magic = [8]byte{'L', 'G', 'A', 'R', 'C', 'J', 'R', '1'}

// HeaderSize is the fixed, 8-byte-aligned size of the on-disk header. Readers
// refuse files shorter than this before touching any field.
const HeaderSize = 256

// State is the lifecycle state of a journal file, stored in the header and
// used to detect unclean shutdown on open (spec §3.4, §4.2).
type State uint8

const (
	StateOffline State = iota
	StateOnline
	StateArchived
)

func (s State) String() string {
	switch s {
	case StateOffline:
		return "OFFLINE"
	case StateOnline:
		return "ONLINE"
	case StateArchived:
		return "ARCHIVED"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Compatible-flags bitmap: an implementation that doesn't recognize a bit may
// still open the file for both read and write.
const (
	CompatFlagNone uint32 = 0
)

// Incompatible-flags bitmap: an implementation that doesn't recognize a bit
// MUST refuse to open the file for write, but may still open it read-only.
const (
	IncompatFlagCompressedLZ4 uint32 = 1 << 0
	IncompatFlagCompressedZSTD uint32 = 1 << 1
	IncompatFlagCompressedXZ   uint32 = 1 << 2
	IncompatFlagCompact        uint32 = 1 << 3
	IncompatFlagSealed         uint32 = 1 << 4

	// XZ is left out: this build cannot decode it, so DecodeHeader refuses
	// files that declare it.
	incompatFlagsKnown = IncompatFlagCompressedLZ4 | IncompatFlagCompressedZSTD |
		IncompatFlagCompact | IncompatFlagSealed
)

// Header is the decoded form of the fixed file header (spec §3.1, §6.1).
// Every cross-object reference in the arena is a byte offset relative to the
// start of the file, so the header's *_offset fields are the entry points
// every other package in this module walks from.
type Header struct {
	CompatibleFlags   uint32
	IncompatibleFlags uint32
	State             State

	FileID    [16]byte
	MachineID [16]byte
	BootIDTail [16]byte
	SeqnumID  [16]byte

	HeaderSize uint64
	ArenaSize  uint64

	DataHashTableOffset  uint64
	DataHashTableSize    uint64
	FieldHashTableOffset uint64
	FieldHashTableSize   uint64

	TailObjectOffset uint64
	EntryArrayOffset uint64

	NObjects uint64
	NEntries uint64
	NData    uint64
	NFields  uint64

	HeadEntrySeqnum   uint64
	TailEntrySeqnum   uint64
	HeadEntryRealtime uint64
	TailEntryRealtime uint64
	TailEntryMonotonic uint64
}

// field byte offsets within the 256-byte header, little-endian throughout.
const (
	offMagic             = 0
	offCompatibleFlags   = 8
	offIncompatibleFlags = 12
	offState             = 16
	// 7 bytes padding to keep the IDs below 8-byte aligned.
	offFileID    = 24
	offMachineID = 40
	offBootIDTail = 56
	offSeqnumID  = 72

	offHeaderSize = 88
	offArenaSize  = 96

	offDataHashTableOffset  = 104
	offDataHashTableSize    = 112
	offFieldHashTableOffset = 120
	offFieldHashTableSize   = 128

	offTailObjectOffset = 136
	offEntryArrayOffset = 144

	offNObjects = 152
	offNEntries = 160
	offNData    = 168
	offNFields  = 176

	offHeadEntrySeqnum    = 184
	offTailEntrySeqnum    = 192
	offHeadEntryRealtime  = 200
	offTailEntryRealtime  = 208
	offTailEntryMonotonic = 216
	// remaining bytes to HeaderSize reserved for future fields.
)

// EncodeHeader writes h into a fresh HeaderSize-byte buffer.
func EncodeHeader(h *Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[offMagic:], Magic[:])
	binary.LittleEndian.PutUint32(buf[offCompatibleFlags:], h.CompatibleFlags)
	binary.LittleEndian.PutUint32(buf[offIncompatibleFlags:], h.IncompatibleFlags)
	buf[offState] = byte(h.State)
	copy(buf[offFileID:], h.FileID[:])
	copy(buf[offMachineID:], h.MachineID[:])
	copy(buf[offBootIDTail:], h.BootIDTail[:])
	copy(buf[offSeqnumID:], h.SeqnumID[:])
	binary.LittleEndian.PutUint64(buf[offHeaderSize:], h.HeaderSize)
	binary.LittleEndian.PutUint64(buf[offArenaSize:], h.ArenaSize)
	binary.LittleEndian.PutUint64(buf[offDataHashTableOffset:], h.DataHashTableOffset)
	binary.LittleEndian.PutUint64(buf[offDataHashTableSize:], h.DataHashTableSize)
	binary.LittleEndian.PutUint64(buf[offFieldHashTableOffset:], h.FieldHashTableOffset)
	binary.LittleEndian.PutUint64(buf[offFieldHashTableSize:], h.FieldHashTableSize)
	binary.LittleEndian.PutUint64(buf[offTailObjectOffset:], h.TailObjectOffset)
	binary.LittleEndian.PutUint64(buf[offEntryArrayOffset:], h.EntryArrayOffset)
	binary.LittleEndian.PutUint64(buf[offNObjects:], h.NObjects)
	binary.LittleEndian.PutUint64(buf[offNEntries:], h.NEntries)
	binary.LittleEndian.PutUint64(buf[offNData:], h.NData)
	binary.LittleEndian.PutUint64(buf[offNFields:], h.NFields)
	binary.LittleEndian.PutUint64(buf[offHeadEntrySeqnum:], h.HeadEntrySeqnum)
	binary.LittleEndian.PutUint64(buf[offTailEntrySeqnum:], h.TailEntrySeqnum)
	binary.LittleEndian.PutUint64(buf[offHeadEntryRealtime:], h.HeadEntryRealtime)
	binary.LittleEndian.PutUint64(buf[offTailEntryRealtime:], h.TailEntryRealtime)
	binary.LittleEndian.PutUint64(buf[offTailEntryMonotonic:], h.TailEntryMonotonic)
	return buf
}

// DecodeHeader parses a mapped file's first HeaderSize bytes. It validates
// the magic and the incompatible-flags bitmap against what this build knows
// how to write; everything else is trusted to map_object's own bounds checks.
func DecodeHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, logerrors.NewError(logerrors.ErrCodeCorrupted, "file too small to contain a header").
			WithComponent("store").WithOperation("DecodeHeader").
			WithDetail("have_bytes", len(data)).WithDetail("want_bytes", HeaderSize)
	}
	if string(data[offMagic:offMagic+8]) != string(Magic[:]) {
		return nil, logerrors.NewError(logerrors.ErrCodeUnsupportedFeature, "bad magic signature").
			WithComponent("store").WithOperation("DecodeHeader")
	}

	h := &Header{
		CompatibleFlags:   binary.LittleEndian.Uint32(data[offCompatibleFlags:]),
		IncompatibleFlags: binary.LittleEndian.Uint32(data[offIncompatibleFlags:]),
		State:             State(data[offState]),
	}
	copy(h.FileID[:], data[offFileID:offFileID+16])
	copy(h.MachineID[:], data[offMachineID:offMachineID+16])
	copy(h.BootIDTail[:], data[offBootIDTail:offBootIDTail+16])
	copy(h.SeqnumID[:], data[offSeqnumID:offSeqnumID+16])

	h.HeaderSize = binary.LittleEndian.Uint64(data[offHeaderSize:])
	h.ArenaSize = binary.LittleEndian.Uint64(data[offArenaSize:])
	h.DataHashTableOffset = binary.LittleEndian.Uint64(data[offDataHashTableOffset:])
	h.DataHashTableSize = binary.LittleEndian.Uint64(data[offDataHashTableSize:])
	h.FieldHashTableOffset = binary.LittleEndian.Uint64(data[offFieldHashTableOffset:])
	h.FieldHashTableSize = binary.LittleEndian.Uint64(data[offFieldHashTableSize:])
	h.TailObjectOffset = binary.LittleEndian.Uint64(data[offTailObjectOffset:])
	h.EntryArrayOffset = binary.LittleEndian.Uint64(data[offEntryArrayOffset:])
	h.NObjects = binary.LittleEndian.Uint64(data[offNObjects:])
	h.NEntries = binary.LittleEndian.Uint64(data[offNEntries:])
	h.NData = binary.LittleEndian.Uint64(data[offNData:])
	h.NFields = binary.LittleEndian.Uint64(data[offNFields:])
	h.HeadEntrySeqnum = binary.LittleEndian.Uint64(data[offHeadEntrySeqnum:])
	h.TailEntrySeqnum = binary.LittleEndian.Uint64(data[offTailEntrySeqnum:])
	h.HeadEntryRealtime = binary.LittleEndian.Uint64(data[offHeadEntryRealtime:])
	h.TailEntryRealtime = binary.LittleEndian.Uint64(data[offTailEntryRealtime:])
	h.TailEntryMonotonic = binary.LittleEndian.Uint64(data[offTailEntryMonotonic:])

	if h.IncompatibleFlags&^incompatFlagsKnown != 0 {
		return h, logerrors.NewError(logerrors.ErrCodeUnsupportedFeature, "unknown incompatible flags set").
			WithComponent("store").WithOperation("DecodeHeader").
			WithDetail("incompatible_flags", h.IncompatibleFlags)
	}
	return h, nil
}

// Compact reports whether this file uses 32-bit (rather than 64-bit) item
// widths in its entry arrays and ENTRY object item lists (spec §6.1).
func (h *Header) Compact() bool {
	return h.IncompatibleFlags&IncompatFlagCompact != 0
}

// Sealed reports whether this file's entries are covered by a TAG chain.
func (h *Header) Sealed() bool {
	return h.IncompatibleFlags&IncompatFlagSealed != 0
}
