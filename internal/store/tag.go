package store

import (
	"encoding/binary"

	"github.com/dchest/siphash"
)

// TAG objects implement Forward-Secure Sealing: a keyed hash covering the
// entries appended since the previous TAG, chained so that each tag also
// authenticates the prior tag's value. Verifying the chain from the first
// tag detects any retroactive modification of sealed entries (spec §3.2,
// GLOSSARY "Tag (sealing)").
//
// The seed key for the chain is derived once at seal-enable time and evolves
// one-way (key_n+1 = SipHash(key_n, "logarc-tag-evolve")) so that compromise
// of a later key cannot forge earlier tags — the "forward-secure" property.
const tagFixedSize = 40 // seqnum:u64, epoch:u64, tag:16B, next placeholder padding to 8

type TagObject struct {
	Offset   uint64
	Seqnum   uint64 // seqnum of the last entry covered by this tag
	Epoch    uint64
	Tag      [16]byte
}

func ReadTag(f *File, offset uint64) (*TagObject, error) {
	_, raw, err := f.MapObject(offset, ObjectTag)
	if err != nil {
		return nil, err
	}
	t := &TagObject{
		Offset: offset,
		Seqnum: binary.LittleEndian.Uint64(raw[0:]),
		Epoch:  binary.LittleEndian.Uint64(raw[8:]),
	}
	copy(t.Tag[:], raw[16:32])
	return t, nil
}

func WriteTag(f *File, seqnum, epoch uint64, tag [16]byte) (uint64, error) {
	offset, err := f.Allocate(ObjectTag, 0, tagFixedSize)
	if err != nil {
		return 0, err
	}
	data := f.arena()
	base := offset + ObjectHeaderSize
	binary.LittleEndian.PutUint64(data[base+0:], seqnum)
	binary.LittleEndian.PutUint64(data[base+8:], epoch)
	copy(data[base+16:base+32], tag[:])
	return offset, nil
}

// SealChain evolves tag keys and computes chained seal values across entry
// ranges. A fresh chain's first key is derived from the file's FileID so two
// files never share a seal key space.
type SealChain struct {
	key0, key1 uint64
	epoch      uint64
	prevTag    [16]byte
}

// NewSealChain derives the initial key from fileID for a file opened with
// the Seal option.
func NewSealChain(fileID [16]byte) *SealChain {
	return &SealChain{
		key0: binary.LittleEndian.Uint64(fileID[0:8]),
		key1: binary.LittleEndian.Uint64(fileID[8:16]),
	}
}

// Advance computes the next tag covering coveredHash (typically the XOR of
// every entry XorHash since the last tag) and evolves the chain key
// forward, so a leaked current key cannot reconstruct earlier tags.
func (s *SealChain) Advance(coveredHash uint64) [16]byte {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], coveredHash)

	mixed := siphash.Hash(s.key0, s.key1, append(buf[:], s.prevTag[:]...))

	var tag [16]byte
	binary.LittleEndian.PutUint64(tag[0:8], mixed)
	binary.LittleEndian.PutUint64(tag[8:16], siphash.Hash(s.key1, s.key0, buf[:]))

	s.key0 = siphash.Hash(s.key0, s.key1, []byte("logarc-tag-evolve"))
	s.key1 = siphash.Hash(s.key1, s.key0, []byte("logarc-tag-evolve"))
	s.epoch++
	s.prevTag = tag
	return tag
}

// VerifyChain re-derives tags from fileID and the sequence of covered hashes
// and compares against the on-disk tags, returning the index of the first
// mismatch, if any.
func VerifyChain(fileID [16]byte, coveredHashes []uint64, onDisk [][16]byte) (mismatchAt int, ok bool) {
	chain := NewSealChain(fileID)
	for i, h := range coveredHashes {
		if i >= len(onDisk) {
			return i, false
		}
		computed := chain.Advance(h)
		if computed != onDisk[i] {
			return i, false
		}
	}
	return -1, true
}
