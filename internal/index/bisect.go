package index

import (
	"github.com/scttfrdmn/logarc/internal/store"
)

// Direction selects which edge of a range of equal-scoring entries Locate
// returns (spec §4.4).
type Direction int

const (
	// Down returns the earliest entry with key >= needle.
	Down Direction = iota
	// Up returns the latest entry with key <= needle.
	Up
)

// Status reports where needle sat relative to the array's range when Locate
// could not land on an exact crossing (spec §4.4's tri-state).
type Status int

const (
	Found Status = iota
	BelowRange
	AboveRange
	NotPresent
)

// Index bisects the chunked entry arrays of one open store.File, caching
// chunk layouts across calls via a ChainCache.
type Index struct {
	f     *store.File
	cache *ChainCache
}

// New returns an Index over f with a fresh chain cache.
func New(f *store.File) *Index {
	return &Index{f: f, cache: NewChainCache()}
}

// Locate bisects the array chain rooted at head (n items long) for needle
// under extract, returning the entry offset at the crossing described by
// dir. n is the caller's authoritative item count (store.Header.NEntries for
// the main array, store.DataObject.NEntries for a per-data array) since a
// chunk's slot capacity can exceed the number of items actually written into
// it.
func (ix *Index) Locate(head uint64, n uint64, needle uint64, extract Extractor, dir Direction) (uint64, Status, error) {
	if n == 0 || head == 0 {
		return 0, NotPresent, nil
	}

	compact := ix.f.Header().Compact()
	state, err := ix.cache.resolve(ix.f, head, compact)
	if err != nil {
		return 0, NotPresent, err
	}

	key := func(i uint64) (uint64, error) {
		offset, err := itemAt(ix.f, state, compact, i)
		if err != nil {
			return 0, err
		}
		return extract(ix.f, offset)
	}

	switch dir {
	case Down:
		idx, err := lowerBound(n, needle, key)
		if err != nil {
			return 0, NotPresent, err
		}
		if idx == n {
			return 0, AboveRange, nil
		}
		offset, err := itemAt(ix.f, state, compact, idx)
		return offset, Found, err
	default: // Up
		idx, err := upperBound(n, needle, key)
		if err != nil {
			return 0, NotPresent, err
		}
		if idx == 0 {
			return 0, BelowRange, nil
		}
		offset, err := itemAt(ix.f, state, compact, idx-1)
		return offset, Found, err
	}
}

// lowerBound returns the smallest i in [0,n) with key(i) >= needle, or n if
// none exists.
func lowerBound(n uint64, needle uint64, key func(uint64) (uint64, error)) (uint64, error) {
	lo, hi := uint64(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		k, err := key(mid)
		if err != nil {
			return 0, err
		}
		if k < needle {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// upperBound returns the smallest i in [0,n) with key(i) > needle, or n if
// none exists (so i-1, if >0, is the largest index with key(i-1) <= needle).
func upperBound(n uint64, needle uint64, key func(uint64) (uint64, error)) (uint64, error) {
	lo, hi := uint64(0), n
	for lo < hi {
		mid := lo + (hi-lo)/2
		k, err := key(mid)
		if err != nil {
			return 0, err
		}
		if k <= needle {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, nil
}

// First returns the earliest entry in the array (offset, true) or (0, false)
// if it is empty.
func (ix *Index) First(head uint64, n uint64) (uint64, bool, error) {
	if n == 0 || head == 0 {
		return 0, false, nil
	}
	compact := ix.f.Header().Compact()
	state, err := ix.cache.resolve(ix.f, head, compact)
	if err != nil {
		return 0, false, err
	}
	offset, err := itemAt(ix.f, state, compact, 0)
	return offset, true, err
}

// Last returns the most recent entry in the array (offset, true) or (0,
// false) if it is empty.
func (ix *Index) Last(head uint64, n uint64) (uint64, bool, error) {
	if n == 0 || head == 0 {
		return 0, false, nil
	}
	compact := ix.f.Header().Compact()
	state, err := ix.cache.resolve(ix.f, head, compact)
	if err != nil {
		return 0, false, err
	}
	offset, err := itemAt(ix.f, state, compact, n-1)
	return offset, true, err
}

// Items returns the offsets of the item range [from, to) of the array chain
// rooted at head, used by the match engine to walk a per-data array in full
// (spec §4.5's per-data intersection/union).
func (ix *Index) Items(head uint64, from, to uint64) ([]uint64, error) {
	if head == 0 || from >= to {
		return nil, nil
	}
	compact := ix.f.Header().Compact()
	state, err := ix.cache.resolve(ix.f, head, compact)
	if err != nil {
		return nil, err
	}
	out := make([]uint64, 0, to-from)
	for i := from; i < to; i++ {
		offset, err := itemAt(ix.f, state, compact, i)
		if err != nil {
			return nil, err
		}
		out = append(out, offset)
	}
	return out, nil
}
