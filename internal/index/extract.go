package index

import "github.com/scttfrdmn/logarc/internal/store"

// Extractor reads the indexed attribute off the entry at entryOffset. It is
// the `extract` function of the bisection primitive (spec §4.4): arrays are
// assumed sorted by whatever key the caller's Extractor returns.
type Extractor func(f *store.File, entryOffset uint64) (uint64, error)

// SeqnumExtractor keys by ENTRY.seqnum, always monotonic within one file
// since seqnums are assigned by strictly incrementing the tail.
func SeqnumExtractor(f *store.File, entryOffset uint64) (uint64, error) {
	e, err := store.ReadEntry(f, entryOffset, f.Header().Compact())
	if err != nil {
		return 0, err
	}
	return e.Seqnum, nil
}

// RealtimeExtractor keys by ENTRY.realtime. The engine does not assume this
// is monotonic unless STRICT_ORDER is set (spec §4.4); bisection against a
// file without STRICT_ORDER may land on an approximate position when
// realtime goes backwards, the same tradeoff journald itself makes.
func RealtimeExtractor(f *store.File, entryOffset uint64) (uint64, error) {
	e, err := store.ReadEntry(f, entryOffset, f.Header().Compact())
	if err != nil {
		return 0, err
	}
	return e.Realtime, nil
}

// MonotonicExtractor keys by ENTRY.monotonic. Valid only within entries
// sharing one boot_id; callers seeking by monotonic must scope the array (or
// post-filter) to a single boot themselves (spec §4.4).
func MonotonicExtractor(f *store.File, entryOffset uint64) (uint64, error) {
	e, err := store.ReadEntry(f, entryOffset, f.Header().Compact())
	if err != nil {
		return 0, err
	}
	return e.Monotonic, nil
}

// IdentityExtractor keys by the entry's own offset, used when bisecting a
// per-data entry array against another array's position rather than a
// timestamp (spec §4.4's "for DATA-scoped arrays, the entry's offset
// itself").
func IdentityExtractor(f *store.File, entryOffset uint64) (uint64, error) {
	return entryOffset, nil
}

// BootOf returns the boot_id of the entry at entryOffset, used by callers
// that need to scope a monotonic seek to one boot before bisecting.
func BootOf(f *store.File, entryOffset uint64) ([16]byte, error) {
	e, err := store.ReadEntry(f, entryOffset, f.Header().Compact())
	if err != nil {
		return [16]byte{}, err
	}
	return e.BootID, nil
}
