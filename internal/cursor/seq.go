package cursor

import (
	"github.com/scttfrdmn/logarc/internal/index"
	"github.com/scttfrdmn/logarc/internal/store"
)

// FileEntry binds one open file to an Index over it; a Cursor is built from
// a set of these (spec §6.3's OpenCursor(files…)).
type FileEntry struct {
	File *store.File
	ix   *index.Index
}

// NewFileEntry wraps f with a fresh per-file bisection index.
func NewFileEntry(f *store.File) *FileEntry {
	return &FileEntry{File: f, ix: index.New(f)}
}

// fileSeq is the sequence of entry offsets one file contributes to a cursor:
// either the whole main entry array (unfiltered) or a materialized,
// ascending list of matching entries (filtered, spec §4.5).
type fileSeq struct {
	fe       *FileEntry
	head     uint64
	n        uint64
	filtered []uint64 // nil means "unfiltered, address the main array directly"
}

func newFileSeq(fe *FileEntry, match *MatchExpr) (*fileSeq, error) {
	h := fe.File.Header()
	seq := &fileSeq{fe: fe, head: h.EntryArrayOffset, n: h.NEntries}
	if match != nil {
		entries, err := evalMatch(fe.File, fe.ix, match)
		if err != nil {
			return nil, err
		}
		seq.filtered = entries
		if entries == nil {
			seq.filtered = []uint64{}
		}
	}
	return seq, nil
}

func (s *fileSeq) len() uint64 {
	if s.filtered != nil {
		return uint64(len(s.filtered))
	}
	return s.n
}

func (s *fileSeq) at(i uint64) (uint64, error) {
	if s.filtered != nil {
		return s.filtered[i], nil
	}
	offsets, err := s.fe.ix.Items(s.head, i, i+1)
	if err != nil {
		return 0, err
	}
	return offsets[0], nil
}
