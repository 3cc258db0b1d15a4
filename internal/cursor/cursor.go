package cursor

import (
	"github.com/sourcegraph/conc/pool"

	"github.com/scttfrdmn/logarc/internal/index"
	"github.com/scttfrdmn/logarc/internal/store"
)

// Flags configure OpenCursor (spec §6.3).
type Flags struct {
	LocalOnly bool
	Immutable bool
}

// entryKey is the merge-order sort key of one candidate entry, plus enough
// identity to resolve GetData/EnumerateFields and to serialize a Token.
type entryKey struct {
	fileIdx   int
	offset    uint64
	seqnumID  [16]byte
	seqnum    uint64
	realtime  uint64
	bootID    [16]byte
	monotonic uint64
	xorHash   uint64
	archived  bool
}

// fileState tracks one file's position within its fileSeq. idx == -1 means
// "before the first entry"; idx == len(seq) means "after the last entry".
type fileState struct {
	fe  *FileEntry
	seq *fileSeq
	idx int64
}

func (fs *fileState) keyAt(fileIdx int, i uint64) (entryKey, error) {
	offset, err := fs.seq.at(i)
	if err != nil {
		return entryKey{}, err
	}
	h := fs.fe.File.Header()
	e, err := store.ReadEntry(fs.fe.File, offset, h.Compact())
	if err != nil {
		return entryKey{}, err
	}
	return entryKey{
		fileIdx:   fileIdx,
		offset:    offset,
		seqnumID:  h.SeqnumID,
		seqnum:    e.Seqnum,
		realtime:  e.Realtime,
		bootID:    e.BootID,
		monotonic: e.Monotonic,
		xorHash:   e.XorHash,
		archived:  h.State == store.StateArchived,
	}, nil
}

// Cursor is a merged position across N open files (spec §4.5).
type Cursor struct {
	states  []*fileState
	flags   Flags
	current *entryKey
}

// Open builds a cursor over files, optionally restricted to entries matching
// expr (nil means unfiltered). Building each file's fileSeq means evaluating
// expr against that file's DATA hash tables, so with many files open at once
// (spec §6.3's OpenCursor over a whole directory) the per-file work is primed
// concurrently rather than one file at a time.
func Open(files []*FileEntry, flags Flags, expr *MatchExpr) (*Cursor, error) {
	states := make([]*fileState, len(files))
	p := pool.New().WithErrors().WithMaxGoroutines(maxConcurrentOpen(len(files)))
	for i, fe := range files {
		i, fe := i, fe
		p.Go(func() error {
			seq, err := newFileSeq(fe, expr)
			if err != nil {
				return err
			}
			states[i] = &fileState{fe: fe, seq: seq, idx: -1}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return &Cursor{states: states, flags: flags}, nil
}

func maxConcurrentOpen(n int) int {
	const cap = 16
	if n < 1 {
		return 1
	}
	if n > cap {
		return cap
	}
	return n
}

// less reports whether a sorts strictly before b in cursor merge order:
// realtime ascending, then (seqnum_id, seqnum) ascending, falling back to
// the file's position in the list passed to Open (not its file_id) when
// seqnum_id differs or realtime ties without a shared id (spec §4.5).
func less(a, b entryKey) bool {
	if a.realtime != b.realtime {
		return a.realtime < b.realtime
	}
	if a.seqnumID == b.seqnumID {
		if a.seqnum != b.seqnum {
			return a.seqnum < b.seqnum
		}
		return a.fileIdx < b.fileIdx
	}
	return a.fileIdx < b.fileIdx
}

func isDuplicate(a, b entryKey) bool {
	return a.seqnumID == b.seqnumID && a.seqnum == b.seqnum
}

// preferDuplicate reports whether a should be kept over its duplicate b —
// the ARCHIVED copy wins so reads are idempotent after rotation (spec §4.5).
func preferDuplicate(a, b entryKey) bool {
	if a.archived != b.archived {
		return a.archived
	}
	return a.fileIdx < b.fileIdx
}

// Next advances one step in merge order, returning false if every file is
// exhausted.
func (c *Cursor) Next() (bool, error) { return c.step(true) }

// Previous steps one position backward in merge order. A Next after a
// Previous that returned entry X returns X again (spec §4.5).
func (c *Cursor) Previous() (bool, error) { return c.step(false) }

func (c *Cursor) step(forward bool) (bool, error) {
	type candidate struct {
		st  *fileState
		key entryKey
	}
	var best *candidate

	for fi, st := range c.states {
		probe := st.idx + 1
		if !forward {
			probe = st.idx - 1
		}
		if probe < 0 || uint64(probe) >= st.seq.len() {
			continue
		}
		key, err := st.keyAt(fi, uint64(probe))
		if err != nil {
			return false, err
		}
		switch {
		case best == nil:
			best = &candidate{st: st, key: key}
		case forward && (less(key, best.key) || (isDuplicate(key, best.key) && preferDuplicate(key, best.key))):
			best = &candidate{st: st, key: key}
		case !forward && (less(best.key, key) || (isDuplicate(key, best.key) && preferDuplicate(key, best.key))):
			best = &candidate{st: st, key: key}
		}
	}
	if best == nil {
		return false, nil
	}

	if forward {
		best.st.idx++
	} else {
		best.st.idx--
	}

	// Consume any other file whose adjacent candidate duplicates the winner
	// (same seqnum_id, seqnum), so the merged stream emits it once.
	for fi, st := range c.states {
		if st == best.st {
			continue
		}
		probe := st.idx + 1
		if !forward {
			probe = st.idx - 1
		}
		if probe < 0 || uint64(probe) >= st.seq.len() {
			continue
		}
		key, err := st.keyAt(fi, uint64(probe))
		if err != nil {
			return false, err
		}
		if isDuplicate(key, best.key) {
			if forward {
				st.idx++
			} else {
				st.idx--
			}
		}
	}

	current := best.key
	c.current = &current
	return true, nil
}

// Skip advances n steps forward, stopping early if a file runs out; it
// returns the number of steps actually taken.
func (c *Cursor) Skip(n int) (int, error) {
	for i := 0; i < n; i++ {
		ok, err := c.Next()
		if err != nil {
			return i, err
		}
		if !ok {
			return i, nil
		}
	}
	return n, nil
}

// SkipBack is Skip in the reverse direction.
func (c *Cursor) SkipBack(n int) (int, error) {
	for i := 0; i < n; i++ {
		ok, err := c.Previous()
		if err != nil {
			return i, err
		}
		if !ok {
			return i, nil
		}
	}
	return n, nil
}

// SeekHead positions the cursor at the earliest merged entry.
func (c *Cursor) SeekHead() (bool, error) {
	for _, st := range c.states {
		st.idx = -1
	}
	return c.Next()
}

// SeekTail positions the cursor at the latest merged entry.
func (c *Cursor) SeekTail() (bool, error) {
	for _, st := range c.states {
		st.idx = int64(st.seq.len())
	}
	return c.Previous()
}

// seekInSeq bisects one file's sequence for needle under extract, mirroring
// internal/index's lowerBound/upperBound but operating over a fileSeq (which
// may be a materialized, match-filtered list rather than a raw array chain).
func seekInSeq(st *fileState, needle uint64, extract index.Extractor, dir index.Direction) (int64, bool, error) {
	n := st.seq.len()
	if n == 0 {
		return 0, false, nil
	}
	key := func(i uint64) (uint64, error) {
		offset, err := st.seq.at(i)
		if err != nil {
			return 0, err
		}
		return extract(st.fe.File, offset)
	}

	lo, hi := uint64(0), n
	if dir == index.Down {
		for lo < hi {
			mid := lo + (hi-lo)/2
			k, err := key(mid)
			if err != nil {
				return 0, false, err
			}
			if k < needle {
				lo = mid + 1
			} else {
				hi = mid
			}
		}
		if lo == n {
			return 0, false, nil
		}
		return int64(lo), true, nil
	}

	for lo < hi {
		mid := lo + (hi-lo)/2
		k, err := key(mid)
		if err != nil {
			return 0, false, err
		}
		if k <= needle {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		return 0, false, nil
	}
	return int64(lo - 1), true, nil
}

// seekBy anchors every file just before (Down) or after (Up) its nearest
// candidate for needle, then settles on the global winner via step, which
// also applies duplicate suppression (spec §4.5). include, if non-nil,
// excludes files it returns false for (used by SeekCursor to restrict to a
// matching seqnum_id).
func (c *Cursor) seekBy(needle uint64, extract index.Extractor, dir index.Direction, include func(*fileState) bool) (bool, error) {
	for _, st := range c.states {
		if include != nil && !include(st) {
			st.idx = -1
			continue
		}
		n := st.seq.len()
		if n == 0 {
			st.idx = -1
			continue
		}
		pos, found, err := seekInSeq(st, needle, extract, dir)
		if err != nil {
			return false, err
		}
		if !found {
			if dir == index.Down {
				st.idx = int64(n)
			} else {
				st.idx = -1
			}
			continue
		}
		if dir == index.Down {
			st.idx = pos - 1
		} else {
			st.idx = pos + 1
		}
	}
	if dir == index.Down {
		return c.step(true)
	}
	return c.step(false)
}

// SeekSeqnum seeks the earliest entry with seqnum >= n among files sharing
// seqnumID (spec §4.4, §4.5).
func (c *Cursor) SeekSeqnum(seqnumID [16]byte, n uint64) (bool, error) {
	include := func(st *fileState) bool { return st.fe.File.Header().SeqnumID == seqnumID }
	return c.seekBy(n, index.SeqnumExtractor, index.Down, include)
}

// SeekRealtime seeks the earliest entry with realtime >= t across all files.
func (c *Cursor) SeekRealtime(t uint64) (bool, error) {
	return c.seekBy(t, index.RealtimeExtractor, index.Down, nil)
}

// SeekMonotonic seeks the earliest entry with monotonic >= usec within
// bootID. Unlike SeekSeqnum/SeekRealtime this is a linear scan: the engine
// keeps no per-boot secondary index (spec §9 Open Questions), so there is no
// array guaranteed sorted by monotonic-within-boot to bisect.
func (c *Cursor) SeekMonotonic(bootID [16]byte, usec uint64) (bool, error) {
	var best *candidatePos
	for fi, st := range c.states {
		n := st.seq.len()
		var found *candidatePos
		for i := uint64(0); i < n; i++ {
			key, err := st.keyAt(fi, i)
			if err != nil {
				return false, err
			}
			if key.bootID != bootID {
				continue
			}
			if key.monotonic >= usec {
				found = &candidatePos{st: st, idx: int64(i), key: key}
				break
			}
		}
		if found == nil {
			continue
		}
		if best == nil || less(found.key, best.key) {
			best = found
		}
	}
	if best == nil {
		return false, nil
	}
	for _, st := range c.states {
		st.idx = -1
	}
	best.st.idx = best.idx - 1
	return c.step(true)
}

type candidatePos struct {
	st  *fileState
	idx int64
	key entryKey
}

// SeekCursor parses and positions the cursor at tok's entry if its file
// still holds it, otherwise the nearest entry sharing its seqnum_id (spec
// §4.5, §6.4).
func (c *Cursor) SeekCursor(tok Token) (bool, error) {
	include := func(st *fileState) bool { return st.fe.File.Header().SeqnumID == tok.SeqnumID }
	return c.seekBy(tok.Seqnum, index.SeqnumExtractor, index.Down, include)
}

// TestCursor reports whether the entry at the current position matches tok
// byte-for-byte (spec §6.4).
func (c *Cursor) TestCursor(tok Token) bool {
	if c.current == nil {
		return false
	}
	k := *c.current
	return k.seqnumID == tok.SeqnumID && k.seqnum == tok.Seqnum && k.bootID == tok.BootID &&
		k.monotonic == tok.Monotonic && k.realtime == tok.Realtime && k.xorHash == tok.XorHash
}

// CurrentToken renders the current position as a Token, or false if the
// cursor has no current position.
func (c *Cursor) CurrentToken() (Token, bool) {
	if c.current == nil {
		return Token{}, false
	}
	k := *c.current
	return Token{
		SeqnumID: k.seqnumID, Seqnum: k.seqnum, BootID: k.bootID,
		Monotonic: k.monotonic, Realtime: k.realtime, XorHash: k.xorHash,
	}, true
}

// GetData returns the value of field on the current entry (spec §6.3).
func (c *Cursor) GetData(field string) ([]byte, bool, error) {
	if c.current == nil {
		return nil, false, nil
	}
	st := c.states[c.current.fileIdx]
	h := st.fe.File.Header()
	e, err := store.ReadEntry(st.fe.File, c.current.offset, h.Compact())
	if err != nil {
		return nil, false, err
	}
	prefix := []byte(field + "=")
	for _, item := range e.Items {
		d, err := store.ReadData(st.fe.File, item.DataOffset)
		if err != nil {
			return nil, false, err
		}
		if len(d.Payload) >= len(prefix) && string(d.Payload[:len(prefix)]) == string(prefix) {
			return d.Payload[len(prefix):], true, nil
		}
	}
	return nil, false, nil
}

// EnumerateFields returns the field keys present on the current entry (spec
// §6.3).
func (c *Cursor) EnumerateFields() ([]string, error) {
	if c.current == nil {
		return nil, nil
	}
	st := c.states[c.current.fileIdx]
	h := st.fe.File.Header()
	e, err := store.ReadEntry(st.fe.File, c.current.offset, h.Compact())
	if err != nil {
		return nil, err
	}
	fields := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		d, err := store.ReadData(st.fe.File, item.DataOffset)
		if err != nil {
			return nil, err
		}
		for i, b := range d.Payload {
			if b == '=' {
				fields = append(fields, string(d.Payload[:i]))
				break
			}
		}
	}
	return fields, nil
}

// BootInfo summarizes one boot's span within a cursor's walk (spec §6.3).
type BootInfo struct {
	BootID        [16]byte
	FirstRealtime uint64
	LastRealtime  uint64
}

// GetBoots walks the cursor (toward older entries if advanceOlder, else
// newer) collecting up to max distinct boots and their realtime span.
func (c *Cursor) GetBoots(advanceOlder bool, max int) ([]BootInfo, error) {
	var order [][16]byte
	info := make(map[[16]byte]*BootInfo)

	step := c.Next
	if advanceOlder {
		step = c.Previous
	}
	for max > 0 {
		ok, err := step()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		k := *c.current
		bi, exists := info[k.bootID]
		if !exists {
			if len(order) == max {
				break
			}
			bi = &BootInfo{BootID: k.bootID, FirstRealtime: k.realtime, LastRealtime: k.realtime}
			info[k.bootID] = bi
			order = append(order, k.bootID)
			continue
		}
		if k.realtime < bi.FirstRealtime {
			bi.FirstRealtime = k.realtime
		}
		if k.realtime > bi.LastRealtime {
			bi.LastRealtime = k.realtime
		}
	}

	out := make([]BootInfo, 0, len(order))
	for _, id := range order {
		out = append(out, *info[id])
	}
	return out, nil
}
