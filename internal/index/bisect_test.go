package index

import (
	"path/filepath"
	"testing"

	appendpkg "github.com/scttfrdmn/logarc/internal/append"
	"github.com/scttfrdmn/logarc/internal/store"
)

func openTestFile(t *testing.T) *store.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.journal")
	f, err := store.Create(path, store.Options{InitialArenaCap: 4 << 20})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

type fixedClock struct{ realtime, monotonic uint64 }

func (c *fixedClock) Realtime() uint64  { return c.realtime }
func (c *fixedClock) Monotonic() uint64 { return c.monotonic }

// appendN appends n entries with strictly increasing realtime/seqnum so both
// extractors agree on ordering, returning each Append's result.
func appendN(t *testing.T, f *store.File, n int) []appendpkg.Result {
	t.Helper()
	results := make([]appendpkg.Result, 0, n)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}
	for i := 0; i < n; i++ {
		clock.realtime += 10
		clock.monotonic += 10
		r, err := appendpkg.Append(f, []appendpkg.Iovec{{Key: "N", Value: []byte{byte(i)}}}, appendpkg.Timestamps{}, [16]byte{1}, clock)
		if err != nil {
			t.Fatalf("Append %d: %v", i, err)
		}
		results = append(results, r)
	}
	return results
}

func TestLocateBySeqnumExact(t *testing.T) {
	f := openTestFile(t)
	results := appendN(t, f, 40)

	ix := New(f)
	h := f.Header()

	for _, want := range []int{0, 1, 20, 39} {
		needle := results[want].Seqnum
		offset, status, err := ix.Locate(h.EntryArrayOffset, h.NEntries, needle, SeqnumExtractor, Down)
		if err != nil {
			t.Fatalf("Locate: %v", err)
		}
		if status != Found {
			t.Fatalf("want Found, got status %d", status)
		}
		e, err := store.ReadEntry(f, offset, h.Compact())
		if err != nil {
			t.Fatalf("ReadEntry: %v", err)
		}
		if e.Seqnum != needle {
			t.Errorf("entry %d: got seqnum %d, want %d", want, e.Seqnum, needle)
		}
	}
}

func TestLocateDownAboveRange(t *testing.T) {
	f := openTestFile(t)
	results := appendN(t, f, 10)
	ix := New(f)
	h := f.Header()

	_, status, err := ix.Locate(h.EntryArrayOffset, h.NEntries, results[9].Seqnum+1000, SeqnumExtractor, Down)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if status != AboveRange {
		t.Fatalf("want AboveRange, got %d", status)
	}
}

func TestLocateUpBelowRange(t *testing.T) {
	f := openTestFile(t)
	_ = appendN(t, f, 10)
	ix := New(f)
	h := f.Header()

	_, status, err := ix.Locate(h.EntryArrayOffset, h.NEntries, 0, SeqnumExtractor, Up)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if status != BelowRange {
		t.Fatalf("want BelowRange, got %d", status)
	}
}

func TestLocateEmptyArrayIsNotPresent(t *testing.T) {
	f := openTestFile(t)
	ix := New(f)
	_, status, err := ix.Locate(0, 0, 5, SeqnumExtractor, Down)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if status != NotPresent {
		t.Fatalf("want NotPresent, got %d", status)
	}
}

func TestFirstAndLast(t *testing.T) {
	f := openTestFile(t)
	results := appendN(t, f, 50)
	ix := New(f)
	h := f.Header()

	firstOffset, ok, err := ix.First(h.EntryArrayOffset, h.NEntries)
	if err != nil || !ok {
		t.Fatalf("First: ok=%v err=%v", ok, err)
	}
	firstEntry, err := store.ReadEntry(f, firstOffset, h.Compact())
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if firstEntry.Seqnum != results[0].Seqnum {
		t.Errorf("First: got seqnum %d, want %d", firstEntry.Seqnum, results[0].Seqnum)
	}

	lastOffset, ok, err := ix.Last(h.EntryArrayOffset, h.NEntries)
	if err != nil || !ok {
		t.Fatalf("Last: ok=%v err=%v", ok, err)
	}
	lastEntry, err := store.ReadEntry(f, lastOffset, h.Compact())
	if err != nil {
		t.Fatalf("ReadEntry: %v", err)
	}
	if lastEntry.Seqnum != results[len(results)-1].Seqnum {
		t.Errorf("Last: got seqnum %d, want %d", lastEntry.Seqnum, results[len(results)-1].Seqnum)
	}
}

func TestLocateAcrossManyChunks(t *testing.T) {
	f := openTestFile(t)
	// Exceeds several geometric chunk growths (4, 8, 16, 32, ...), exercising
	// the chain cache's extend-in-place path across many Locate calls.
	results := appendN(t, f, 500)
	ix := New(f)

	for _, want := range []int{0, 1, 3, 4, 5, 63, 200, 499} {
		h := f.Header()
		offset, status, err := ix.Locate(h.EntryArrayOffset, h.NEntries, results[want].Seqnum, SeqnumExtractor, Down)
		if err != nil {
			t.Fatalf("Locate(%d): %v", want, err)
		}
		if status != Found {
			t.Fatalf("Locate(%d): want Found, got %d", want, status)
		}
		e, err := store.ReadEntry(f, offset, h.Compact())
		if err != nil {
			t.Fatalf("ReadEntry: %v", err)
		}
		if e.Seqnum != results[want].Seqnum {
			t.Errorf("Locate(%d): got seqnum %d, want %d", want, e.Seqnum, results[want].Seqnum)
		}
	}
}

func TestItemsReturnsRange(t *testing.T) {
	f := openTestFile(t)
	results := appendN(t, f, 30)
	ix := New(f)
	h := f.Header()

	offsets, err := ix.Items(h.EntryArrayOffset, 10, 15)
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(offsets) != 5 {
		t.Fatalf("got %d offsets, want 5", len(offsets))
	}
	for i, offset := range offsets {
		e, err := store.ReadEntry(f, offset, h.Compact())
		if err != nil {
			t.Fatalf("ReadEntry: %v", err)
		}
		if e.Seqnum != results[10+i].Seqnum {
			t.Errorf("offset %d: got seqnum %d, want %d", i, e.Seqnum, results[10+i].Seqnum)
		}
	}
}
