package append

import (
	"path/filepath"
	"testing"

	"github.com/scttfrdmn/logarc/internal/store"
)

type fixedClock struct {
	realtime, monotonic uint64
}

func (c *fixedClock) Realtime() uint64  { return c.realtime }
func (c *fixedClock) Monotonic() uint64 { return c.monotonic }

func openTestFile(t *testing.T, opts store.Options) *store.File {
	t.Helper()
	if opts.InitialArenaCap == 0 {
		opts.InitialArenaCap = 4 << 20
	}
	path := filepath.Join(t.TempDir(), "test.journal")
	f, err := store.Create(path, opts)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	t.Cleanup(func() { f.Close() })
	return f
}

func TestAppendRejectsEmptyIovecs(t *testing.T) {
	f := openTestFile(t, store.Options{})
	_, err := Append(f, nil, Timestamps{}, [16]byte{}, &fixedClock{1, 1})
	if err == nil {
		t.Fatal("expected InvalidArgument for empty iovecs")
	}
}

func TestAppendRejectsMalformedKey(t *testing.T) {
	f := openTestFile(t, store.Options{})
	iovecs := []Iovec{{Key: "lowercase", Value: []byte("x")}}
	_, err := Append(f, iovecs, Timestamps{}, [16]byte{}, &fixedClock{1, 1})
	if err == nil {
		t.Fatal("expected InvalidArgument for malformed key")
	}
}

func TestAppendAssignsIncreasingSeqnums(t *testing.T) {
	f := openTestFile(t, store.Options{})
	clock := &fixedClock{100, 100}

	r1, err := Append(f, []Iovec{{Key: "NUMBER", Value: []byte("1")}}, Timestamps{}, [16]byte{1}, clock)
	if err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	r2, err := Append(f, []Iovec{{Key: "NUMBER", Value: []byte("2")}}, Timestamps{}, [16]byte{1}, clock)
	if err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	if !(r1.Seqnum < r2.Seqnum) {
		t.Errorf("seqnums not increasing: %d, %d", r1.Seqnum, r2.Seqnum)
	}
	if f.Header().NEntries != 2 {
		t.Errorf("NEntries = %d, want 2", f.Header().NEntries)
	}
}

func TestAppendInternsRepeatedValueOnce(t *testing.T) {
	f := openTestFile(t, store.Options{})
	clock := &fixedClock{100, 100}

	if _, err := Append(f, []Iovec{{Key: "PRIORITY", Value: []byte("6")}}, Timestamps{}, [16]byte{}, clock); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	nDataAfterFirst := f.Header().NData

	if _, err := Append(f, []Iovec{{Key: "PRIORITY", Value: []byte("6")}}, Timestamps{}, [16]byte{}, clock); err != nil {
		t.Fatalf("Append 2: %v", err)
	}
	if f.Header().NData != nDataAfterFirst {
		t.Errorf("NData grew on repeated value: %d -> %d", nDataAfterFirst, f.Header().NData)
	}
}

// TestAppendStrictOrderRejection mirrors scenario S3: the second out-of-order
// append must be rejected without mutating file state.
func TestAppendStrictOrderRejection(t *testing.T) {
	f := openTestFile(t, store.Options{StrictOrder: true})

	_, err := Append(f, []Iovec{{Key: "MESSAGE", Value: []byte("first")}},
		Timestamps{Realtime: 100, Monotonic: 100}, [16]byte{}, NewSystemClock())
	if err != nil {
		t.Fatalf("first append: %v", err)
	}

	_, err = Append(f, []Iovec{{Key: "MESSAGE", Value: []byte("second")}},
		Timestamps{Realtime: 80, Monotonic: 130}, [16]byte{}, NewSystemClock())
	if err == nil {
		t.Fatal("expected OutOfOrder error")
	}

	if f.Header().NEntries != 1 {
		t.Errorf("NEntries = %d after rejected append, want 1", f.Header().NEntries)
	}
}

func TestAppendValueSizeBoundary(t *testing.T) {
	f := openTestFile(t, store.Options{})
	tooLarge := make([]byte, maxValueSize+1)
	_, err := Append(f, []Iovec{{Key: "HUGE", Value: tooLarge}}, Timestamps{}, [16]byte{}, &fixedClock{1, 1})
	if err == nil {
		t.Fatal("expected InvalidArgument for oversized value")
	}
}

func TestAppendLinksEntryIntoDataArray(t *testing.T) {
	f := openTestFile(t, store.Options{})
	clock := &fixedClock{100, 100}

	if _, err := Append(f, []Iovec{{Key: "NUMBER", Value: []byte("1")}}, Timestamps{}, [16]byte{}, clock); err != nil {
		t.Fatalf("Append 1: %v", err)
	}
	if _, err := Append(f, []Iovec{{Key: "NUMBER", Value: []byte("1")}}, Timestamps{}, [16]byte{}, clock); err != nil {
		t.Fatalf("Append 2: %v", err)
	}

	offset, hash, err := internData(f, "NUMBER", []byte("NUMBER=1"))
	if err != nil {
		t.Fatalf("internData: %v", err)
	}
	_ = hash
	d, err := store.ReadData(f, offset)
	if err != nil {
		t.Fatalf("ReadData: %v", err)
	}
	if d.NEntries != 2 {
		t.Errorf("DATA NEntries = %d, want 2", d.NEntries)
	}
}
