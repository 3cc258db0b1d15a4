package cursor

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

func appendMsg(t *testing.T, f *store.File, clock *fixedClock, msg string, extra ...appendpkg.Iovec) appendpkg.Result {
	t.Helper()
	clock.realtime += 10
	clock.monotonic += 10
	iovecs := appendpkg.Iovec{Key: "MESSAGE", Value: []byte(msg)}
	all := append([]appendpkg.Iovec{iovecs}, extra...)
	r, err := appendpkg.Append(f, all, appendpkg.Timestamps{}, [16]byte{1}, clock)
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	return r
}

func TestCursorSingleFileForwardAndBack(t *testing.T) {
	f := openTestFile(t)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}
	for i := 0; i < 5; i++ {
		appendMsg(t, f, clock, string(rune('a'+i)))
	}

	c, err := Open([]*FileEntry{NewFileEntry(f)}, Flags{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var msgs []string
	for {
		ok, err := c.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		v, found, err := c.GetData("MESSAGE")
		if err != nil || !found {
			t.Fatalf("GetData: found=%v err=%v", found, err)
		}
		msgs = append(msgs, string(v))
	}
	want := "abcde"
	if len(msgs) != len(want) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(want))
	}
	for i, m := range msgs {
		if m != string(want[i]) {
			t.Errorf("message %d: got %q, want %q", i, m, string(want[i]))
		}
	}

	// Walking back from tail should retrace the same entries in reverse.
	ok, err := c.SeekTail()
	if err != nil || !ok {
		t.Fatalf("SeekTail: ok=%v err=%v", ok, err)
	}
	var back []string
	for {
		v, found, err := c.GetData("MESSAGE")
		if err != nil || !found {
			t.Fatalf("GetData: found=%v err=%v", found, err)
		}
		back = append(back, string(v))
		ok, err := c.Previous()
		if err != nil {
			t.Fatalf("Previous: %v", err)
		}
		if !ok {
			break
		}
	}
	if len(back) != len(want) {
		t.Fatalf("got %d messages walking back, want %d", len(back), len(want))
	}
	for i, m := range back {
		if m != string(want[len(want)-1-i]) {
			t.Errorf("backward message %d: got %q, want %q", i, m, string(want[len(want)-1-i]))
		}
	}
}

func TestCursorMergesAcrossFiles(t *testing.T) {
	f1 := openTestFile(t)
	f2 := openTestFile(t)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}

	appendMsg(t, f1, clock, "one")
	appendMsg(t, f2, clock, "two")
	appendMsg(t, f1, clock, "three")
	appendMsg(t, f2, clock, "four")

	c, err := Open([]*FileEntry{NewFileEntry(f1), NewFileEntry(f2)}, Flags{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	want := []string{"one", "two", "three", "four"}
	for i, w := range want {
		ok, err := c.Next()
		if err != nil {
			t.Fatalf("Next %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("Next %d: cursor exhausted early", i)
		}
		v, found, err := c.GetData("MESSAGE")
		if err != nil || !found {
			t.Fatalf("GetData %d: found=%v err=%v", i, found, err)
		}
		if string(v) != w {
			t.Errorf("entry %d: got %q, want %q", i, v, w)
		}
	}
	ok, err := c.Next()
	if err != nil {
		t.Fatalf("Next past end: %v", err)
	}
	if ok {
		t.Fatalf("expected cursor exhausted after 4 entries")
	}
}

func TestCursorDuplicateSeqnumCollapsesToArchived(t *testing.T) {
	// Simulate rotation: the same seqnum_id/seqnum pair appears in both an
	// archived file and its onward-written successor; the cursor should
	// surface the archived copy exactly once (spec §4.5).
	f1 := openTestFile(t)
	f2 := openTestFile(t)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}

	appendMsg(t, f1, clock, "keep")
	f1.Header().State = store.StateArchived
	if err := f1.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}

	// f2 shares f1's seqnum_id and carries a duplicate of the same
	// (seqnum_id, seqnum) pair as its first entry, as would happen if a
	// rotated-away online file's tail entry were also linked in the new file.
	f2.Header().SeqnumID = f1.Header().SeqnumID
	if err := f2.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}
	appendMsg(t, f2, clock, "dup")

	c, err := Open([]*FileEntry{NewFileEntry(f1), NewFileEntry(f2)}, Flags{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	ok, err := c.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	v, found, err := c.GetData("MESSAGE")
	if err != nil || !found {
		t.Fatalf("GetData: found=%v err=%v", found, err)
	}
	if string(v) != "keep" {
		t.Fatalf("got %q, want the archived copy %q", v, "keep")
	}

	ok, err = c.Next()
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatalf("expected the duplicate to be suppressed, cursor should be exhausted")
	}
}

func TestCursorMatchExprFilters(t *testing.T) {
	f := openTestFile(t)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}

	appendMsg(t, f, clock, "a", appendpkg.Iovec{Key: "PRIORITY", Value: []byte("3")})
	appendMsg(t, f, clock, "b", appendpkg.Iovec{Key: "PRIORITY", Value: []byte("6")})
	appendMsg(t, f, clock, "c", appendpkg.Iovec{Key: "PRIORITY", Value: []byte("3")})

	expr := NewMatchExpr()
	expr.AddMatch("PRIORITY", []byte("3"))

	c, err := Open([]*FileEntry{NewFileEntry(f)}, Flags{}, expr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var got []string
	for {
		ok, err := c.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		v, found, err := c.GetData("MESSAGE")
		if err != nil || !found {
			t.Fatalf("GetData: found=%v err=%v", found, err)
		}
		got = append(got, string(v))
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("got %v, want [a c]", got)
	}
}

func TestCursorTokenRoundTrip(t *testing.T) {
	f := openTestFile(t)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}
	appendMsg(t, f, clock, "only")

	c, err := Open([]*FileEntry{NewFileEntry(f)}, Flags{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ok, err := c.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}

	tok, ok := c.CurrentToken()
	if !ok {
		t.Fatalf("CurrentToken: no current position")
	}
	if !c.TestCursor(tok) {
		t.Fatalf("TestCursor: token does not match the position it was captured from")
	}

	parsed, err := ParseToken(tok.String())
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if parsed != tok {
		t.Fatalf("round trip mismatch: got %+v, want %+v", parsed, tok)
	}

	if ok, err := c.SeekCursor(parsed); err != nil || !ok {
		t.Fatalf("SeekCursor: ok=%v err=%v", ok, err)
	}
	if !c.TestCursor(tok) {
		t.Fatalf("SeekCursor did not land back on the original entry")
	}
}

func TestParseTokenMissingFieldIsInvalid(t *testing.T) {
	_, err := ParseToken("s=00000000000000000000000000000000;i=1")
	if err == nil {
		t.Fatalf("expected an error for a cursor token missing required fields")
	}
}

func TestCursorEnumerateFields(t *testing.T) {
	f := openTestFile(t)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}
	appendMsg(t, f, clock, "hi", appendpkg.Iovec{Key: "PRIORITY", Value: []byte("3")})

	c, err := Open([]*FileEntry{NewFileEntry(f)}, Flags{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ok, err := c.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	fields, err := c.EnumerateFields()
	if err != nil {
		t.Fatalf("EnumerateFields: %v", err)
	}
	seen := map[string]bool{}
	for _, f := range fields {
		seen[f] = true
	}
	if !seen["MESSAGE"] || !seen["PRIORITY"] {
		t.Fatalf("got fields %v, want MESSAGE and PRIORITY present", fields)
	}
}

func TestCursorGetBoots(t *testing.T) {
	f := openTestFile(t)
	clock := &fixedClock{realtime: 1000, monotonic: 1000}
	boot1 := [16]byte{1}
	boot2 := [16]byte{2}

	mk := func(boot [16]byte, msg string) {
		clock.realtime += 10
		clock.monotonic += 10
		if _, err := appendpkg.Append(f, []appendpkg.Iovec{{Key: "MESSAGE", Value: []byte(msg)}}, appendpkg.Timestamps{}, boot, clock); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	mk(boot1, "a")
	mk(boot1, "b")
	mk(boot2, "c")

	c, err := Open([]*FileEntry{NewFileEntry(f)}, Flags{}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	boots, err := c.GetBoots(false, 10)
	if err != nil {
		t.Fatalf("GetBoots: %v", err)
	}
	if len(boots) != 2 {
		t.Fatalf("got %d boots, want 2", len(boots))
	}
	if boots[0].BootID != boot1 || boots[1].BootID != boot2 {
		t.Fatalf("boots out of order: %+v", boots)
	}
}
