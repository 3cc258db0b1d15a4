package logarc

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpenAppendRotateVacuum(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(filepath.Join(dir, "a.journal"), ModeAppendCreate, Options{InitialArenaCap: 1 << 20})
	require.NoError(t, err)

	res, err := f.Append([]Iovec{{Key: "MESSAGE", Value: []byte("hello")}}, Timestamps{})
	require.NoError(t, err)
	require.Equal(t, uint64(1), res.Seqnum)

	successorPath := SuccessorPathFor(dir, f.Header().SeqnumID, f.Header().HeadEntrySeqnum, time.Now())
	successor, err := Rotate(f, successorPath, Options{InitialArenaCap: 1 << 20})
	require.NoError(t, err)
	defer successor.Close()

	require.EqualValues(t, 2, f.Header().State) // StateArchived

	_, err = successor.Append([]Iovec{{Key: "MESSAGE", Value: []byte("world")}}, Timestamps{})
	require.NoError(t, err)

	f.inner.Close() // archived file just needs unmapping, not a clean ONLINE->OFFLINE transition

	stats, err := Vacuum(dir, SpaceLimits{MaxFileAge: time.Nanosecond}, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Equal(t, 1, stats.FilesDeleted, "only the archived predecessor should be vacuumed")
}

func TestOpenCursorMergesAppends(t *testing.T) {
	dir := t.TempDir()

	f, err := Open(filepath.Join(dir, "a.journal"), ModeAppendCreate, Options{InitialArenaCap: 1 << 20})
	require.NoError(t, err)
	defer f.Close()

	for i := 0; i < 3; i++ {
		_, err := f.Append([]Iovec{{Key: "MESSAGE", Value: []byte("entry")}}, Timestamps{})
		require.NoError(t, err)
	}

	cur, err := OpenCursor([]*File{f}, Flags{}, nil)
	require.NoError(t, err)

	ok, err := cur.SeekHead()
	require.NoError(t, err)
	require.True(t, ok)

	count := 1
	for {
		ok, err := cur.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	require.Equal(t, 3, count)
}

func TestAppendRejectsEmptyIovecs(t *testing.T) {
	dir := t.TempDir()
	f, err := Open(filepath.Join(dir, "a.journal"), ModeAppendCreate, Options{InitialArenaCap: 1 << 20})
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Append(nil, Timestamps{})
	require.Error(t, err, "Append(nil) should fail validation")
}
