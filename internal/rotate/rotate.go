package rotate

import (
	"path/filepath"
	"time"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
	"github.com/scttfrdmn/logarc/internal/store"
	"github.com/scttfrdmn/logarc/pkg/utils"
)

// Successor rotates f: marks it ARCHIVED, flushes its header, and opens a
// new file at successorPath that shares SeqnumID and MachineID, continuing
// seqnum assignment from f's tail (spec §4.3). The caller is responsible for
// swapping the engine's "active file" reference to the returned File.
func Successor(f *store.File, successorPath string, opts store.Options) (*store.File, error) {
	h := f.Header()

	opts.MachineID = h.MachineID
	opts.SeqnumID = h.SeqnumID
	opts.PredecessorTailSeqnum = h.TailEntrySeqnum
	opts.PredecessorBootIDTail = h.BootIDTail

	if err := f.Rotate(); err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to archive predecessor file").
			WithComponent("rotate").WithOperation("Successor").WithCause(err)
	}

	successor, err := store.Create(successorPath, opts)
	if err != nil {
		return nil, err
	}
	return successor, nil
}

// SuccessorPathFor derives a rotated file's name from dir and the moment of
// rotation, mangled so lexicographic sort coincides with append order (spec
// §6.2).
func SuccessorPathFor(dir string, seqnumID [16]byte, headSeqnum uint64, at time.Time) string {
	name := formatRotatedName(seqnumID, headSeqnum, at)
	path, err := utils.SecureJoin(dir, name)
	if err != nil {
		// formatRotatedName never emits "..", so this only triggers on a
		// malformed dir; fall back to a plain join rather than propagating
		// an error through a signature callers treat as infallible.
		return filepath.Join(dir, name)
	}
	return path
}

func formatRotatedName(seqnumID [16]byte, headSeqnum uint64, at time.Time) string {
	return at.UTC().Format("20060102150405") + "-" + hex16(seqnumID) + "-" + hex8(headSeqnum) + ".journal"
}

func hex16(b [16]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 32)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0xf]
	}
	return string(out)
}

func hex8(v uint64) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 16)
	for i := 0; i < 16; i++ {
		shift := uint(60 - i*4)
		out[i] = hexDigits[(v>>shift)&0xf]
	}
	return string(out)
}
