// Package logarc implements the public API surface of spec §6.3: an
// append-only, mmap'd, bisectable journal file format with cross-file
// cursors, modeled on the systemd journal.
package logarc

import (
	"time"

	appendpkg "github.com/scttfrdmn/logarc/internal/append"
	"github.com/scttfrdmn/logarc/internal/batch"
	"github.com/scttfrdmn/logarc/internal/cursor"
	"github.com/scttfrdmn/logarc/internal/rotate"
	"github.com/scttfrdmn/logarc/internal/store"
)

// Mode selects how Open behaves (spec §6.3).
type Mode = store.Mode

const (
	ModeRead         = store.ModeRead
	ModeAppend       = store.ModeAppend
	ModeAppendCreate = store.ModeAppendCreate
)

// Iovec, Timestamps and Result are re-exported from internal/append so
// callers never need to import it directly.
type (
	Iovec      = appendpkg.Iovec
	Timestamps = appendpkg.Timestamps
	Result     = appendpkg.Result
)

// SpaceLimits mirrors spec §6.3's Options.metrics: the space-accounting and
// vacuum-trigger bounds for one journal directory.
type SpaceLimits = rotate.Limits

// Stats is Vacuum's result (spec §6.3: {files_deleted, bytes_freed}).
type Stats = batch.Stats

// Options configures Open (spec §6.3).
type Options struct {
	CompressThreshold uint64
	Seal              bool
	StrictOrder       bool
	InitialArenaCap   uint64
	Metrics           SpaceLimits
}

func (o Options) toStoreOptions() store.Options {
	return store.Options{
		CompressThreshold: o.CompressThreshold,
		Seal:              o.Seal,
		StrictOrder:       o.StrictOrder,
		InitialArenaCap:   o.InitialArenaCap,
	}
}

// File is one open journal file plus the clock and boot identity Append
// needs to fill in caller-omitted timestamps (spec §4.2).
type File struct {
	inner *store.File
	clock appendpkg.Clock
	bootID [16]byte
}

// Open maps path according to mode (spec §6.3).
func Open(path string, mode Mode, opts Options) (*File, error) {
	f, err := store.Open(path, mode, opts.toStoreOptions())
	if err != nil {
		return nil, err
	}
	return &File{inner: f, clock: appendpkg.NewSystemClock()}, nil
}

// Path returns the underlying file's path.
func (f *File) Path() string { return f.inner.Path() }

// Header exposes the underlying store header for callers that need space
// accounting or rotation-policy decisions (internal/rotate.RotationPolicy).
func (f *File) Header() *store.Header { return f.inner.Header() }

// Close unmaps and releases the file.
func (f *File) Close() error { return f.inner.Close() }

// IDString renders the file's FileID as lowercase hex, for log/metric labels.
func (f *File) IDString() string { return f.inner.IDString() }

// WithBootID fixes the boot_id Append stamps when the caller's Timestamps
// leaves it unset; the zero value otherwise means "one boot, one ID" for
// every entry in this process's lifetime.
func (f *File) WithBootID(bootID [16]byte) *File {
	f.bootID = bootID
	return f
}

// Append adds one entry to f (spec §6.3, §4.2).
func (f *File) Append(iovecs []Iovec, ts Timestamps) (Result, error) {
	return appendpkg.Append(f.inner, iovecs, ts, f.bootID, f.clock)
}

// Rotate marks f ARCHIVED and opens a successor at successorPath that
// continues its sequence-number space (spec §6.3: Rotate(file) -> successor).
func Rotate(f *File, successorPath string, opts Options) (*File, error) {
	successor, err := rotate.Successor(f.inner, successorPath, opts.toStoreOptions())
	if err != nil {
		return nil, err
	}
	return &File{inner: successor, clock: f.clock, bootID: f.bootID}, nil
}

// SuccessorPathFor derives the conventional rotated-file name for a
// directory, seqnum_id and moment of rotation (spec §6.2).
func SuccessorPathFor(dir string, seqnumID [16]byte, headSeqnum uint64, at time.Time) string {
	return rotate.SuccessorPathFor(dir, seqnumID, headSeqnum, at)
}

// Vacuum scans dir and deletes archived files past limits (spec §6.3:
// Vacuum(dir, limits) -> {files_deleted, bytes_freed}).
func Vacuum(dir string, limits SpaceLimits, now time.Time) (Stats, error) {
	return rotate.Vacuum(dir, limits, now)
}

// Flags, MatchExpr and Cursor are re-exported from internal/cursor.
type (
	Flags     = cursor.Flags
	MatchExpr = cursor.MatchExpr
	Cursor    = cursor.Cursor
	Token     = cursor.Token
	BootInfo  = cursor.BootInfo
)

// NewMatchExpr starts a match expression for OpenCursor (spec §4.5).
func NewMatchExpr() *MatchExpr { return cursor.NewMatchExpr() }

// ParseToken parses a cursor token in the grammar of spec §6.4.
func ParseToken(s string) (Token, error) { return cursor.ParseToken(s) }

// OpenCursor merges files… into one ordered, optionally filtered stream
// (spec §6.3).
func OpenCursor(files []*File, flags Flags, expr *MatchExpr) (*Cursor, error) {
	entries := make([]*cursor.FileEntry, len(files))
	for i, f := range files {
		entries[i] = cursor.NewFileEntry(f.inner)
	}
	return cursor.Open(entries, flags, expr)
}
