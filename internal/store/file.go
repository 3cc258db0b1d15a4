package store

import (
	"crypto/rand"
	"fmt"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"
	"golang.org/x/sys/unix"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

// Mode selects how a file is opened (spec §6.3).
type Mode int

const (
	ModeRead Mode = iota
	ModeAppend
	ModeAppendCreate
)

// Options configure a newly opened or created file (spec §6.3).
type Options struct {
	CompressThreshold uint64
	Seal              bool
	StrictOrder       bool

	// InitialArenaCap bounds how large the arena may grow before Allocate
	// starts returning SpaceExhausted. A writable file is sized to the full
	// cap when it is opened.
	InitialArenaCap uint64

	// MachineID scopes this file to one host; OtherHost is returned on
	// append if an existing file's MachineID disagrees.
	MachineID [16]byte

	// SeqnumID, when non-zero, seeds a successor file created by rotation so
	// it continues the same sequence-number space (spec §4.3). Zero means
	// "generate a fresh one", used for a file with no predecessor.
	SeqnumID [16]byte

	// PredecessorTailSeqnum seeds HeadEntrySeqnum's base for a rotated
	// successor so assigned seqnums continue strictly increasing.
	PredecessorTailSeqnum uint64

	// PredecessorBootIDTail is inherited by a rotated successor.
	PredecessorBootIDTail [16]byte
}

const defaultArenaCap = 128 * 1024 * 1024 // 128 MiB, matches typical per-file journal size caps.

// File is one open, memory-mapped journal file: the header plus everything
// MapObject/Allocate need to read and grow the arena. It does not know about
// seqnum assignment or match evaluation — see internal/append, internal/index,
// and internal/cursor for the layers built on top.
type File struct {
	mu sync.Mutex

	path     string
	fd       *os.File
	mapped   mmap.MMap
	writable bool
	locked   bool

	header   *Header
	arenaCap uint64

	strictOrder bool
	compressThreshold uint64
}

// IDString renders FileID as lowercase hex, used in log/error context.
func (f *File) IDString() string {
	return fmt.Sprintf("%x", f.header.FileID)
}

func (f *File) arena() []byte {
	return f.mapped
}

func newRandomID() ([16]byte, error) {
	var id [16]byte
	if _, err := rand.Read(id[:]); err != nil {
		return id, logerrors.NewError(logerrors.ErrCodeIO, "failed to generate random id").WithCause(err)
	}
	return id, nil
}

// Create initializes a brand-new journal file at path with a fresh header.
// If opts.SeqnumID is zero a fresh seqnum_id is generated; otherwise the
// caller (internal/rotate) is seeding a successor file.
func Create(path string, opts Options) (*File, error) {
	fd, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to create journal file").
			WithComponent("store").WithOperation("Create").WithCause(err)
	}

	fileID, err := newRandomID()
	if err != nil {
		fd.Close()
		os.Remove(path)
		return nil, err
	}

	seqnumID := opts.SeqnumID
	if seqnumID == ([16]byte{}) {
		seqnumID, err = newRandomID()
		if err != nil {
			fd.Close()
			os.Remove(path)
			return nil, err
		}
	}

	arenaCap := opts.InitialArenaCap
	if arenaCap == 0 {
		arenaCap = defaultArenaCap
	}

	h := &Header{
		State:              StateOnline,
		FileID:             fileID,
		MachineID:          opts.MachineID,
		SeqnumID:           seqnumID,
		BootIDTail:         opts.PredecessorBootIDTail,
		HeaderSize:         HeaderSize,
		ArenaSize:          HeaderSize,
		HeadEntrySeqnum:    opts.PredecessorTailSeqnum,
		TailEntrySeqnum:    opts.PredecessorTailSeqnum,
		TailObjectOffset:   0,
	}
	if opts.Seal {
		h.IncompatibleFlags |= IncompatFlagSealed
	}

	if err := fd.Truncate(int64(HeaderSize)); err != nil {
		fd.Close()
		os.Remove(path)
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to size new file").WithCause(err)
	}
	if _, err := fd.WriteAt(EncodeHeader(h), 0); err != nil {
		fd.Close()
		os.Remove(path)
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to write initial header").WithCause(err)
	}

	f, err := openMapped(fd, path, h, true, arenaCap, opts)
	if err != nil {
		os.Remove(path)
		return nil, err
	}
	return f, nil
}

// Open maps an existing journal file. A file found in StateOnline is treated
// as uncleanly shut down (spec §3.1); Open still succeeds for ModeRead so a
// cursor can read the consistent prefix, but append on a dirty file returns
// DirtyShutdown so the caller quarantines and rotates.
func Open(path string, mode Mode, opts Options) (*File, error) {
	flag := os.O_RDONLY
	writable := mode != ModeRead
	if writable {
		flag = os.O_RDWR
	}

	fd, err := os.OpenFile(path, flag, 0644)
	if err != nil {
		if os.IsNotExist(err) && mode == ModeAppendCreate {
			return Create(path, opts)
		}
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to open journal file").
			WithComponent("store").WithOperation("Open").WithCause(err)
	}

	info, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to stat journal file").WithCause(err)
	}
	if info.Size() < HeaderSize {
		fd.Close()
		return nil, logerrors.NewError(logerrors.ErrCodeCorrupted, "file smaller than header").
			WithComponent("store").WithOperation("Open")
	}

	hdrBuf := make([]byte, HeaderSize)
	if _, err := fd.ReadAt(hdrBuf, 0); err != nil {
		fd.Close()
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to read header").WithCause(err)
	}
	h, err := DecodeHeader(hdrBuf)
	if err != nil {
		fd.Close()
		return nil, err
	}

	arenaCap := opts.InitialArenaCap
	if arenaCap == 0 {
		arenaCap = defaultArenaCap
	}
	if h.ArenaSize > arenaCap {
		arenaCap = h.ArenaSize
	}

	dirty := h.State == StateOnline
	if writable && dirty {
		fd.Close()
		return nil, logerrors.NewError(logerrors.ErrCodeDirtyShutdown, "file was left ONLINE; rotate to a fresh file").
			WithComponent("store").WithOperation("Open").WithFileID(fmt.Sprintf("%x", h.FileID))
	}

	f, err := openMapped(fd, path, h, writable, arenaCap, opts)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func openMapped(fd *os.File, path string, h *Header, writable bool, arenaCap uint64, opts Options) (*File, error) {
	prot := mmap.RDONLY
	if writable {
		prot = mmap.RDWR
	}

	locked := false
	if writable {
		if err := unix.Flock(int(fd.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			fd.Close()
			return nil, logerrors.NewError(logerrors.ErrCodeStateConflict, "another writer holds this file").
				WithComponent("store").WithOperation("Open").WithCause(err)
		}
		locked = true
	}

	if writable {
		if err := fd.Truncate(int64(arenaCap)); err != nil {
			fd.Close()
			return nil, logerrors.NewError(logerrors.ErrCodeIO, "failed to reserve arena capacity").WithCause(err)
		}
	}

	mapped, err := mmap.Map(fd, prot, 0)
	if err != nil {
		fd.Close()
		return nil, logerrors.NewError(logerrors.ErrCodeIO, "mmap failed").
			WithComponent("store").WithOperation("Open").WithCause(err)
	}

	f := &File{
		path:              path,
		fd:                fd,
		mapped:            mapped,
		writable:          writable,
		locked:            locked,
		header:            h,
		arenaCap:          arenaCap,
		strictOrder:       opts.StrictOrder,
		compressThreshold: opts.CompressThreshold,
	}
	return f, nil
}

// growTo ensures the backing file (and its mapping) cover at least newSize
// bytes. mmap-go mappings are fixed at creation, so growth remaps.
func (f *File) growTo(newSize uint64) error {
	if newSize <= uint64(len(f.mapped)) {
		return nil
	}
	if err := f.mapped.Unmap(); err != nil {
		return logerrors.NewError(logerrors.ErrCodeIO, "failed to unmap before growth").WithCause(err)
	}
	grown := newSize
	if grown < f.arenaCap {
		grown = f.arenaCap
	}
	if err := f.fd.Truncate(int64(grown)); err != nil {
		return logerrors.NewError(logerrors.ErrCodeIO, "failed to grow file").WithCause(err)
	}
	mapped, err := mmap.Map(f.fd, mmap.RDWR, 0)
	if err != nil {
		return logerrors.NewError(logerrors.ErrCodeIO, "failed to remap after growth").WithCause(err)
	}
	f.mapped = mapped
	return nil
}

// Header returns the in-memory header. Callers in internal/append mutate its
// tail_* fields directly under File's lock before calling FlushHeader.
func (f *File) Header() *Header {
	return f.header
}

// Lock/Unlock expose File's mutex to internal/append, which must hold it
// across the whole intern-assign-link-commit sequence of one Append call.
func (f *File) Lock()   { f.mu.Lock() }
func (f *File) Unlock() { f.mu.Unlock() }

func (f *File) ArenaCap() uint64 { return f.arenaCap }
func (f *File) Path() string     { return f.path }
func (f *File) StrictOrder() bool { return f.strictOrder }
func (f *File) CompressThreshold() uint64 { return f.compressThreshold }

// FlushHeader re-encodes the in-memory header into the mapped region. This is
// the commit point described in spec §4.2 step 6; the caller decides whether
// to follow it with an immediate Sync or let it ride the coalescing timer.
func (f *File) FlushHeader() error {
	if !f.writable {
		return logerrors.NewError(logerrors.ErrCodeStateConflict, "cannot flush header of a read-only file").
			WithComponent("store").WithOperation("FlushHeader")
	}
	copy(f.mapped[:HeaderSize], EncodeHeader(f.header))
	return nil
}

// Sync performs a synchronous mmap flush to disk, for callers that need
// immediate durability rather than the ~250ms coalescing window.
func (f *File) Sync() error {
	if err := f.mapped.Flush(); err != nil {
		return logerrors.NewError(logerrors.ErrCodeIO, "mmap flush failed").
			WithComponent("store").WithOperation("Sync").WithCause(err)
	}
	return nil
}

// Rotate marks this file ARCHIVED and flushes the header synchronously. The
// caller (internal/rotate) is responsible for opening the successor.
func (f *File) Rotate() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.header.State = StateArchived
	if err := f.FlushHeader(); err != nil {
		return err
	}
	return f.Sync()
}

// Close cleanly transitions an ONLINE file to OFFLINE, flushes, unmaps, and
// releases the advisory lock.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writable && f.header.State == StateOnline {
		f.header.State = StateOffline
		if err := f.FlushHeader(); err != nil {
			return err
		}
		if err := f.mapped.Flush(); err != nil {
			return logerrors.NewError(logerrors.ErrCodeIO, "final flush failed").WithCause(err)
		}
	}

	if err := f.mapped.Unmap(); err != nil {
		return logerrors.NewError(logerrors.ErrCodeIO, "unmap failed").WithCause(err)
	}
	if f.locked {
		_ = unix.Flock(int(f.fd.Fd()), unix.LOCK_UN)
	}
	return f.fd.Close()
}
