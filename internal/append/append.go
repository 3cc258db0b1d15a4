package append

import (
	"regexp"
	"time"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
	"github.com/scttfrdmn/logarc/internal/store"
)

// Iovec is one key=value pair supplied to Append. Keys must match
// keyPattern; values are arbitrary bytes and may repeat across iovecs in the
// same call (multivalued fields, spec §4.2).
type Iovec struct {
	Key   string
	Value []byte
}

var keyPattern = regexp.MustCompile(`^[A-Z_][A-Z0-9_]*$`)

// maxValueSize is 2^32-1, the boundary named explicitly in spec §8 boundary
// behaviors: a value of exactly this size succeeds, one byte larger does not.
const maxValueSize = (1 << 32) - 1

// Timestamps carries caller-supplied clock values; zero fields are filled by
// the engine's own clocks.
type Timestamps struct {
	Realtime  uint64 // microseconds since epoch, 0 means "fill with time.Now()"
	Monotonic uint64 // microseconds since an arbitrary epoch, 0 means "fill with a monotonic reader"
}

// Result is returned by a successful Append (spec §6.3).
type Result struct {
	Seqnum   uint64
	Realtime uint64
}

// Clock supplies realtime/monotonic readings when the caller leaves
// Timestamps zero. Tests substitute a fixed clock; production code uses
// systemClock.
type Clock interface {
	Realtime() uint64
	Monotonic() uint64
}

type systemClock struct{ start time.Time }

// NewSystemClock returns a Clock reading the wall clock and a process-local
// monotonic counter anchored at construction time.
func NewSystemClock() Clock {
	return &systemClock{start: time.Now()}
}

func (c *systemClock) Realtime() uint64 {
	return uint64(time.Now().UnixMicro())
}

func (c *systemClock) Monotonic() uint64 {
	return uint64(time.Since(c.start).Microseconds())
}

// validate checks the structural requirements of spec §4.2 and §8 boundary
// behaviors before anything is interned.
func validate(iovecs []Iovec) error {
	if len(iovecs) == 0 {
		return logerrors.NewError(logerrors.ErrCodeInvalidArgument, "append requires at least one key/value pair").
			WithComponent("append").WithOperation("Append")
	}
	for _, iv := range iovecs {
		if !keyPattern.MatchString(iv.Key) {
			return logerrors.NewError(logerrors.ErrCodeInvalidArgument, "malformed field key").
				WithComponent("append").WithOperation("Append").WithDetail("key", iv.Key)
		}
		if len(iv.Value) > maxValueSize {
			return logerrors.NewError(logerrors.ErrCodeInvalidArgument, "value exceeds maximum size").
				WithComponent("append").WithOperation("Append").
				WithDetail("key", iv.Key).WithDetail("size", len(iv.Value))
		}
	}
	return nil
}

// Append performs the full algorithm of spec §4.2 against f, returning the
// assigned seqnum and realtime on success. f must be ONLINE; callers that
// catch a rotate-class error are expected to rotate and retry once
// themselves — Append never rotates on its own.
func Append(f *store.File, iovecs []Iovec, ts Timestamps, bootID [16]byte, clock Clock) (Result, error) {
	if err := validate(iovecs); err != nil {
		return Result{}, err
	}

	f.Lock()
	defer f.Unlock()

	h := f.Header()
	if h.State != store.StateOnline {
		return Result{}, logerrors.NewError(logerrors.ErrCodeStateConflict, "append on a non-ONLINE file").
			WithComponent("append").WithOperation("Append").WithFileID(f.IDString())
	}

	realtime := ts.Realtime
	if realtime == 0 {
		realtime = clock.Realtime()
	}
	monotonic := ts.Monotonic
	if monotonic == 0 {
		monotonic = clock.Monotonic()
	}

	if f.StrictOrder() && h.NEntries > 0 {
		if realtime < h.TailEntryRealtime || monotonic < h.TailEntryMonotonic {
			return Result{}, logerrors.NewError(logerrors.ErrCodeOutOfOrder, "realtime/monotonic went backwards under strict order").
				WithComponent("append").WithOperation("Append").WithFileID(f.IDString()).
				WithDetail("tail_realtime", h.TailEntryRealtime).WithDetail("realtime", realtime).
				WithDetail("tail_monotonic", h.TailEntryMonotonic).WithDetail("monotonic", monotonic)
		}
	}

	items, hashes, err := internAll(f, iovecs)
	if err != nil {
		return Result{}, err
	}

	seqnum := h.TailEntrySeqnum + 1
	xor := store.XorHash(hashes)

	entryOffset, err := store.WriteEntry(f, h.Compact(), seqnum, realtime, monotonic, bootID, xor, items)
	if err != nil {
		return Result{}, err
	}

	newHead, _, err := store.AppendArrayChain(f, h.Compact(), h.EntryArrayOffset, entryOffset)
	if err != nil {
		return Result{}, err
	}
	h.EntryArrayOffset = newHead

	if err := linkEntryIntoDataArrays(f, h.Compact(), items, entryOffset); err != nil {
		return Result{}, err
	}

	if h.NEntries == 0 {
		h.HeadEntrySeqnum = seqnum
		h.HeadEntryRealtime = realtime
	}
	h.TailEntrySeqnum = seqnum
	h.TailEntryRealtime = realtime
	h.TailEntryMonotonic = monotonic
	h.BootIDTail = bootID
	h.NEntries++

	return Result{Seqnum: seqnum, Realtime: realtime}, nil
}

// internAll interns every iovec as a DATA object (creating its FIELD and
// hash-table entries on first sight), returning the ENTRY items to embed and
// the raw hashes for the ENTRY's XOR field.
func internAll(f *store.File, iovecs []Iovec) ([]store.EntryItem, []uint64, error) {
	items := make([]store.EntryItem, 0, len(iovecs))
	hashes := make([]uint64, 0, len(iovecs))

	for _, iv := range iovecs {
		payload := append([]byte(iv.Key), '=')
		payload = append(payload, iv.Value...)

		offset, hash, err := internData(f, iv.Key, payload)
		if err != nil {
			return nil, nil, err
		}
		items = append(items, store.EntryItem{DataOffset: offset, DataHash: hash})
		hashes = append(hashes, hash)
	}
	return items, hashes, nil
}

// linkEntryIntoDataArrays appends entryOffset to each referenced DATA
// object's per-data entry array and bumps its n_entries counter (spec §4.2
// step 5).
func linkEntryIntoDataArrays(f *store.File, compact bool, items []store.EntryItem, entryOffset uint64) error {
	for _, item := range items {
		d, err := store.ReadData(f, item.DataOffset)
		if err != nil {
			return err
		}
		newHead, _, err := store.AppendArrayChain(f, compact, d.EntryArrayOffset, entryOffset)
		if err != nil {
			return err
		}
		d.SetEntryArrayOffset(f, newHead)
		d.IncrementNEntries(f)
	}
	return nil
}
