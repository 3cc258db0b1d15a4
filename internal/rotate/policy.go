package rotate

import "github.com/scttfrdmn/logarc/internal/store"

// RotationPolicy decides whether the active file should be rotated before
// the next append proceeds. Implementations inspect only the active file's
// header, so policies compose without I/O of their own.
type RotationPolicy interface {
	ShouldRotate(h *store.Header) (bool, string)
}

// MaxFileSizePolicy rotates once the arena has grown past a byte limit.
type MaxFileSizePolicy struct {
	MaxBytes uint64
}

func (p MaxFileSizePolicy) ShouldRotate(h *store.Header) (bool, string) {
	if h.ArenaSize >= p.MaxBytes {
		return true, "max file size reached"
	}
	return false, ""
}

// MaxEntriesPolicy rotates once a file has accumulated too many entries,
// bounding per-file index depth independent of entry size.
type MaxEntriesPolicy struct {
	MaxEntries uint64
}

func (p MaxEntriesPolicy) ShouldRotate(h *store.Header) (bool, string) {
	if h.NEntries >= p.MaxEntries {
		return true, "max entry count reached"
	}
	return false, ""
}

// HashTableLoadFactorPolicy rotates once the DATA hash table's load factor
// reaches the configured threshold, keeping hash chains short (spec §9 Open
// Questions). The FIELD hash table is not inspected.
type HashTableLoadFactorPolicy struct {
	f         *store.File
	MaxFactor float64
}

// NewHashTableLoadFactorPolicy binds the policy to the file whose hash
// tables it inspects; ShouldRotate is otherwise stateless.
func NewHashTableLoadFactorPolicy(f *store.File, maxFactor float64) *HashTableLoadFactorPolicy {
	if maxFactor <= 0 {
		maxFactor = store.HashTableLoadFactor
	}
	return &HashTableLoadFactorPolicy{f: f, MaxFactor: maxFactor}
}

func (p *HashTableLoadFactorPolicy) ShouldRotate(h *store.Header) (bool, string) {
	if h.DataHashTableOffset == 0 {
		return false, ""
	}
	ht, err := store.OpenHashTable(p.f, h.DataHashTableOffset, store.ObjectDataHashTable)
	if err != nil {
		return false, ""
	}
	if ht.LoadFactor() >= p.MaxFactor {
		return true, "data hash table load factor exceeded"
	}
	return false, ""
}

// CompositePolicy rotates if any of its member policies would.
type CompositePolicy struct {
	policies []RotationPolicy
}

// NewCompositePolicy combines policies; the first one to trigger supplies
// the reason string.
func NewCompositePolicy(policies ...RotationPolicy) *CompositePolicy {
	return &CompositePolicy{policies: policies}
}

func (c *CompositePolicy) ShouldRotate(h *store.Header) (bool, string) {
	for _, p := range c.policies {
		if rotate, reason := p.ShouldRotate(h); rotate {
			return true, reason
		}
	}
	return false, ""
}

// DefaultPolicy rotates at 128MiB or 1,000,000 entries, whichever comes
// first — a reasonable default when the caller hasn't configured explicit
// limits (options Metrics fields all zero).
func DefaultPolicy() RotationPolicy {
	return NewCompositePolicy(
		MaxFileSizePolicy{MaxBytes: 128 * 1024 * 1024},
		MaxEntriesPolicy{MaxEntries: 1_000_000},
	)
}
