package cursor

import (
	"github.com/scttfrdmn/logarc/internal/index"
	"github.com/scttfrdmn/logarc/internal/store"
)

// Primitive is one FIELD=value match (spec §4.5).
type Primitive struct {
	Field string
	Value []byte
}

// Conjunction is an AND of OR-groups; each group holds primitives that share
// one field and are OR'd together (spec §4.5: "matches with the same FIELD
// form an OR group... OR groups joined implicitly by AND").
type Conjunction struct {
	Groups [][]Primitive
}

// MatchExpr is an OR of Conjunctions, the disjunction introduced by an
// explicit separator (spec §4.5). The zero value (no disjuncts) matches
// nothing; use NewMatchExpr to start one that matches everything added to
// it via AddMatch/AddDisjunction, mirroring journald's add_match /
// add_disjunction call shape.
type MatchExpr struct {
	Disjuncts []Conjunction
}

// NewMatchExpr returns an expression with one empty conjunction ready for
// AddMatch calls.
func NewMatchExpr() *MatchExpr {
	return &MatchExpr{Disjuncts: []Conjunction{{}}}
}

// AddMatch adds FIELD=value to the current conjunction's trailing OR-group
// if it shares the same field, or starts a new AND'd group otherwise.
func (m *MatchExpr) AddMatch(field string, value []byte) {
	conj := &m.Disjuncts[len(m.Disjuncts)-1]
	if n := len(conj.Groups); n > 0 && conj.Groups[n-1][0].Field == field {
		conj.Groups[n-1] = append(conj.Groups[n-1], Primitive{Field: field, Value: value})
		return
	}
	conj.Groups = append(conj.Groups, []Primitive{{Field: field, Value: value}})
}

// AddDisjunction starts a new conjunction, OR'd with the ones already added.
func (m *MatchExpr) AddDisjunction() {
	m.Disjuncts = append(m.Disjuncts, Conjunction{})
}

// evalMatch returns the sorted, deduplicated entry offsets in f matching
// expr, resolved via each primitive's interned DATA object and its per-data
// entry array rather than a full scan (spec §4.5).
func evalMatch(f *store.File, ix *index.Index, expr *MatchExpr) ([]uint64, error) {
	var union []uint64
	first := true
	for _, conj := range expr.Disjuncts {
		entries, err := evalConjunction(f, ix, conj)
		if err != nil {
			return nil, err
		}
		if first {
			union = entries
			first = false
		} else {
			union = unionSorted(union, entries)
		}
	}
	return union, nil
}

func evalConjunction(f *store.File, ix *index.Index, conj Conjunction) ([]uint64, error) {
	if len(conj.Groups) == 0 {
		return nil, nil
	}
	var result []uint64
	for i, group := range conj.Groups {
		entries, err := evalGroup(f, ix, group)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = entries
		} else {
			result = intersectSorted(result, entries)
		}
		if len(result) == 0 {
			return nil, nil
		}
	}
	return result, nil
}

func evalGroup(f *store.File, ix *index.Index, group []Primitive) ([]uint64, error) {
	var result []uint64
	for i, p := range group {
		entries, err := dataEntries(f, ix, p.Field, p.Value)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result = entries
		} else {
			result = unionSorted(result, entries)
		}
	}
	return result, nil
}

// dataEntries returns the entry offsets referencing the DATA object for
// field=value in f, or nil if that value was never interned there.
func dataEntries(f *store.File, ix *index.Index, field string, value []byte) ([]uint64, error) {
	d, found, err := lookupData(f, field, value)
	if err != nil || !found {
		return nil, err
	}
	return ix.Items(d.EntryArrayOffset, 0, d.NEntries)
}

// lookupData walks f's DATA hash table read-only, mirroring
// internal/append/intern.go's lookup half without the create-on-miss path.
func lookupData(f *store.File, field string, value []byte) (*store.DataObject, bool, error) {
	h := f.Header()
	if h.DataHashTableOffset == 0 {
		return nil, false, nil
	}
	payload := append([]byte(field+"="), value...)
	hash := store.HashPayload(h.FileID, payload)

	ht, err := store.OpenHashTable(f, h.DataHashTableOffset, store.ObjectDataHashTable)
	if err != nil {
		return nil, false, err
	}
	nextOffset := func(o uint64) uint64 {
		d, rerr := store.ReadData(f, o)
		if rerr != nil {
			return 0
		}
		return d.NextHashOffset
	}
	match := func(o uint64) bool {
		d, rerr := store.ReadData(f, o)
		return rerr == nil && string(d.Payload) == string(payload)
	}

	offset, found := ht.Lookup(hash, nextOffset, match)
	if !found {
		return nil, false, nil
	}
	d, err := store.ReadData(f, offset)
	return d, true, err
}

// intersectSorted and unionSorted merge two ascending, duplicate-free entry
// offset slices. Offsets are strictly increasing with append order (the
// arena only grows), so every per-data entry array is already sorted this
// way and a two-pointer merge suffices — no separate sort step.
func intersectSorted(a, b []uint64) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

func unionSorted(a, b []uint64) []uint64 {
	var out []uint64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			out = append(out, a[i])
			i++
		case a[i] > b[j]:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
