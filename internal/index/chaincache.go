package index

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/scttfrdmn/logarc/internal/store"
)

// chunkRef is one chunk's position in the flattened, globally-indexed view of
// a chain: item i of the chain lives at chunk.offset, local slot i-startIndex,
// for the chunk whose [startIndex, startIndex+capacity) range contains i.
type chunkRef struct {
	offset     uint64
	capacity   uint64
	startIndex uint64
}

// chainState is the cached flattening of one array chain as of the last time
// it was walked or extended.
type chainState struct {
	chunks []chunkRef
	cum    uint64 // sum of all chunks' capacities (upper bound on addressable index)
}

// maxCachedChains bounds the chain cache's memory use; a directory holding
// many per-data arrays (one per distinct field value) should not pin all of
// them in memory forever. Not part of the wire format (spec §9 Open
// Questions).
const maxCachedChains = 4096

// ChainCache memoizes the chunk layout of array chains for one open File, so
// sequential or repeated bisection against the same array amortizes to O(1)
// chunk-list lookups instead of re-walking the chain from its head every call
// (spec §4.4). Mutation only appends chunks, so a cached state is extended
// in place rather than invalidated wholesale.
type ChainCache struct {
	mu     sync.Mutex
	byHead map[uint64]*chainState
}

// NewChainCache returns an empty cache, one per open File.
func NewChainCache() *ChainCache {
	return &ChainCache{byHead: make(map[uint64]*chainState)}
}

// cacheKey hashes a file's identity together with a chain head so one
// ChainCache could in principle be shared across files without head offsets
// from different files (both valid arena positions) colliding on the same
// map slot.
func cacheKey(f *store.File, head uint64) uint64 {
	h := f.Header()
	var buf [24]byte
	copy(buf[:16], h.FileID[:])
	binary.LittleEndian.PutUint64(buf[16:], head)
	return xxhash.Sum64(buf[:])
}

// resolve returns the up-to-date chunk list for the array rooted at head,
// building it on first sight and extending it if chunks have been appended
// since it was last seen. head == 0 means an empty array.
func (c *ChainCache) resolve(f *store.File, head uint64, compact bool) (*chainState, error) {
	if head == 0 {
		return &chainState{}, nil
	}
	key := cacheKey(f, head)

	c.mu.Lock()
	state, ok := c.byHead[key]
	c.mu.Unlock()

	if !ok {
		built, err := walkChain(f, head, compact)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if len(c.byHead) >= maxCachedChains {
			c.byHead = make(map[uint64]*chainState)
		}
		c.byHead[key] = built
		c.mu.Unlock()
		return built, nil
	}

	if len(state.chunks) == 0 {
		return state, nil
	}
	last := state.chunks[len(state.chunks)-1]
	chunk, err := store.OpenEntryArrayChunk(f, last.offset, compact)
	if err != nil {
		return nil, err
	}
	next := chunk.NextChunkOffset()
	if next == 0 {
		return state, nil
	}

	extension, err := walkChain(f, next, compact)
	if err != nil {
		return nil, err
	}
	for i := range extension.chunks {
		extension.chunks[i].startIndex += state.cum
	}
	extended := &chainState{
		chunks: append(append([]chunkRef{}, state.chunks...), extension.chunks...),
		cum:    state.cum + extension.cum,
	}

	c.mu.Lock()
	c.byHead[key] = extended
	c.mu.Unlock()
	return extended, nil
}

// walkChain builds a fresh chunk list starting at head. Chunk sizes grow
// geometrically, so this is O(log N) chunk hops for an N-item chain.
func walkChain(f *store.File, head uint64, compact bool) (*chainState, error) {
	var chunks []chunkRef
	var cum uint64
	offset := head
	for offset != 0 {
		chunk, err := store.OpenEntryArrayChunk(f, offset, compact)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunkRef{offset: offset, capacity: chunk.Capacity(), startIndex: cum})
		cum += chunk.Capacity()
		offset = chunk.NextChunkOffset()
	}
	return &chainState{chunks: chunks, cum: cum}, nil
}

// itemAt returns the item stored at global index i (0-indexed) within state's
// chain, which is an entry offset (the caller then Extractor's it).
func itemAt(f *store.File, state *chainState, compact bool, i uint64) (uint64, error) {
	lo, hi := 0, len(state.chunks)
	for lo < hi {
		mid := (lo + hi) / 2
		c := state.chunks[mid]
		if i < c.startIndex {
			hi = mid
		} else if i >= c.startIndex+c.capacity {
			lo = mid + 1
		} else {
			chunk, err := store.OpenEntryArrayChunk(f, c.offset, compact)
			if err != nil {
				return 0, err
			}
			return chunk.Get(i - c.startIndex), nil
		}
	}
	return 0, nil
}
