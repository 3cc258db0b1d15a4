// Package store implements the on-disk file layout and typed object arena
// that every other logarc component builds on: the mmap'd header, the
// append-only object arena (DATA, FIELD, ENTRY, hash tables, ENTRY_ARRAY,
// TAG), bounds-checked typed reads, and bump-pointer allocation. Each file
// is mapped whole as one region; there is no window cache over parts of it.
//
// Nothing in this package assigns sequence numbers or decides match
// semantics; it only knows how to lay out and retrieve typed byte ranges
// inside one file. See internal/append for the write path and
// internal/index/internal/cursor for query paths built on top of it.
package store
