// Package append implements the ingest pipeline: turning an ordered set of
// key=value iovecs into one durable ENTRY object in the active file. It owns
// DATA/FIELD interning, sequence-number assignment and the strict-order
// invariant, ENTRY linking into the global and per-data arrays, and the
// deferred header-flush commit point (spec §4.2).
package append
