// Package cursor merges entries across N open files in the order of spec
// §4.5: primary key realtime, tie-broken by (seqnum_id, seqnum), duplicate
// entries collapsed in favor of the ARCHIVED copy. It also evaluates boolean
// FIELD=value match expressions against each file's per-data entry arrays, so
// a filtered cursor visits only matching entries rather than the whole
// stream, and serializes/parses the opaque cursor token of spec §6.4.
package cursor
