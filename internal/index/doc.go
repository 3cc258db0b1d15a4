// Package index bisects the chunked entry arrays of internal/store by a
// monotonic extractor (seqnum, realtime, monotonic-within-a-boot, or an
// array's own entry identity), descending the chunk chain before bisecting
// within the winning chunk. A per-array chain cache memoizes the chunk list
// so repeated or sequential lookups against the same array don't re-walk the
// chain from its head every time.
package index
