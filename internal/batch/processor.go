// Package batch bounds how many archived-file deletions vacuum runs
// concurrently, so a directory holding thousands of eligible files doesn't
// spawn thousands of concurrent unlinks.
package batch

import (
	"sync"

	"go.uber.org/multierr"
)

// DeleteOp is one file vacuum has decided to remove.
type DeleteOp struct {
	Path  string
	Bytes uint64
}

// Config bounds a DeleteBatcher's concurrency.
type Config struct {
	MaxConcurrency int // default 8 if <= 0
}

// Stats summarizes one Run.
type Stats struct {
	FilesDeleted int
	BytesFreed   uint64
	ErrorCount   int
}

// DeleteBatcher runs a delete function over a list of files with bounded
// concurrency, accumulating per-file failures rather than stopping at the
// first one (spec §7's "vacuum reports partial success with a summary").
type DeleteBatcher struct {
	maxConcurrency int
	remove         func(path string) error
}

// NewDeleteBatcher constructs a batcher that calls remove for each file Run
// is given. remove is injected so tests can substitute a fake filesystem.
func NewDeleteBatcher(cfg Config, remove func(path string) error) *DeleteBatcher {
	n := cfg.MaxConcurrency
	if n <= 0 {
		n = 8
	}
	return &DeleteBatcher{maxConcurrency: n, remove: remove}
}

// Run deletes every op concurrently (bounded by maxConcurrency), returning
// aggregate stats and a combined error (via multierr) of whatever failed.
// A failure on one file does not stop the others from being attempted.
func (b *DeleteBatcher) Run(ops []DeleteOp) (Stats, error) {
	if len(ops) == 0 {
		return Stats{}, nil
	}

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		stats Stats
		err   error
	)
	sem := make(chan struct{}, b.maxConcurrency)

	for _, op := range ops {
		wg.Add(1)
		sem <- struct{}{}
		go func(op DeleteOp) {
			defer wg.Done()
			defer func() { <-sem }()

			removeErr := b.remove(op.Path)

			mu.Lock()
			defer mu.Unlock()
			if removeErr != nil {
				stats.ErrorCount++
				err = multierr.Append(err, removeErr)
				return
			}
			stats.FilesDeleted++
			stats.BytesFreed += op.Bytes
		}(op)
	}

	wg.Wait()
	return stats, err
}
