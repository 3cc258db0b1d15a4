package rotate

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/scttfrdmn/logarc/internal/batch"
	"github.com/scttfrdmn/logarc/internal/store"
	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

type vacuumCandidate struct {
	path         string
	headRealtime uint64
	bytes        uint64
}

// Vacuum scans dir for archived journal files and deletes the ones spec
// §4.3's retention policy marks eligible: first anything whose oldest entry
// is older than limits.MaxFileAge, then — while total usage still exceeds
// limits.MaxUse, available space is still under limits.KeepFree, or the
// file count still exceeds limits.NMaxFiles — the archived file with the
// smallest head_entry_realtime, oldest first. A zero limit field disables
// that particular check. The single ONLINE file is never a candidate; a
// file that fails to open (corrupt, mid-rotation) is left alone rather than
// guessed about.
func Vacuum(dir string, limits Limits, now time.Time) (batch.Stats, error) {
	journalEntries, err := os.ReadDir(dir)
	if err != nil {
		return batch.Stats{}, logerrors.NewError(logerrors.ErrCodeIO, "failed to list journal directory").
			WithComponent("rotate").WithOperation("Vacuum").WithCause(err)
	}

	var candidates []vacuumCandidate
	var totalUsage uint64
	fileCount := 0

	for _, entry := range journalEntries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".journal") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			continue
		}
		size := uint64(info.Size())

		f, err := store.Open(path, store.ModeRead, store.Options{})
		if err != nil {
			continue
		}
		state := f.Header().State
		headRealtime := f.Header().HeadEntryRealtime
		f.Close()

		fileCount++
		totalUsage += size

		if state != store.StateArchived {
			continue
		}
		candidates = append(candidates, vacuumCandidate{path: path, headRealtime: headRealtime, bytes: size})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].headRealtime < candidates[j].headRealtime
	})

	available, err := filesystemAvailable(dir)
	if err != nil {
		return batch.Stats{}, err
	}

	deleted := make(map[string]bool, len(candidates))
	var toDelete []batch.DeleteOp

	markDeleted := func(c vacuumCandidate) {
		deleted[c.path] = true
		toDelete = append(toDelete, batch.DeleteOp{Path: c.path, Bytes: c.bytes})
		totalUsage -= c.bytes
		available += c.bytes
		fileCount--
	}

	if limits.MaxFileAge > 0 {
		cutoff := uint64(now.Add(-limits.MaxFileAge).UnixMicro())
		for _, c := range candidates {
			if c.headRealtime < cutoff {
				markDeleted(c)
			}
		}
	}

	for _, c := range candidates {
		if deleted[c.path] {
			continue
		}
		overMaxUse := limits.MaxUse > 0 && totalUsage > limits.MaxUse
		underKeepFree := limits.KeepFree > 0 && available < limits.KeepFree
		overNMaxFiles := limits.NMaxFiles > 0 && fileCount > limits.NMaxFiles
		if !overMaxUse && !underKeepFree && !overNMaxFiles {
			break
		}
		markDeleted(c)
	}

	batcher := batch.NewDeleteBatcher(batch.Config{}, os.Remove)
	return batcher.Run(toDelete)
}
