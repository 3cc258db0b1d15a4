package rotate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/scttfrdmn/logarc/internal/store"
)

func makeJournalFile(t *testing.T, dir, name string, state store.State, headRealtime uint64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := store.Create(path, store.Options{InitialArenaCap: 1 << 20})
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}
	h := f.Header()
	h.State = state
	h.HeadEntryRealtime = headRealtime
	if err := f.FlushHeader(); err != nil {
		t.Fatalf("FlushHeader: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return path
}

func TestVacuumNeverDeletesOnline(t *testing.T) {
	dir := t.TempDir()
	online := makeJournalFile(t, dir, "a.journal", store.StateOnline, 1000)

	now := time.UnixMicro(10_000_000)
	stats, err := Vacuum(dir, Limits{MaxFileAge: time.Microsecond}, now)
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if stats.FilesDeleted != 0 {
		t.Fatalf("got %d files deleted, want 0 (ONLINE file must survive)", stats.FilesDeleted)
	}
	if _, err := os.Stat(online); err != nil {
		t.Fatalf("online file was removed: %v", err)
	}
}

func TestVacuumDeletesArchivedPastMaxAge(t *testing.T) {
	dir := t.TempDir()
	old := makeJournalFile(t, dir, "old.journal", store.StateArchived, 1_000_000)
	recent := makeJournalFile(t, dir, "recent.journal", store.StateArchived, 9_500_000)

	now := time.UnixMicro(10_000_000)
	stats, err := Vacuum(dir, Limits{MaxFileAge: 1 * time.Second}, now)
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if stats.FilesDeleted != 1 {
		t.Fatalf("got %d files deleted, want 1", stats.FilesDeleted)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Fatalf("expected old.journal to be removed, stat err=%v", err)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Fatalf("recent.journal should survive: %v", err)
	}
}

func TestVacuumDeletesOldestFirstWhenOverFileCount(t *testing.T) {
	dir := t.TempDir()
	f1 := makeJournalFile(t, dir, "f1.journal", store.StateArchived, 1000)
	f2 := makeJournalFile(t, dir, "f2.journal", store.StateArchived, 2000)
	f3 := makeJournalFile(t, dir, "f3.journal", store.StateArchived, 3000)

	now := time.UnixMicro(10_000_000)
	stats, err := Vacuum(dir, Limits{NMaxFiles: 2}, now)
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if stats.FilesDeleted != 1 {
		t.Fatalf("got %d files deleted, want 1", stats.FilesDeleted)
	}
	if _, err := os.Stat(f1); !os.IsNotExist(err) {
		t.Fatalf("expected the oldest file f1.journal to be removed, stat err=%v", err)
	}
	if _, err := os.Stat(f2); err != nil {
		t.Fatalf("f2.journal should survive: %v", err)
	}
	if _, err := os.Stat(f3); err != nil {
		t.Fatalf("f3.journal should survive: %v", err)
	}
}

func TestVacuumNoOpWithinLimits(t *testing.T) {
	dir := t.TempDir()
	makeJournalFile(t, dir, "f1.journal", store.StateArchived, 1000)
	makeJournalFile(t, dir, "f2.journal", store.StateArchived, 2000)

	now := time.UnixMicro(10_000_000)
	stats, err := Vacuum(dir, Limits{NMaxFiles: 10}, now)
	if err != nil {
		t.Fatalf("Vacuum: %v", err)
	}
	if stats.FilesDeleted != 0 {
		t.Fatalf("got %d files deleted, want 0", stats.FilesDeleted)
	}
}
