package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestDeleteBatcherRemovesFiles(t *testing.T) {
	dir := t.TempDir()
	var ops []DeleteOp
	for i := 0; i < 5; i++ {
		path := filepath.Join(dir, fmt.Sprintf("f%d.journal", i))
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
		ops = append(ops, DeleteOp{Path: path, Bytes: 1})
	}

	b := NewDeleteBatcher(Config{MaxConcurrency: 2}, os.Remove)
	stats, err := b.Run(ops)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.FilesDeleted != 5 || stats.BytesFreed != 5 {
		t.Fatalf("got %+v, want FilesDeleted=5 BytesFreed=5", stats)
	}
	for _, op := range ops {
		if _, err := os.Stat(op.Path); !os.IsNotExist(err) {
			t.Fatalf("%s was not removed", op.Path)
		}
	}
}

func TestDeleteBatcherAccumulatesPartialFailures(t *testing.T) {
	ops := []DeleteOp{
		{Path: "ok1", Bytes: 10},
		{Path: "missing", Bytes: 20},
		{Path: "ok2", Bytes: 30},
	}
	b := NewDeleteBatcher(Config{}, func(path string) error {
		if path == "missing" {
			return fmt.Errorf("no such file")
		}
		return nil
	})
	stats, err := b.Run(ops)
	if err == nil {
		t.Fatalf("expected a combined error for the failing delete")
	}
	if stats.FilesDeleted != 2 || stats.ErrorCount != 1 {
		t.Fatalf("got %+v, want FilesDeleted=2 ErrorCount=1", stats)
	}
	if stats.BytesFreed != 40 {
		t.Fatalf("got BytesFreed=%d, want 40 (only the two successful deletes)", stats.BytesFreed)
	}
}

func TestDeleteBatcherEmptyInput(t *testing.T) {
	b := NewDeleteBatcher(Config{}, os.Remove)
	stats, err := b.Run(nil)
	if err != nil {
		t.Fatalf("Run(nil): %v", err)
	}
	if stats != (Stats{}) {
		t.Fatalf("got %+v, want zero value", stats)
	}
}
