package metrics

import (
	"context"
	"errors"
	"testing"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{
			Enabled:   true,
			Port:      9090,
			Path:      "/metrics",
			Namespace: "logarc",
			Subsystem: "test",
		}
		collector, err := NewCollector(config)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector == nil {
			t.Fatal("NewCollector() returned nil collector")
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if collector.config.Port != 8080 {
			t.Errorf("default port = %d, want 8080", collector.config.Port)
		}
		if collector.config.Namespace != "logarc" {
			t.Errorf("default namespace = %q, want %q", collector.config.Namespace, "logarc")
		}
	})

	t.Run("with disabled config", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.registry != nil {
			t.Error("disabled collector should not have a registry")
		}
	})
}

func TestRecordAppend(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Port: 9091, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	collector.RecordAppend("abc123", nil)
	collector.RecordAppend("abc123", errors.New("boom"))

	// Should not panic when disabled.
	disabled, err := NewCollector(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	disabled.RecordAppend("abc123", nil)
}

func TestRecordRotation(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Port: 9092, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	collector.RecordRotation("max file size reached")
	collector.RecordRotation("max entry count reached")
}

func TestRecordVacuum(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Port: 9093, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	collector.RecordVacuum(3, 4096)
	collector.RecordVacuum(1, 512)
}

func TestWindowCacheHitRatio(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Port: 9094, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	if got := collector.WindowCacheHitRatio(); got != 0 {
		t.Fatalf("ratio with no samples = %v, want 0", got)
	}

	collector.RecordWindowCacheHit()
	collector.RecordWindowCacheHit()
	collector.RecordWindowCacheHit()
	collector.RecordWindowCacheMiss()

	if got := collector.WindowCacheHitRatio(); got != 0.75 {
		t.Fatalf("ratio = %v, want 0.75", got)
	}
}

func TestRecordCorruptionAndOutOfOrder(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Port: 9095, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}
	collector.RecordCorruption("CORRUPTED")
	collector.RecordOutOfOrderRejected("abc123")
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: true, Port: 9096, Namespace: "test"})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	ctx := context.Background()
	if err := collector.Stop(ctx); err != nil {
		t.Errorf("Stop() without Start() error = %v, want nil", err)
	}
}

func TestDisabledCollectorNeverPanics(t *testing.T) {
	t.Parallel()

	collector, err := NewCollector(&Config{Enabled: false})
	if err != nil {
		t.Fatalf("NewCollector() error = %v", err)
	}

	collector.RecordAppend("f", nil)
	collector.RecordRotation("reason")
	collector.RecordVacuum(1, 1)
	collector.RecordWindowCacheHit()
	collector.RecordWindowCacheMiss()
	collector.RecordCorruption("CORRUPTED")
	collector.RecordOutOfOrderRejected("f")
	if got := collector.WindowCacheHitRatio(); got != 0 {
		t.Fatalf("disabled ratio = %v, want 0", got)
	}
}
