/*
Package metrics provides Prometheus-based metrics collection for the journal
engine's append/rotate/vacuum lifecycle and the structural errors spec §7
calls out as operator-visible.

# Overview

The metrics package wraps a private Prometheus registry so the engine's
counters never collide with a host process's default registry, and exposes
them over an HTTP server the engine owns.

Architecture

	┌─────────────┐
	│  Collector  │  ← owns the Prometheus registry
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌─────────▼──────┐
	│  Prometheus  │         │  HTTP Endpoints │
	│   Registry   │         │  /metrics       │
	│              │         │  /health        │
	└──────────────┘         └─────────────────┘

# Core Components

Collector: the main metrics collector that aggregates and exports metrics.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      8080,
		Path:      "/metrics",
		Namespace: "logarc",
	})
	if err != nil {
		log.Fatal(err)
	}

	if err := collector.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer collector.Stop(ctx)

# Recording Events

	collector.RecordAppend(fileID, err)
	collector.RecordRotation("max file size reached")
	collector.RecordVacuum(stats.FilesDeleted, stats.BytesFreed)
	collector.RecordWindowCacheHit()
	collector.RecordWindowCacheMiss()
	collector.RecordCorruption(string(logerrors.ErrCodeCorrupted))
	collector.RecordOutOfOrderRejected(fileID)

# Prometheus Metrics

The collector exports:

Counters:
  - logarc_appends_total{file_id,status}: Total Append calls by outcome
  - logarc_rotations_total{reason}: Total rotations by triggering policy
  - logarc_vacuum_files_deleted_total: Total archived files removed
  - logarc_vacuum_bytes_freed_total: Total bytes reclaimed by Vacuum
  - logarc_window_cache_hits_total / logarc_window_cache_misses_total: chain-cache hit/miss counts
  - logarc_corruption_total{code}: Total structural errors by error code
  - logarc_out_of_order_rejected_total{file_id}: Total strict_order rejections

Collector.WindowCacheHitRatio() computes window_cache_hit_ratio on demand
from the hit/miss counters rather than maintaining a separate gauge.

# HTTP Endpoints

/metrics - Prometheus-formatted metrics (for scraping)

	curl http://localhost:8080/metrics

/health - Health check endpoint

	curl http://localhost:8080/health
	{"status":"healthy","service":"logarc-metrics"}

# Configuration

	config := &metrics.Config{
		Enabled:   true,
		Port:      8080,
		Path:      "/metrics",
		Namespace: "logarc",
		Subsystem: "",
	}

# See Also

- internal/health: Health monitoring and alerting
- internal/circuit: Circuit breaker for rotate-class errors
- pkg/errors: Structured error handling
*/
package metrics
