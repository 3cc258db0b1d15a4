// Package metrics exposes the engine's Prometheus counters: append/rotation
// throughput, vacuum outcomes, and the structural-error counters spec §7
// calls out as things an operator must be able to alert on.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns the engine's Prometheus registry and HTTP exposition.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	appendsTotal       *prometheus.CounterVec
	rotationsTotal     *prometheus.CounterVec
	vacuumFilesDeleted prometheus.Counter
	vacuumBytesFreed   prometheus.Counter
	windowCacheHits    prometheus.Counter
	windowCacheMisses  prometheus.Counter
	corruptionTotal    *prometheus.CounterVec
	outOfOrderTotal    *prometheus.CounterVec

	// hitCount/missCount mirror windowCacheHits/windowCacheMisses as plain
	// counters so WindowCacheHitRatio doesn't need to read Prometheus's
	// internal metric representation back out.
	hitCount  uint64
	missCount uint64

	lastReset time.Time
	server    *http.Server
}

// Config represents metrics configuration (spec §6.3's Options aren't metric
// config, but an operator needs a place to configure the exposition server).
type Config struct {
	Enabled        bool              `yaml:"enabled"`
	Port           int               `yaml:"port"`
	Path           string            `yaml:"path"`
	Labels         map[string]string `yaml:"labels"`
	Namespace      string            `yaml:"namespace"`
	Subsystem      string            `yaml:"subsystem"`
	UpdateInterval time.Duration     `yaml:"update_interval"`
}

// NewCollector creates a new metrics collector.
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = &Config{
			Enabled:        true,
			Port:           8080,
			Path:           "/metrics",
			Namespace:      "logarc",
			Subsystem:      "",
			UpdateInterval: 30 * time.Second,
			Labels:         make(map[string]string),
		}
	}

	if !config.Enabled {
		return &Collector{config: config, lastReset: time.Now()}, nil
	}

	collector := &Collector{
		config:    config,
		registry:  prometheus.NewRegistry(),
		lastReset: time.Now(),
	}

	if err := collector.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}
	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// Start starts the metrics exposition server.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", c.healthHandler)

	c.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", c.config.Port),
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("metrics server error: %v\n", err)
		}
	}()

	return nil
}

// Stop stops the metrics exposition server.
func (c *Collector) Stop(ctx context.Context) error {
	if c.server != nil {
		return c.server.Shutdown(ctx)
	}
	return nil
}

// RecordAppend bumps appends_total for one file (spec §4.2), split by
// outcome so a sustained rise in "error" is visible next to the throughput
// line.
func (c *Collector) RecordAppend(fileID string, err error) {
	if !c.config.Enabled {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.appendsTotal.With(prometheus.Labels{"file_id": fileID, "status": status}).Inc()
}

// RecordRotation bumps rotations_total, labeled by the reason a
// RotationPolicy gave (spec §4.3).
func (c *Collector) RecordRotation(reason string) {
	if !c.config.Enabled {
		return
	}
	c.rotationsTotal.With(prometheus.Labels{"reason": reason}).Inc()
}

// RecordVacuum adds one Vacuum run's results to the running totals.
func (c *Collector) RecordVacuum(filesDeleted int, bytesFreed uint64) {
	if !c.config.Enabled {
		return
	}
	c.vacuumFilesDeleted.Add(float64(filesDeleted))
	c.vacuumBytesFreed.Add(float64(bytesFreed))
}

// RecordWindowCacheHit and RecordWindowCacheMiss count chain-cache hits and
// misses (spec's chunk-chain cache, §4.4) in window_cache_hits_total and
// window_cache_misses_total; WindowCacheHitRatio derives the ratio from them.
func (c *Collector) RecordWindowCacheHit() {
	if !c.config.Enabled {
		return
	}
	c.windowCacheHits.Inc()
	c.mu.Lock()
	c.hitCount++
	c.mu.Unlock()
}

func (c *Collector) RecordWindowCacheMiss() {
	if !c.config.Enabled {
		return
	}
	c.windowCacheMisses.Inc()
	c.mu.Lock()
	c.missCount++
	c.mu.Unlock()
}

// RecordCorruption bumps corruption_total, labeled by the structural error
// code that triggered it (spec §7's Structural category).
func (c *Collector) RecordCorruption(code string) {
	if !c.config.Enabled {
		return
	}
	c.corruptionTotal.With(prometheus.Labels{"code": code}).Inc()
}

// RecordOutOfOrderRejected bumps out_of_order_rejected_total, for a
// strict_order file that refused a backwards-moving append (spec §4.2).
func (c *Collector) RecordOutOfOrderRejected(fileID string) {
	if !c.config.Enabled {
		return
	}
	c.outOfOrderTotal.With(prometheus.Labels{"file_id": fileID}).Inc()
}

func (c *Collector) initMetrics() error {
	c.appendsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "appends_total",
			Help:      "Total number of Append calls, by outcome.",
		},
		[]string{"file_id", "status"},
	)

	c.rotationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "rotations_total",
			Help:      "Total number of file rotations, by triggering policy.",
		},
		[]string{"reason"},
	)

	c.vacuumFilesDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "vacuum_files_deleted_total",
			Help:      "Total number of archived files removed by Vacuum.",
		},
	)

	c.vacuumBytesFreed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "vacuum_bytes_freed_total",
			Help:      "Total number of bytes reclaimed by Vacuum.",
		},
	)

	c.windowCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "window_cache_hits_total",
			Help:      "Chain-cache hits during bisection (spec §4.4).",
		},
	)

	c.windowCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "window_cache_misses_total",
			Help:      "Chain-cache misses during bisection (spec §4.4).",
		},
	)

	c.corruptionTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "corruption_total",
			Help:      "Total number of structural errors detected, by error code.",
		},
		[]string{"code"},
	)

	c.outOfOrderTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: c.config.Namespace,
			Subsystem: c.config.Subsystem,
			Name:      "out_of_order_rejected_total",
			Help:      "Total number of appends rejected for going backwards under strict_order.",
		},
		[]string{"file_id"},
	)

	return nil
}

func (c *Collector) registerMetrics() error {
	collectors := []prometheus.Collector{
		c.appendsTotal,
		c.rotationsTotal,
		c.vacuumFilesDeleted,
		c.vacuumBytesFreed,
		c.windowCacheHits,
		c.windowCacheMisses,
		c.corruptionTotal,
		c.outOfOrderTotal,
	}
	for _, m := range collectors {
		if err := c.registry.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// WindowCacheHitRatio computes window_cache_hit_ratio on demand rather than
// as a gauge kept in lockstep with two counters that change independently.
func (c *Collector) WindowCacheHitRatio() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := c.hitCount + c.missCount
	if total == 0 {
		return 0
	}
	return float64(c.hitCount) / float64(total)
}

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy","service":"logarc-metrics"}`))
}
