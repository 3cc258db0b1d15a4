package logarc

import (
	"context"
	"sync"
	"time"

	"github.com/scttfrdmn/logarc/internal/circuit"
	"github.com/scttfrdmn/logarc/internal/config"
	"github.com/scttfrdmn/logarc/internal/health"
	"github.com/scttfrdmn/logarc/internal/metrics"
	"github.com/scttfrdmn/logarc/internal/rotate"
	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
	"github.com/scttfrdmn/logarc/pkg/utils"
)

// Engine is the long-lived object that owns one journal directory's active
// file, its rotation/vacuum policy, and the ambient metrics/health/circuit
// machinery around it. It mirrors the teacher's Adapter lifecycle
// (New validates config, Start brings up subsystems in order, Stop tears
// them down in reverse) generalized from "mount an S3 bucket" to "manage a
// journal directory".
type Engine struct {
	mu sync.Mutex

	cfg     *config.Configuration
	dir     string
	limits  SpaceLimits
	policy  rotate.RotationPolicy
	active  *File

	metrics  *metrics.Collector
	health   *health.Checker
	breakers *circuit.Manager
	log      *utils.StructuredLogger

	retryAttempts int
	started       bool
}

// NewEngine validates cfg and constructs an Engine over dir, but does not
// open any file or start any subsystem yet — call Start for that.
func NewEngine(dir string, cfg *config.Configuration) (*Engine, error) {
	if cfg == nil {
		cfg = config.NewDefault()
	}
	if err := cfg.Validate(); err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeInvalidArgument, "invalid configuration").
			WithComponent("logarc").WithOperation("NewEngine").WithCause(err)
	}

	limits, err := limitsFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Global.MetricsPort,
		Path:      "/metrics",
		Namespace: "logarc",
	})
	if err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeInternalError, "failed to construct metrics collector").
			WithComponent("logarc").WithOperation("NewEngine").WithCause(err)
	}

	checker, err := health.NewChecker(&health.Config{
		Enabled:       cfg.Monitoring.HealthChecks.Enabled,
		CheckInterval: cfg.Monitoring.HealthChecks.Interval,
		Timeout:       cfg.Monitoring.HealthChecks.Timeout,
		HTTPEnabled:   cfg.Monitoring.HealthChecks.Enabled,
		HTTPPort:      cfg.Global.HealthPort,
		HTTPPath:      "/health",
	})
	if err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeInternalError, "failed to construct health checker").
			WithComponent("logarc").WithOperation("NewEngine").WithCause(err)
	}
	if err := checker.RegisterCheck("journal_dir_space", "free space on the journal directory's filesystem",
		health.CategoryStorage, health.PriorityHigh, health.DiskSpaceCheck(dir, 1)); err != nil {
		return nil, err
	}

	retryAttempts := cfg.Resilience.Retry.MaxAttempts
	if retryAttempts < 1 {
		retryAttempts = 1
	}

	failureThreshold := uint32(cfg.Resilience.CircuitBreaker.FailureThreshold)
	if failureThreshold == 0 {
		failureThreshold = 2
	}
	breakerCfg := circuit.Config{
		Timeout: cfg.Resilience.CircuitBreaker.Timeout,
		ReadyToTrip: func(counts circuit.Counts) bool {
			return cfg.Resilience.CircuitBreaker.Enabled && counts.ConsecutiveFailures >= failureThreshold
		},
		IsSuccessful: func(err error) bool {
			lerr, ok := err.(*logerrors.LogarcError)
			return !(ok && lerr.RotateClass)
		},
	}

	loggerCfg := utils.DefaultStructuredLoggerConfig()
	if cfg.Global.LogFile != "" {
		loggerCfg.Rotation = &utils.RotationConfig{
			Filename:   cfg.Global.LogFile,
			MaxSize:    100,
			MaxBackups: 5,
			Compress:   true,
		}
	}
	logger, err := utils.NewStructuredLogger(loggerCfg)
	if err != nil {
		return nil, logerrors.NewError(logerrors.ErrCodeInternalError, "failed to construct logger").
			WithComponent("logarc").WithOperation("NewEngine").WithCause(err)
	}
	logger = logger.WithField("dir", dir)

	return &Engine{
		cfg:           cfg,
		dir:           dir,
		limits:        limits,
		policy:        policyFromConfig(cfg),
		metrics:       collector,
		health:        checker,
		breakers:      circuit.NewManager(breakerCfg),
		log:           logger.WithComponent("object-store"),
		retryAttempts: retryAttempts,
	}, nil
}

func limitsFromConfig(cfg *config.Configuration) (SpaceLimits, error) {
	minUse, err := config.ParseSize(cfg.Space.MinUse)
	if err != nil {
		return SpaceLimits{}, err
	}
	maxUse, err := config.ParseSize(cfg.Space.MaxUse)
	if err != nil {
		return SpaceLimits{}, err
	}
	keepFree, err := config.ParseSize(cfg.Space.KeepFree)
	if err != nil {
		return SpaceLimits{}, err
	}
	maxFileSize, err := config.ParseSize(cfg.Space.MaxFileSize)
	if err != nil {
		return SpaceLimits{}, err
	}
	return SpaceLimits{
		MinUse:      minUse,
		MaxUse:      maxUse,
		KeepFree:    keepFree,
		MaxFileAge:  cfg.Space.MaxFileAge,
		MaxFileSize: maxFileSize,
		NMaxFiles:   cfg.Space.NMaxFiles,
	}, nil
}

func policyFromConfig(cfg *config.Configuration) rotate.RotationPolicy {
	maxBytes, err := config.ParseSize(cfg.Space.MaxFileSize)
	if err != nil || maxBytes == 0 {
		return rotate.DefaultPolicy()
	}
	return rotate.NewCompositePolicy(
		rotate.MaxFileSizePolicy{MaxBytes: maxBytes},
	)
}

// Start opens (or creates) the directory's active file and brings up the
// metrics and health subsystems, in that order — mirroring the teacher's
// Adapter.Start sequencing of backend, then cache, then mount.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return logerrors.NewError(logerrors.ErrCodeStateConflict, "engine already started").
			WithComponent("logarc").WithOperation("Start")
	}

	activePath := SuccessorPathFor(e.dir, [16]byte{}, 0, time.Now())
	compressThreshold, err := config.ParseSize(e.cfg.Journal.CompressThreshold)
	if err != nil {
		return err
	}
	opts := Options{
		CompressThreshold: compressThreshold,
		Seal:              e.cfg.Journal.Seal,
		StrictOrder:       e.cfg.Journal.StrictOrder,
		Metrics:           e.limits,
	}
	f, err := Open(activePath, ModeAppendCreate, opts)
	if err != nil {
		return err
	}
	e.active = f
	e.log.Info("active file opened", map[string]interface{}{"path": activePath})

	if err := e.metrics.Start(ctx); err != nil {
		_ = f.Close()
		return err
	}
	if err := e.health.Start(ctx); err != nil {
		_ = f.Close()
		return err
	}

	e.started = true
	e.log.Info("engine started", nil)
	return nil
}

// Stop flushes and closes the active file, and stops the metrics and health
// subsystems. A failing step does not stop the later ones; Stop returns the
// last error encountered.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var lastErr error
	if e.health != nil {
		if err := e.health.Stop(); err != nil {
			lastErr = err
		}
	}
	if e.metrics != nil {
		if err := e.metrics.Stop(ctx); err != nil {
			lastErr = err
		}
	}
	if e.active != nil {
		if err := e.active.Close(); err != nil {
			lastErr = err
		}
		e.active = nil
	}

	e.started = false
	e.log.Info("engine stopped", nil)
	return lastErr
}

// Append appends iovecs to the directory's active file, rotating to a fresh
// successor first if the active file's RotationPolicy says so. Appends run
// through a per-directory circuit breaker; an append that returns a
// rotate-class error is rotated and retried up to
// cfg.Resilience.Retry.MaxAttempts times (at least once) (spec §4.2, §4.3).
// Once the breaker trips, further appends fail fast with circuit.ErrOpenState
// instead of hammering a directory that can't accept new files.
func (e *Engine) Append(iovecs []Iovec, ts Timestamps) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	breaker := e.breakers.GetBreaker(e.dir)

	var result Result
	for attempt := 0; attempt < e.retryAttempts+1; attempt++ {
		if due, reason := e.policy.ShouldRotate(e.active.Header()); due {
			if err := e.rotateLocked(reason); err != nil {
				return Result{}, err
			}
		}

		err := breaker.Execute(func() error {
			var appendErr error
			result, appendErr = e.active.Append(iovecs, ts)
			return appendErr
		})
		e.metrics.RecordAppend(e.active.IDString(), err)
		if err == nil {
			return result, nil
		}

		lerr, ok := err.(*logerrors.LogarcError)
		if !ok || !lerr.RotateClass || attempt == e.retryAttempts {
			if ok && lerr.Code == logerrors.ErrCodeCorrupted {
				e.metrics.RecordCorruption(string(lerr.Code))
			}
			if ok && lerr.Code == logerrors.ErrCodeOutOfOrder {
				e.metrics.RecordOutOfOrderRejected(e.active.IDString())
			}
			e.log.WithComponent("append").Error("append failed", map[string]interface{}{"error": err.Error(), "attempt": attempt})
			return Result{}, err
		}
		if err := e.rotateLocked("append returned a rotate-class error: " + string(lerr.Code)); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

func (e *Engine) rotateLocked(reason string) error {
	successorPath := SuccessorPathFor(e.dir, e.active.Header().SeqnumID, e.active.Header().HeadEntrySeqnum, time.Now())
	successor, err := Rotate(e.active, successorPath, Options{Metrics: e.limits})
	if err != nil {
		return err
	}
	e.active = successor
	e.metrics.RecordRotation(reason)
	e.log.WithComponent("rotate").Info("rotated", map[string]interface{}{"reason": reason, "successor": successorPath})
	return nil
}

// Vacuum reclaims archived files past the configured limits.
func (e *Engine) Vacuum(now time.Time) (Stats, error) {
	stats, err := rotate.Vacuum(e.dir, e.limits, now)
	e.metrics.RecordVacuum(stats.FilesDeleted, stats.BytesFreed)
	vacuumLog := e.log.WithComponent("vacuum")
	if err != nil {
		vacuumLog.Error("vacuum failed", map[string]interface{}{"error": err.Error()})
	} else {
		vacuumLog.Info("vacuum completed", map[string]interface{}{
			"files_deleted": stats.FilesDeleted, "bytes_freed": utils.FormatBytes(int64(stats.BytesFreed)),
		})
	}
	return stats, err
}

// OpenCursor opens a cursor over the directory's active file plus any
// explicitly supplied archived files.
func (e *Engine) OpenCursor(archived []*File, flags Flags, expr *MatchExpr) (*Cursor, error) {
	e.mu.Lock()
	files := append([]*File{e.active}, archived...)
	e.mu.Unlock()
	return OpenCursor(files, flags, expr)
}
