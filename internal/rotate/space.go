package rotate

import (
	"sync"
	"syscall"
	"time"

	logerrors "github.com/scttfrdmn/logarc/pkg/errors"
)

// SpaceStalenessWindow bounds how often a non-verbose space recompute hits
// the filesystem (spec §4.3, §5).
const SpaceStalenessWindow = 30 * time.Second

// Limits mirrors the metrics options of spec §6.3's Open: the caller's
// configured bounds on disk usage for one journal directory.
type Limits struct {
	MinUse      uint64
	MaxUse      uint64
	KeepFree    uint64
	MaxFileAge  time.Duration
	MaxFileSize uint64
	NMaxFiles   int
}

// SpaceState is the cached (limit, available, timestamp) tuple of spec §4.3.
type SpaceState struct {
	Limit     uint64
	Available uint64
	Timestamp time.Time
}

// SpaceAccountant recomputes SpaceState against a directory's filesystem,
// caching results within SpaceStalenessWindow. MinUse may be bumped upward
// at startup so a usage spike observed at open doesn't trigger immediate
// deletion (spec §4.3).
type SpaceAccountant struct {
	mu       sync.Mutex
	dir      string
	limits   Limits
	cached   SpaceState
	hasCache bool
}

// NewSpaceAccountant constructs an accountant for dir, bumping MinUse to
// currentUsage if the configured value is lower.
func NewSpaceAccountant(dir string, limits Limits, currentUsage uint64) *SpaceAccountant {
	if limits.MinUse < currentUsage {
		limits.MinUse = currentUsage
	}
	return &SpaceAccountant{dir: dir, limits: limits}
}

// State returns the cached tuple, recomputing if it is stale or verbose is
// requested.
func (a *SpaceAccountant) State(currentUsage uint64, verbose bool) (SpaceState, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !verbose && a.hasCache && time.Since(a.cached.Timestamp) < SpaceStalenessWindow {
		return a.cached, nil
	}

	available, err := filesystemAvailable(a.dir)
	if err != nil {
		return SpaceState{}, err
	}

	limit := clamp(saturatingSub(currentUsage+available, a.limits.KeepFree), a.limits.MinUse, a.limits.MaxUse)
	state := SpaceState{
		Limit:     limit,
		Available: saturatingSub(limit, currentUsage),
		Timestamp: time.Now(),
	}
	a.cached = state
	a.hasCache = true
	return state, nil
}

// clamp implements spec §4.3's limit formula:
// limit = clamp(current_usage + fs_available - keep_free, min_use, max_use).
// Subtraction is saturating because fs_available - keep_free may legitimately
// be negative (free space already below the reserve).
func clamp(v, min, max uint64) uint64 {
	if max > 0 && v > max {
		v = max
	}
	if v < min {
		v = min
	}
	return v
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

func filesystemAvailable(dir string) (uint64, error) {
	var stat syscall.Statfs_t
	if err := syscall.Statfs(dir, &stat); err != nil {
		return 0, logerrors.NewError(logerrors.ErrCodeIO, "statfs failed").
			WithComponent("rotate").WithOperation("filesystemAvailable").WithCause(err)
	}
	return uint64(stat.Bavail) * uint64(stat.Bsize), nil
}
