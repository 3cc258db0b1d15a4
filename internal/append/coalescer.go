package append

import (
	"sync"
	"time"

	"github.com/scttfrdmn/logarc/internal/store"
)

// DefaultFlushInterval is the header-flush coalescing window named in spec
// §4.2 step 7 / §5: successive appends don't each pay an mmap sync, only the
// first one in a ~250ms window schedules a flush.
const DefaultFlushInterval = 250 * time.Millisecond

// Coalescer defers File.FlushHeader calls so a burst of Append calls pays
// for one flush instead of one per entry. Sync provides the escape hatch for
// callers that need immediate durability.
type Coalescer struct {
	mu       sync.Mutex
	f        *store.File
	interval time.Duration
	timer    *time.Timer
	pending  bool
	stopped  bool
}

// NewCoalescer wires a flush timer to f. Callers should call MarkDirty after
// every successful Append and Stop when the file is closed.
func NewCoalescer(f *store.File, interval time.Duration) *Coalescer {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	return &Coalescer{f: f, interval: interval}
}

// MarkDirty schedules a deferred flush if one isn't already pending.
func (c *Coalescer) MarkDirty() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped || c.pending {
		return
	}
	c.pending = true
	c.timer = time.AfterFunc(c.interval, c.fire)
}

func (c *Coalescer) fire() {
	c.mu.Lock()
	c.pending = false
	stopped := c.stopped
	c.mu.Unlock()

	if stopped {
		return
	}
	_ = c.f.FlushHeader()
	_ = c.f.Sync()
}

// Sync cancels any pending deferred flush and flushes immediately,
// transitioning the file's durability guarantee to synchronous for this call
// (spec §5, "callers that need immediate durability invoke an explicit
// sync").
func (c *Coalescer) Sync() error {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.pending = false
	c.mu.Unlock()

	if err := c.f.FlushHeader(); err != nil {
		return err
	}
	return c.f.Sync()
}

// Stop cancels any pending timer and performs one final synchronous flush,
// used on clean Close.
func (c *Coalescer) Stop() error {
	c.mu.Lock()
	c.stopped = true
	if c.timer != nil {
		c.timer.Stop()
	}
	c.mu.Unlock()

	return c.Sync()
}
