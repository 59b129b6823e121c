package taskrt

import (
	"runtime"
	"time"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/taskrt/taskrt/internal/worker"
)

func defaultWorkerThreads() int {
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}

// RuntimeConfig holds every tunable Build accepts, either directly via
// Option or loaded from a TOML file via LoadConfig.
type RuntimeConfig struct {
	WorkerThreads       int           `toml:"worker_threads"`
	EventInterval       int           `toml:"event_interval"`
	MaxBlockingThreads  int           `toml:"max_blocking_threads"`
	ThreadKeepAlive     time.Duration `toml:"thread_keep_alive"`
	WorkerName          func(id int) string `toml:"-"`
	BlockingThreadName  func(id int) string `toml:"-"`
}

// DefaultConfig returns the configuration Build uses absent any Option:
// worker thread count is GOMAXPROCS after automaxprocs has adjusted it
// for any cgroup CPU quota, matching the teacher's startup sequence in
// cmd/lind (maxprocs.Set is called before anything sizes a pool off
// runtime.NumCPU/GOMAXPROCS).
func DefaultConfig() RuntimeConfig {
	_, _ = maxprocs.Set()
	n := defaultWorkerThreads()
	return RuntimeConfig{
		WorkerThreads:      n,
		EventInterval:      worker.DefaultExecuteBudget,
		MaxBlockingThreads: 512,
		ThreadKeepAlive:    10 * time.Second,
	}
}

// Option mutates a RuntimeConfig during Build.
type Option func(*RuntimeConfig)

// WithWorkerThreads sets the number of worker OS threads (clamped to
// at least 1).
func WithWorkerThreads(n int) Option {
	return func(c *RuntimeConfig) {
		if n < 1 {
			n = 1
		}
		c.WorkerThreads = n
	}
}

// WithEventInterval sets the per-worker poll budget (spec.md §4.2 step
// 1's "budget").
func WithEventInterval(n int) Option {
	return func(c *RuntimeConfig) {
		if n < 1 {
			n = 1
		}
		c.EventInterval = n
	}
}

// WithMaxBlockingThreads sets the blocking pool's thread ceiling.
func WithMaxBlockingThreads(n int) Option {
	return func(c *RuntimeConfig) {
		if n < 1 {
			n = 1
		}
		c.MaxBlockingThreads = n
	}
}

// WithThreadTimeout sets how long a blocking-pool thread idles before
// retiring itself.
func WithThreadTimeout(d time.Duration) Option {
	return func(c *RuntimeConfig) {
		if d > 0 {
			c.ThreadKeepAlive = d
		}
	}
}

// WithWorkerName sets the naming function used to label each worker in
// its "worker starting" log line.
func WithWorkerName(fn func(id int) string) Option {
	return func(c *RuntimeConfig) { c.WorkerName = fn }
}

// WithBlockingThreadName stores a naming function in
// RuntimeConfig.BlockingThreadName. Build does not consult it: the
// blocking pool logs under the fixed name "default" and its threads are
// not named individually.
func WithBlockingThreadName(fn func(id int) string) Option {
	return func(c *RuntimeConfig) { c.BlockingThreadName = fn }
}

// WithConfig replaces the entire config up front (e.g. one loaded from
// TOML), still subject to any Option passed after it in Build's list.
func WithConfig(rc RuntimeConfig) Option {
	return func(c *RuntimeConfig) { *c = rc }
}
