package reactive

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultMaxFlushRounds bounds how many times Flush re-drains the queue when
// handlers keep scheduling more work.
const DefaultMaxFlushRounds = 100

// idCounter is the source of unique IDs for all reactive primitives.
var idCounter uint64

func nextID() uint64 {
	return atomic.AddUint64(&idCounter, 1)
}

// Listener is anything that can be notified when a dependency changes.
type Listener interface {
	// MarkDirty notifies the listener that one of its dependencies changed.
	MarkDirty()

	// ID returns a unique identifier used for deduplication.
	ID() uint64
}

// tracker is a listener that records the dependencies it reads.
type tracker interface {
	Listener
	addSource(d *dep)
}

// job is a unit of deferred work run by Flush.
type job interface {
	ID() uint64
	run()
}

// Runtime is the reactive context shared by every primitive created from it.
type Runtime struct {
	// listener is the tracker currently collecting dependencies.
	listener tracker

	// batchDepth counts open Batch calls.
	batchDepth int

	mu       sync.Mutex
	queue    []job
	queued   map[uint64]bool
	flushing bool

	maxRounds int
	logger    *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxFlushRounds sets how many drain rounds Flush attempts before giving up
// with ErrFlushLoop.
func WithMaxFlushRounds(n int) Option {
	return func(rt *Runtime) {
		if n > 0 {
			rt.maxRounds = n
		}
	}
}

// WithLogger sets the logger used to report handler panics.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// NewRuntime creates an empty runtime.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		queued:    make(map[uint64]bool),
		maxRounds: DefaultMaxFlushRounds,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// setListener swaps the current tracker and returns the previous one.
func (rt *Runtime) setListener(l tracker) tracker {
	old := rt.listener
	rt.listener = l
	return old
}

// Untracked runs fn without recording reads as dependencies.
func (rt *Runtime) Untracked(fn func()) {
	old := rt.setListener(nil)
	defer rt.setListener(old)
	fn()
}

// WithListener runs fn with l as the current listener. Every primitive read
// inside fn subscribes l.
func (rt *Runtime) WithListener(l Listener, fn func()) {
	old := rt.setListener(plainListener{l})
	defer rt.setListener(old)
	fn()
}

// plainListener adapts a Listener that does not track its own sources.
type plainListener struct{ Listener }

func (plainListener) addSource(*dep) {}

// enqueue schedules j for the next flush. Scheduling the same job twice before
// it runs is a no-op.
func (rt *Runtime) enqueue(j job) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	id := j.ID()
	if rt.queued[id] {
		return
	}
	rt.queued[id] = true
	rt.queue = append(rt.queue, j)
}

// Pending reports how many jobs are waiting for the next flush.
func (rt *Runtime) Pending() int {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return len(rt.queue)
}

func (rt *Runtime) drain() []job {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	jobs := rt.queue
	rt.queue = nil
	for _, j := range jobs {
		delete(rt.queued, j.ID())
	}
	return jobs
}

// Flush runs every queued watcher once, in scheduling order. Work scheduled by
// handlers during the flush runs in following rounds of the same call.
// Calling Flush from inside a handler is a no-op.
func (rt *Runtime) Flush() error {
	rt.mu.Lock()
	if rt.flushing {
		rt.mu.Unlock()
		return nil
	}
	rt.flushing = true
	rt.mu.Unlock()

	defer func() {
		rt.mu.Lock()
		rt.flushing = false
		rt.mu.Unlock()
	}()

	for round := 0; ; round++ {
		jobs := rt.drain()
		if len(jobs) == 0 {
			return nil
		}
		if round >= rt.maxRounds {
			rt.logger.Error("reactive: flush did not settle", "rounds", round, "pending", len(jobs))
			return ErrFlushLoop
		}
		for _, j := range jobs {
			rt.runJob(j)
		}
	}
}

func (rt *Runtime) runJob(j job) {
	defer func() {
		if r := recover(); r != nil {
			rt.logger.Error("reactive: watcher panicked", "id", j.ID(), "panic", r)
		}
	}()
	j.run()
}

// Batch runs fn and flushes when the outermost batch returns.
// Batches can be nested.
func (rt *Runtime) Batch(fn func()) error {
	rt.batchDepth++
	func() {
		defer func() { rt.batchDepth-- }()
		fn()
	}()
	if rt.batchDepth > 0 {
		return nil
	}
	return rt.Flush()
}

// InBatch reports whether a Batch is open.
func (rt *Runtime) InBatch() bool {
	return rt.batchDepth > 0
}
