// Package group provides errgroup-style structured concurrency on top
// of a flock.ThreadPool: goroutines registered with Go run as tasks on
// the pool rather than as raw goroutines, and Wait blocks via a
// FinishLine rather than a sync.WaitGroup.
package group

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	flock "github.com/go-flock/flock"
)

// Group manages a set of related tasks sharing one cancellable context
// and one error-collection policy.
type Group struct {
	ctx    context.Context
	cancel context.CancelFunc

	pool    *flock.ThreadPool
	ownPool bool
	fl      *flock.FinishLine
	config  Config

	errorsMux sync.RWMutex
	errors    []error
	failOnce  sync.Once

	firstErrMux sync.Mutex
	firstErr    error // guarded by firstErrMux, used in FailFast

	stats GroupStats
}

// New creates a Group rooted at context.Background.
func New(opts ...Option) *Group {
	return NewWithContext(context.Background(), opts...)
}

// NewWithContext creates a Group whose context is derived from ctx; a
// call to Stop (or a FailFast error) cancels it.
func NewWithContext(ctx context.Context, opts ...Option) *Group {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	groupCtx, cancel := context.WithCancel(ctx)
	g := &Group{
		ctx:    groupCtx,
		cancel: cancel,
		config: cfg,
		fl:     flock.NewFinishLine(0),
		errors: make([]error, 0),
	}

	if cfg.pool != nil {
		g.pool = cfg.pool
	} else {
		pool, err := flock.NewThreadPool()
		if err != nil {
			// DefaultConfig is always valid; WithPool is the only way a
			// caller steers pool construction, and that path skips this.
			panic(err)
		}
		g.pool = pool
		g.ownPool = true
	}

	return g
}

// NewWithTimeout creates a Group whose context is cancelled automatically
// after d.
func NewWithTimeout(d time.Duration, opts ...Option) *Group {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	g := NewWithContext(ctx, opts...)
	g.cancel = cancel
	return g
}

// NewWithDeadline creates a Group whose context is cancelled automatically
// at t.
func NewWithDeadline(t time.Time, opts ...Option) *Group {
	ctx, cancel := context.WithDeadline(context.Background(), t)
	g := NewWithContext(ctx, opts...)
	g.cancel = cancel
	return g
}

// Go runs fn as a task on the group's pool, with its own panic recovery
// independent of the pool's shared error state. A panicking group member
// never trips recovery for unrelated work sharing the same pool.
func (g *Group) Go(fn func(context.Context) error) {
	g.fl.Start()
	atomic.AddUint64(&g.stats.Started, 1)

	err := g.pool.Push(func() {
		defer g.fl.Cross()
		defer func() {
			if r := recover(); r != nil {
				g.handleError(&flock.TaskError{Value: r, Stack: debug.Stack()})
			}
		}()

		if err := fn(g.ctx); err != nil {
			g.handleError(err)
		} else {
			atomic.AddUint64(&g.stats.Completed, 1)
		}
	})
	if err != nil {
		g.fl.Cross()
		g.handleError(err)
	}
}

// GoSafe runs fn for its side effects only; any error return doesn't
// exist, and a panic is still recovered and routed through the group's
// error policy.
func (g *Group) GoSafe(fn func(context.Context)) {
	g.Go(func(ctx context.Context) error {
		fn(ctx)
		return nil
	})
}

// Wait blocks until every task registered with Go has finished, then
// returns the group's error according to its ErrorMode. If the group
// owns a private pool, Wait also shuts it down.
func (g *Group) Wait() error {
	g.fl.Wait()
	g.Stop()

	if g.ownPool {
		g.pool.Shutdown()
	}

	switch g.config.errorMode {
	case IgnoreErrors:
		return nil

	case FailFast:
		g.firstErrMux.Lock()
		err := g.firstErr
		g.firstErrMux.Unlock()
		return err

	case CollectAll:
		g.errorsMux.RLock()
		collected := make([]error, len(g.errors))
		copy(collected, g.errors)
		g.errorsMux.RUnlock()

		if len(collected) > 0 {
			return AggregateError{Errors: collected}
		}
		return nil

	default:
		return nil
	}
}

// Stop cancels the group's context, signaling every running task to
// stop cooperatively.
func (g *Group) Stop() {
	g.cancel()
}

func (g *Group) handleError(err error) {
	atomic.AddUint64(&g.stats.Failed, 1)

	switch g.config.errorMode {
	case IgnoreErrors:
		return

	case FailFast:
		g.firstErrMux.Lock()
		first := g.firstErr == nil
		if first {
			g.firstErr = err
		}
		g.firstErrMux.Unlock()
		if first {
			g.failOnce.Do(g.cancel)
		}

	case CollectAll:
		g.errorsMux.Lock()
		g.errors = append(g.errors, err)
		g.errorsMux.Unlock()
	}
}

// GroupStats is a snapshot of a Group's lifetime task counters.
type GroupStats struct {
	Started   uint64
	Completed uint64
	Failed    uint64
}

// Stats returns a snapshot of the group's current counters. Completed
// counts every task that returned, successful or not; Failed is the
// subset that errored or panicked.
func (g *Group) Stats() GroupStats {
	return GroupStats{
		Started:   atomic.LoadUint64(&g.stats.Started),
		Completed: atomic.LoadUint64(&g.stats.Completed) + atomic.LoadUint64(&g.stats.Failed),
		Failed:    atomic.LoadUint64(&g.stats.Failed),
	}
}
