package flock

import (
	"runtime"
)

// Config holds construction-time options for a ThreadPool.
type Config struct {
	// NumWorkers is the number of worker goroutines started immediately.
	// Zero means tasks run synchronously on the caller's goroutine.
	NumWorkers int

	// MaxActiveWorkers is the number of shards preallocated up front; it
	// bounds how high SetActiveThreads can raise the active worker count
	// later without reallocating. Defaults to runtime.GOMAXPROCS(0);
	// WithNumWorkers raises it to NumWorkers when that is larger.
	MaxActiveWorkers int

	// QueueCapacity is each shard's initial ring buffer capacity. Must be
	// a power of two. Defaults to 1024.
	QueueCapacity int64

	// BlockSize is the slab size each shard's mempool grows by. Defaults
	// to 1024.
	BlockSize int

	// OnWorkerStart, if set, is called once by each worker goroutine
	// before it begins polling for work.
	OnWorkerStart func(workerID int)

	// OnWorkerStop, if set, is called once per worker after Shutdown has
	// drained every worker goroutine.
	OnWorkerStop func(workerID int)

	// PanicObserver, if set, is called with the *TaskError captured from
	// every task panic, in addition to the normal error-propagation path
	// through Push/Wait. Useful for logging a panic the moment it
	// happens rather than only once some caller gets around to noticing.
	PanicObserver func(*TaskError)
}

// Option configures a ThreadPool at construction time.
type Option func(*Config)

// DefaultConfig returns a Config with sensible defaults: one worker per
// GOMAXPROCS, a 1024-slot queue per shard, 1024-entry mempool blocks.
func DefaultConfig() Config {
	n := runtime.GOMAXPROCS(0)
	return Config{
		NumWorkers:       n,
		MaxActiveWorkers: n,
		QueueCapacity:    1024,
		BlockSize:        1024,
	}
}

// WithNumWorkers sets the number of worker goroutines started at
// construction. Zero makes the pool run every task synchronously.
func WithNumWorkers(n int) Option {
	return func(c *Config) {
		c.NumWorkers = n
		if c.MaxActiveWorkers < n {
			c.MaxActiveWorkers = n
		}
	}
}

// WithMaxActiveWorkers sets the number of shards preallocated for later
// SetActiveThreads growth.
func WithMaxActiveWorkers(n int) Option {
	return func(c *Config) {
		c.MaxActiveWorkers = n
	}
}

// WithQueueCapacity sets each shard's initial ring buffer capacity. It
// must be a power of two; Validate rejects it otherwise.
func WithQueueCapacity(capacity int64) Option {
	return func(c *Config) {
		c.QueueCapacity = capacity
	}
}

// WithBlockSize sets the mempool slab size each shard grows by.
func WithBlockSize(n int) Option {
	return func(c *Config) {
		c.BlockSize = n
	}
}

// WithOnWorkerStart registers a callback invoked once by each worker
// goroutine before it begins polling for work.
func WithOnWorkerStart(fn func(workerID int)) Option {
	return func(c *Config) {
		c.OnWorkerStart = fn
	}
}

// WithOnWorkerStop registers a callback invoked once per worker after
// Shutdown has drained every worker goroutine.
func WithOnWorkerStop(fn func(workerID int)) Option {
	return func(c *Config) {
		c.OnWorkerStop = fn
	}
}

// WithPanicObserver registers a callback invoked with every task panic
// as it's captured, independent of Push/Wait error propagation.
func WithPanicObserver(fn func(*TaskError)) Option {
	return func(c *Config) {
		c.PanicObserver = fn
	}
}

// Validate checks the configuration and returns ErrInvalidArgument if any
// option is out of range.
func (c *Config) Validate() error {
	if c.NumWorkers < 0 {
		return ErrInvalidArgument
	}
	if c.MaxActiveWorkers < 1 {
		return ErrInvalidArgument
	}
	if c.NumWorkers > c.MaxActiveWorkers {
		return ErrInvalidArgument
	}
	if c.QueueCapacity <= 0 || !isPowerOfTwoInt64(c.QueueCapacity) {
		return ErrInvalidArgument
	}
	if c.BlockSize < 0 {
		return ErrInvalidArgument
	}
	return nil
}

func isPowerOfTwoInt64(n int64) bool {
	return n > 0 && (n&(n-1)) == 0
}
