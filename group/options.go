package group

import flock "github.com/go-flock/flock"

// ErrorMode defines how a Group handles errors returned by its
// goroutines.
type ErrorMode int

const (
	// FailFast cancels the group's context on the first error.
	FailFast ErrorMode = iota
	// CollectAll lets every goroutine run to completion and returns all
	// errors together as an AggregateError.
	CollectAll
	// IgnoreErrors discards every error returned by a goroutine.
	IgnoreErrors
)

// Config holds a Group's configuration.
type Config struct {
	errorMode ErrorMode
	pool      *flock.ThreadPool
}

// Option configures a Group.
type Option func(*Config)

// DefaultConfig returns a Group's default configuration: CollectAll,
// backed by a private ThreadPool sized from runtime defaults.
func DefaultConfig() Config {
	return Config{errorMode: CollectAll}
}

// WithErrorMode sets how the group handles errors.
func WithErrorMode(mode ErrorMode) Option {
	return func(c *Config) {
		c.errorMode = mode
	}
}

// WithPool routes the group's goroutines through an existing ThreadPool
// instead of a private one constructed just for this group. The caller
// remains responsible for that pool's lifecycle.
func WithPool(p *flock.ThreadPool) Option {
	return func(c *Config) {
		c.pool = p
	}
}
