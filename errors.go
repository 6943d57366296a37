package flock

import (
	"errors"
	"fmt"
	"runtime"
)

// Sentinel errors making up the pool's error taxonomy.
var (
	// ErrInvalidArgument is returned when a ring buffer capacity or queue
	// capacity option is not a power of two, and by Config.Validate for any
	// other out-of-range option.
	ErrInvalidArgument = errors.New("flock: invalid argument")

	// ErrOutOfMemory would be returned by slab allocation failure. It is
	// defined for taxonomy completeness; Go's runtime treats true
	// allocation failure as an unrecoverable fatal error rather than a
	// panic visible to recover(), so this implementation never actually
	// returns it.
	ErrOutOfMemory = errors.New("flock: out of memory")

	// ErrPoolStopped is returned by Push when the pool has already been
	// shut down.
	ErrPoolStopped = errors.New("flock: pool is stopped")

	// ErrNilTask is returned when Push is given a nil task.
	ErrNilTask = errors.New("flock: task is nil")
)

// TaskError wraps a panic recovered from a submitted task. It is the Go
// stand-in for the opaque exception payload described in the design: the
// exact value recovered is preserved and, if that value was itself an
// error, made available through Unwrap so that errors.Is/errors.As keep
// working on the surfaced error.
type TaskError struct {
	Value any
	Stack []byte
	cause error
}

func newTaskError(recovered any) *TaskError {
	te := &TaskError{Value: recovered, Stack: capturedStack()}
	if err, ok := recovered.(error); ok {
		te.cause = err
	}
	return te
}

// Error implements the error interface.
func (e *TaskError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("flock: task panicked: %v", e.cause)
	}
	return fmt.Sprintf("flock: task panicked: %v", e.Value)
}

// Unwrap returns the recovered value if it was itself an error, allowing
// errors.Is and errors.As to see through the panic wrapper.
func (e *TaskError) Unwrap() error {
	if e.cause != nil {
		return e.cause
	}
	err, _ := e.Value.(error)
	return err
}

func capturedStack() []byte {
	buf := make([]byte, 4096)
	for {
		n := runtime.Stack(buf, false)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
