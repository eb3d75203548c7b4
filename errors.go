package coscope

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrProducerFailedBeforeYield is returned by Open and With when
	// the producer returns, fails, panics or is interrupted before it
	// invokes its callback. The producer's own error is wrapped with
	// it.
	ErrProducerFailedBeforeYield = errors.New("coscope: producer failed before yield")

	// ErrYieldTimeout is returned by Open and With when the producer
	// does not invoke its callback within the yield timeout.
	ErrYieldTimeout = errors.New("coscope: producer yield timed out")

	// ErrProducerCleanupFailed wraps an error raised by the producer
	// after the lease was released.
	ErrProducerCleanupFailed = errors.New("coscope: producer cleanup failed")

	// ErrScopeBodyFailed wraps an error returned, or a panic raised,
	// by the body passed to With.
	ErrScopeBodyFailed = errors.New("coscope: scope body failed")

	// ErrMultipleYield is reported as a cleanup failure when a
	// producer invokes its callback more than once.
	ErrMultipleYield = errors.New("coscope: producer yielded more than once")

	// ErrDeadlock is the cause given to parked tasks when the
	// scheduler stalls, and is returned by Resume when tasks remain
	// that nothing can wake.
	ErrDeadlock = errors.New("coscope: all tasks are parked")

	// ErrTimeout is returned by Slot.WaitTimeout.
	ErrTimeout = errors.New("coscope: wait timed out")

	// ErrClosed is the cause given to waits made while the scheduler
	// is shutting down.
	ErrClosed = errors.New("coscope: schedule closed")
)

// PanicError wraps a recovered panic value together with the stack
// trace captured where it was recovered.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", e.Value, e.Stack)
}

// Unwrap returns the panic value if it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}

// wrap attaches sentinel to cause so that both match errors.Is.
func wrap(sentinel, cause error) error {
	switch {
	case cause == nil:
		return sentinel
	case errors.Is(cause, sentinel):
		return cause
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
