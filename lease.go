package coscope

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// LeaseState is the lifecycle state of a Lease.
type LeaseState int

const (
	// LeaseOpening: the producer has not yielded yet.
	LeaseOpening LeaseState = iota
	// LeaseOpen: the value is borrowed by the caller.
	LeaseOpen
	// LeaseClosing: release was signalled and the producer is
	// cleaning up.
	LeaseClosing
	// LeaseClosed: the producer task has completed.
	LeaseClosed
)

func (s LeaseState) String() string {
	switch s {
	case LeaseOpening:
		return "opening"
	case LeaseOpen:
		return "open"
	case LeaseClosing:
		return "closing"
	case LeaseClosed:
		return "closed"
	}
	return "unknown"
}

var errNoYield = errors.New("returned without yielding")

// Lease holds a value yielded by a producer that is parked inside its
// callback. The value stays valid until Release, which lets the
// producer return from the callback and destroy it.
type Lease[T any] struct {
	noCopy noCopy
	id     uuid.UUID
	opts   leaseOptions
	obs    Observer
	task   TaskBase
	state  LeaseState

	value Slot[T]
	done  Slot[bool]
	join  *Slot[error]

	v      T
	yields int
	opened time.Time
	err    error
}

// Open starts p in a new child task of task and parks task until p
// invokes its callback. The returned lease is open; the caller must
// Release it from the same task.
//
// If p returns, fails or panics before invoking its callback, Open
// waits for the producer task and returns an error wrapping
// ErrProducerFailedBeforeYield. A stall of the schedule or
// cancellation of the task's context ends the wait the same way. With
// WithYieldTimeout, Open gives up after the timeout with
// ErrYieldTimeout without waiting for the producer task.
func Open[T any](task TaskBase, p Producer[T], opts ...LeaseOption) (*Lease[T], error) {
	l := &Lease[T]{
		id:   uuid.New(),
		opts: defaultLeaseOptions(),
		obs:  nopObserver{},
		task: task,
	}
	for _, fn := range opts {
		fn(&l.opts)
	}
	if l.opts.observer != nil {
		l.obs = l.opts.observer
	}

	start := time.Now()
	task.Logf("LEASE %s %s OPEN", l.opts.name, l.id)

	l.join = task.spawn(task.context(), func(ctx context.Context) error {
		return l.produce(ctx, p)
	})

	var v T
	var err error
	if d := l.opts.yieldTimeout; d > 0 {
		v, err = l.value.WaitTimeout(task, d)
	} else {
		v, err = l.value.Wait(task)
	}
	if err != nil {
		// Only the opener's own deadline is a yield timeout. Producer
		// failures arrive wrapped, even when they are timeouts too.
		return nil, l.abort(err, l.opts.yieldTimeout > 0 && err == ErrTimeout)
	}

	l.v = v
	l.state = LeaseOpen
	l.opened = time.Now()
	task.Logf("LEASE %s %s YIELD", l.opts.name, l.id)
	l.obs.LeaseOpened(task.context(), l.opts.name, l.opened.Sub(start))
	return l, nil
}

// abort closes a lease whose producer never yielded. A lease that
// timed out abandons its producer; any other failure joins it.
func (l *Lease[T]) abort(err error, timedOut bool) error {
	l.state = LeaseClosing
	l.done.Set(true)

	if timedOut {
		err = wrap(ErrYieldTimeout, err)
	} else {
		err = wrap(ErrProducerFailedBeforeYield, err)
		perr, jerr := l.join.await(l.task)
		if perr != nil || jerr != nil {
			err = errors.Join(err, perr, jerr)
		}
	}

	l.state = LeaseClosed
	l.err = err
	l.task.Logf("LEASE %s %s FAILED %v", l.opts.name, l.id, err)
	l.obs.LeaseFailed(l.task.context(), l.opts.name, err)
	return err
}

// produce runs p in the producer task. Failures before the yield are
// delivered through the value slot; failures after it are returned
// and reported by Release.
func (l *Lease[T]) produce(ctx context.Context, p Producer[T]) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if l.task.closing() {
				panic(r)
			}
			err = newPanicError(r)
		}

		if l.yields == 0 {
			if err == nil {
				err = errNoYield
			}
			l.value.Fail(wrap(ErrProducerFailedBeforeYield, err))
			err = nil
			return
		}

		if l.yields > 1 {
			err = errors.Join(err, ErrMultipleYield)
		}
		if err != nil {
			err = wrap(ErrProducerCleanupFailed, err)
		}
	}()

	return p(ctx, l.yield)
}

// yield is the continuation handed to the producer. It publishes v
// and holds the producer inside its callback until release.
func (l *Lease[T]) yield(v T) {
	l.yields++
	if l.yields > 1 {
		return
	}

	task := l.task.running()
	if task == nil {
		panic("coscope: producer yielded outside of a task")
	}

	l.value.Set(v)
	_, _ = l.done.await(task)
}

// Value returns the borrowed value. It panics unless the lease is
// open: the producer may already have destroyed the value.
func (l *Lease[T]) Value() T {
	if l.state != LeaseOpen {
		panic("coscope: lease value used outside its scope")
	}
	return l.v
}

// Valid reports whether Value may be called.
func (l *Lease[T]) Valid() bool {
	return l.state == LeaseOpen
}

// State returns the lifecycle state of the lease.
func (l *Lease[T]) State() LeaseState {
	return l.state
}

// ID returns the lease's unique identifier.
func (l *Lease[T]) ID() uuid.UUID {
	return l.id
}

// Name returns the name given with WithName.
func (l *Lease[T]) Name() string {
	return l.opts.name
}

// Release lets the producer return from its callback and parks the
// owning task until the producer task has completed. It returns the
// producer's cleanup error, if any, wrapping ErrProducerCleanupFailed.
// Later calls return the same result.
func (l *Lease[T]) Release() error {
	if l.state != LeaseOpen {
		return l.err
	}

	l.state = LeaseClosing
	l.task.Logf("LEASE %s %s RELEASE", l.opts.name, l.id)

	l.done.Set(true)
	perr, jerr := l.join.await(l.task)
	l.err = perr
	if jerr != nil {
		l.err = errors.Join(perr, jerr)
	}

	var z T
	l.v = z
	l.state = LeaseClosed

	hold := time.Since(l.opened)
	l.task.Logf("LEASE %s %s CLOSED %v", l.opts.name, l.id, hold)
	l.obs.LeaseReleased(l.task.context(), l.opts.name, hold, l.err)
	return l.err
}

// With opens a lease on p, runs body with the borrowed value and
// releases the lease on every exit path. The value must not be used
// after body returns.
//
// An error or panic from body is returned wrapping ErrScopeBodyFailed,
// joined with the producer's cleanup error if both occur. With
// WithPanicAsError(false) a body panic is re-raised once the producer
// has finished.
func With[T any](task TaskBase, p Producer[T], body func(T) error, opts ...LeaseOption) error {
	l, err := Open(task, p, opts...)
	if err != nil {
		return err
	}

	pe, berr := l.run(body)
	if pe != nil && task.closing() {
		panic(pe.Value)
	}

	rerr := l.Release()

	if pe != nil && !l.opts.panicAsError {
		panic(pe.Value)
	}

	if berr != nil {
		berr = wrap(ErrScopeBodyFailed, berr)
	}
	if rerr == nil {
		return berr
	}
	return errors.Join(berr, rerr)
}

func (l *Lease[T]) run(body func(T) error) (pe *PanicError, err error) {
	defer func() {
		if r := recover(); r != nil {
			pe = newPanicError(r)
			err = pe
		}
	}()
	return nil, body(l.Value())
}
