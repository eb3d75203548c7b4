package coscope

import (
	"context"
)

const (
	// ScheduleIOConcurrencyLimit is the default maximum number of I/O
	// batches in flight.
	ScheduleIOConcurrencyLimit = 128
)

// Schedule holds the I/O dispatcher and options shared by every run
// of a program. Each Resume gets its own run queue, timers and I/O
// channels, so a Schedule may be resumed more than once.
type Schedule[I, O any] struct {
	alloc    *IOAllocator[I, O]
	dispatch IODispatch[I, O]
	opts     scheduleOptions
}

// IO creates a Schedule whose tasks can perform I/O through dispatch.
func IO[I, O any](dispatch IODispatch[I, O], opts ...ScheduleOption) *Schedule[I, O] {
	s := &Schedule[I, O]{
		alloc:    new(IOAllocator[I, O]),
		dispatch: dispatch,
		opts:     defaultScheduleOptions(),
	}
	for _, fn := range opts {
		fn(&s.opts)
	}
	return s
}

// New creates a Schedule without an I/O dispatcher. Calling Task.IO on
// its tasks panics.
func New(opts ...ScheduleOption) *Schedule[any, any] {
	return IO[any, any](nil, opts...)
}

// Resumable is a program bound to a Schedule, ready to be resumed.
type Resumable[I, O any] struct {
	fn    func(context.Context, *Task[I, O])
	sched *Schedule[I, O]
}

// Run binds fn as the root task of a program.
func (s *Schedule[I, O]) Run(fn func(context.Context, *Task[I, O])) *Resumable[I, O] {
	return &Resumable[I, O]{fn: fn, sched: s}
}

// Go binds a context-only function as the root task of a program. The
// task can be recovered with TaskFromContext.
func (s *Schedule[I, O]) Go(fn func(context.Context)) *Resumable[I, O] {
	return s.Run(s.Fn(fn))
}

// Resume runs the program on the calling goroutine until every task
// it spawned has finished. It returns an error wrapping ErrDeadlock if
// tasks remain that nothing can wake; those tasks are cancelled. Panics
// raised by tasks propagate out of Resume.
func (r *Resumable[I, O]) Resume(ctx context.Context) error {
	rctx, cancel := context.WithCancel(ctx)
	defer cancel()
	return loop(rctx, r.fn, r.sched)
}

// Fn adapts a context-only function to the task-based signature.
func (s *Schedule[I, O]) Fn(fn func(context.Context)) func(context.Context, *Task[I, O]) {
	return func(ctx context.Context, _ *Task[I, O]) { fn(ctx) }
}
