package coscope

import (
	"cmp"
	"context"
	"fmt"
	"runtime/trace"
	"slices"
	"time"

	"github.com/gammazero/deque"
)

const (
	taskTraceTaskType   = "coscope-task"
	taskTraceRegionType = "coscope-region"
	taskTraceCategory   = "coscope"
)

// executor is the state of one Resume: the run queue, the parked
// waiters, the timers and the I/O in flight. Only the loop resumes
// tasks; everything else just makes them ready.
type executor[I, O any] struct {
	ctx     context.Context
	sched   *Schedule[I, O]
	ready   deque.Deque[*Task[I, O]]
	tasks   map[*Task[I, O]]struct{}
	current *Task[I, O]

	waiters map[*waiter]uint64 // interruptible waiters by park order
	cancels map[<-chan struct{}]map[*waiter]struct{}
	seq     uint64
	timers  timerHeap

	ioq       ioQueue[I, O]
	pending   int
	responses chan *IOBatch[I, O]
	sema      chan struct{}

	interrupted bool
	closed      bool
}

func newExecutor[I, O any](ctx context.Context, sched *Schedule[I, O]) *executor[I, O] {
	n := sched.opts.ioConcurrency
	return &executor[I, O]{
		ctx:       ctx,
		sched:     sched,
		tasks:     make(map[*Task[I, O]]struct{}),
		waiters:   make(map[*waiter]uint64),
		cancels:   make(map[<-chan struct{}]map[*waiter]struct{}),
		responses: make(chan *IOBatch[I, O], n),
		sema:      make(chan struct{}, n),
	}
}

func loop[I, O any](
	ctx context.Context,
	fn func(context.Context, *Task[I, O]),
	sched *Schedule[I, O],
) error {
	var tracer *trace.Task

	ctx, tracer = trace.NewTask(ctx, taskTraceTaskType)
	defer tracer.End()

	program := func(ctx context.Context, task *Task[I, O]) {
		fn(ctx, task)
		task.Wait()
	}

	e := newExecutor(ctx, sched)
	defer e.shutdown()
	e.newTask(ctx, program, nil)

	trace.Logf(ctx, taskTraceCategory, "LOOP")

	for {
		e.drain()

		if len(e.tasks) == 0 {
			break
		}

		if e.wakeCancelled() {
			continue
		}

		if e.ioq.len() > 0 {
			e.dispatch()
		}

		if e.pending > 0 || e.timers.Len() > 0 {
			e.await()
			continue
		}

		if err := e.stall(); err != nil {
			trace.Log(ctx, taskTraceCategory, "LOOP DEADLOCK")
			return err
		}
	}

	trace.Log(ctx, taskTraceCategory, "LOOP DONE")
	return nil
}

// drain resumes ready tasks until the run queue is empty.
func (e *executor[I, O]) drain() {
	for e.ready.Len() > 0 {
		t := e.ready.PopFront()
		e.current = t
		_, ok := t.resume(struct{}{})
		e.current = nil
		if !ok {
			e.finish(t)
		}
	}
}

func (e *executor[I, O]) finish(t *Task[I, O]) {
	t.Log("DONE")
	delete(e.tasks, t)
	t.cancel()
	t.result.Set(t.err)
	if t.parent != nil {
		t.parent.children.Done()
	}
}

func (e *executor[I, O]) dispatch() {
	trace.Logf(e.ctx, taskTraceCategory, "LOOP IO_BATCH %v IO_PENDING %v", e.ioq.len(), e.pending)

	if e.sched.dispatch == nil {
		panic("coscope: IO on a schedule without a dispatcher")
	}

	reqs := e.ioq.take()
	e.pending += len(reqs)

	e.sched.dispatch.Dispatch(e.ctx, e.sched.alloc, e.sema, reqs, e.responses)
}

// await blocks the loop until an I/O batch arrives, a timer expires or
// the context is cancelled. Waits interrupted by the cancellation are
// woken on the next turn of the loop.
func (e *executor[I, O]) await() {
	var expired <-chan time.Time
	if tm := e.timers.next(); tm != nil {
		t := time.NewTimer(time.Until(tm.when))
		defer t.Stop()
		expired = t.C
	}

	var responses <-chan *IOBatch[I, O]
	if e.pending > 0 {
		responses = e.responses
	}

	var done <-chan struct{}
	if !e.interrupted {
		done = e.ctx.Done()
	}

	trace.Log(e.ctx, taskTraceCategory, "LOOP WAIT")

	select {
	case batch := <-responses:
		e.deliver(batch)
		for more := true; more; {
			select {
			case batch = <-e.responses:
				e.deliver(batch)
			default:
				more = false
			}
		}
	case <-expired:
		e.timers.expire(time.Now())
	case <-done:
		e.interrupted = true
	}
}

func (e *executor[I, O]) deliver(batch *IOBatch[I, O]) {
	e.pending -= batch.Len()
	e.ioq.add(batch.settle()...)
}

// stall handles a loop with tasks left but nothing to wake them.
func (e *executor[I, O]) stall() error {
	policy := e.sched.opts.stall
	parked := e.interruptible()

	if len(parked) > 0 && policy == StallFail {
		trace.Logf(e.ctx, taskTraceCategory, "LOOP STALL WAKE %v", len(parked))
		for _, w := range parked {
			w.wake(ErrDeadlock)
		}
		return nil
	}

	err := fmt.Errorf("%w: %d tasks left", ErrDeadlock, len(e.tasks))
	if policy == StallPanic {
		panic(err)
	}
	return err
}

// wakeCancelled wakes the interruptible waiters whose task context
// is done, with the context's cause. It reports whether any woke.
// Waiters are indexed by the Done channel of their context, which a
// task shares with the group or schedule context it derives from.
func (e *executor[I, O]) wakeCancelled() bool {
	var ws []*waiter
	for done, set := range e.cancels {
		select {
		case <-done:
			for w := range set {
				ws = append(ws, w)
			}
		default:
		}
	}
	if len(ws) == 0 {
		return false
	}

	trace.Logf(e.ctx, taskTraceCategory, "LOOP CANCEL WAKE %v", len(ws))
	for _, w := range e.inParkOrder(ws) {
		w.wake(context.Cause(w.task.context()))
	}
	return true
}

// watch registers an interruptible waiter for stall and cancellation
// wakeups.
func (e *executor[I, O]) watch(w *waiter) {
	e.seq++
	e.waiters[w] = e.seq

	done := w.task.context().Done()
	if done == nil {
		return
	}
	set, ok := e.cancels[done]
	if !ok {
		set = make(map[*waiter]struct{})
		e.cancels[done] = set
	}
	set[w] = struct{}{}
}

func (e *executor[I, O]) unwatch(w *waiter) {
	if _, ok := e.waiters[w]; !ok {
		return
	}
	delete(e.waiters, w)

	done := w.task.context().Done()
	if set, ok := e.cancels[done]; ok {
		delete(set, w)
		if len(set) == 0 {
			delete(e.cancels, done)
		}
	}
}

// interruptible returns the interruptible waiters in park order.
func (e *executor[I, O]) interruptible() []*waiter {
	ws := make([]*waiter, 0, len(e.waiters))
	for w := range e.waiters {
		ws = append(ws, w)
	}
	return e.inParkOrder(ws)
}

func (e *executor[I, O]) inParkOrder(ws []*waiter) []*waiter {
	slices.SortFunc(ws, func(a, b *waiter) int {
		return cmp.Compare(e.waiters[a], e.waiters[b])
	})
	return ws
}

// shutdown cancels the coroutines of tasks that never finished.
func (e *executor[I, O]) shutdown() {
	e.closed = true
	for t := range e.tasks {
		t.Log("CANCEL")
		t.cancel()
	}
	clear(e.tasks)
}
