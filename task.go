package coscope

import (
	"context"
	"fmt"
	"runtime/trace"
	"strings"
	"time"

	"github.com/webriots/coro"
)

// Task is a coroutine scheduled by a Schedule. A task runs until it
// parks; it is resumed by the loop once whatever it parked on wakes
// it.
type Task[I, O any] struct {
	ctx      context.Context
	suspend  func() struct{}
	resume   func(struct{}) (struct{}, bool)
	cancel   func()
	exec     *executor[I, O]
	parent   *Task[I, O]
	children WaitGroup
	result   Slot[error] // set with err when the task finishes
	err      error
}

// TaskBase is the part of a task that does not depend on its I/O
// types. Synchronization primitives and leases work in terms of it.
type TaskBase interface {
	Go(func(context.Context))
	Group() ErrGroup
	Wait()
	Sleep(time.Duration)

	Log(string)
	Logf(string, ...any)

	context() context.Context
	goctx(ctx context.Context, fn func(context.Context))
	spawn(ctx context.Context, fn func(context.Context) error) *Slot[error]
	parenttask() TaskBase
	running() TaskBase
	park(*waiter)
	wake(*waiter)
	after(w *waiter, d time.Duration, err error)
	closing() bool
}

func (e *executor[I, O]) newTask(
	ctx context.Context,
	fn func(context.Context, *Task[I, O]),
	parent *Task[I, O],
) *Task[I, O] {
	task := &Task[I, O]{
		exec:   e,
		parent: parent,
	}

	if parent != nil {
		parent.children.Add(1)
	}

	task.ctx = withTaskContext(ctx, task)

	resume, cancel := coro.New(
		func(_ func(struct{}) struct{}, suspend func() struct{}) (z struct{}) {
			region := trace.StartRegion(task.ctx, taskTraceRegionType)
			defer region.End()

			task.suspend = suspend

			fn(task.ctx, task)

			return
		},
	)

	task.resume = resume
	task.cancel = cancel

	e.tasks[task] = struct{}{}
	e.ready.PushBack(task)
	return task
}

func (t *Task[I, O]) gogoctx(ctx context.Context, fn func(context.Context, *Task[I, O])) *Task[I, O] {
	task := t.exec.newTask(ctx, fn, t)
	task.Log("GO")
	return task
}

func (t *Task[I, O]) goctx(ctx context.Context, fn func(context.Context)) {
	t.gogoctx(ctx, t.exec.sched.Fn(fn))
}

func (t *Task[I, O]) spawn(ctx context.Context, fn func(context.Context) error) *Slot[error] {
	task := t.gogoctx(ctx, func(ctx context.Context, self *Task[I, O]) {
		self.err = fn(ctx)
	})
	return &task.result
}

// Gogo starts a child task. The child first runs once the current
// task parks.
func (t *Task[I, O]) Gogo(fn func(context.Context, *Task[I, O])) {
	t.gogoctx(t.ctx, fn)
}

// Go starts a child task running a context-only function.
func (t *Task[I, O]) Go(fn func(context.Context)) {
	t.Gogo(t.exec.sched.Fn(fn))
}

// IO queues in for the schedule's dispatcher and parks the task until
// the response arrives.
func (t *Task[I, O]) IO(in I) O {
	t.Log("IO")

	req := &IORequest[I, O]{task: t, in: in, w: &waiter{task: t}}
	t.exec.ioq.add(req)
	t.park(req.w)

	return req.out
}

// Group returns a new ErrGroup whose tasks are children of t.
func (t *Task[I, O]) Group() ErrGroup {
	return newErrGroup(t)
}

// Wait parks t until all of its children have finished.
func (t *Task[I, O]) Wait() {
	t.Log("WAIT")
	t.children.Wait(t)
}

// Sleep parks t for at least d.
func (t *Task[I, O]) Sleep(d time.Duration) {
	t.Logf("SLEEP %v", d)
	w := &waiter{task: t}
	t.after(w, d, nil)
	t.park(w)
}

func (t *Task[I, O]) context() context.Context {
	return t.ctx
}

func (t *Task[I, O]) park(w *waiter) {
	e := t.exec

	if e.closed {
		if w.timer != nil {
			e.timers.remove(w.timer)
			w.timer = nil
		}
		w.woken = true
		w.err = ErrClosed
		return
	}

	if e.current != t {
		panic("coscope: park from a task that is not running")
	}

	if w.woken {
		return
	}

	if w.interruptible {
		e.watch(w)
	}

	t.Log("PARK")
	t.suspend()
}

func (t *Task[I, O]) wake(w *waiter) {
	e := t.exec

	if w.timer != nil {
		e.timers.remove(w.timer)
		w.timer = nil
	}
	e.unwatch(w)

	if e.closed {
		return
	}

	t.Log("WAKE")
	e.ready.PushBack(t)
}

func (t *Task[I, O]) after(w *waiter, d time.Duration, err error) {
	tm := &timer{when: time.Now().Add(d), w: w, err: err}
	w.timer = tm
	t.exec.timers.add(tm)
}

func (t *Task[I, O]) closing() bool {
	return t.exec.closed
}

func (t *Task[I, O]) running() TaskBase {
	if cur := t.exec.current; cur != nil {
		return cur
	}
	return nil
}

func (t *Task[I, O]) parenttask() TaskBase {
	if t == nil || t.parent == nil {
		return nil
	}
	return t.parent
}

func (t *Task[I, O]) Log(msg string) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		sb.WriteRune(' ')
		sb.WriteString(msg)
		trace.Log(t.ctx, taskTraceCategory, sb.String())
	}
}

func (t *Task[I, O]) Logf(format string, args ...any) {
	if trace.IsEnabled() {
		var sb strings.Builder
		taskpath(&sb, t)
		sb.WriteRune(' ')
		fmt.Fprintf(&sb, format, args...)
		trace.Log(t.ctx, taskTraceCategory, sb.String())
	}
}

func taskpath(sb *strings.Builder, t TaskBase) {
	if t == nil {
		return
	}
	taskpath(sb, t.parenttask())
	fmt.Fprintf(sb, "%p|", t)
}
