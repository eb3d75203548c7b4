package coscope

import "context"

// ErrGroup runs a group of child tasks and reports the first error.
// The first failure cancels the group context, which interrupts any
// slot waits made by the other tasks of the group.
type ErrGroup interface {
	// Go starts f in a new task with the group context.
	Go(f func(context.Context) error)
	// GoWithContext starts f with ctx, which must belong to the task
	// that created the group.
	GoWithContext(ctx context.Context, f func(context.Context) error)
	// Wait parks task until every task of the group has finished and
	// returns the first error.
	Wait(task TaskBase) error
}

type errGroup struct {
	task   TaskBase
	ctx    context.Context
	cancel context.CancelCauseFunc
	wg     WaitGroup
	err    error
}

func newErrGroup(task TaskBase) *errGroup {
	ctx, cancel := context.WithCancelCause(task.context())
	return &errGroup{task: task, ctx: ctx, cancel: cancel}
}

func (g *errGroup) Go(f func(context.Context) error) {
	g.goctx(g.ctx, f)
}

func (g *errGroup) GoWithContext(ctx context.Context, f func(context.Context) error) {
	if task := MustTaskBaseFromContext(ctx); task != g.task {
		panic("coscope: ctx task does not match errgroup task")
	}
	g.goctx(ctx, f)
}

func (g *errGroup) goctx(ctx context.Context, f func(context.Context) error) {
	g.wg.Add(1)
	g.task.goctx(ctx, func(ctx context.Context) {
		defer g.wg.Done()
		if err := f(ctx); err != nil && g.err == nil {
			g.err = err
			g.cancel(err)
		}
	})
}

func (g *errGroup) Wait(task TaskBase) error {
	g.wg.Wait(task)
	g.cancel(g.err)
	return g.err
}
