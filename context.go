package coscope

import "context"

type taskKey struct{}

func withTaskContext[I, O any](ctx context.Context, task *Task[I, O]) context.Context {
	return context.WithValue(ctx, taskKey{}, task)
}

// TaskFromContext returns the task that owns ctx. ok is false if ctx
// was not created by a task, or by one with other I/O types.
func TaskFromContext[I, O any](ctx context.Context) (task *Task[I, O], ok bool) {
	task, ok = ctx.Value(taskKey{}).(*Task[I, O])
	return
}

// TaskBaseFromContext returns the task that owns ctx whatever its I/O
// types. Producers use it to park or sleep.
func TaskBaseFromContext(ctx context.Context) (task TaskBase, ok bool) {
	task, ok = ctx.Value(taskKey{}).(TaskBase)
	return
}

// MustTaskBaseFromContext is TaskBaseFromContext for code that only
// runs inside tasks.
func MustTaskBaseFromContext(ctx context.Context) TaskBase {
	if task, ok := TaskBaseFromContext(ctx); ok {
		return task
	}
	panic("coscope: task not found in context")
}
