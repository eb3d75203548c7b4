package coscope

// waiter records one park of a task: on a slot, a semaphore, a timer
// or an I/O request. A waiter is woken at most once.
type waiter struct {
	task TaskBase
	err  error

	// interruptible waiters are woken by stall detection and context
	// cancellation.
	interruptible bool
	woken         bool
	timer         *timer
}

// wake makes the waiter's task runnable with err as the wake cause.
// Later calls are no-ops.
func (w *waiter) wake(err error) {
	if w.woken {
		return
	}
	w.woken = true
	w.err = err
	w.task.wake(w)
}
