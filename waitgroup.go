package coscope

import "context"

// WaitGroup parks tasks until a set of tasks has finished. Wait is
// not interruptible: only the counter reaching zero, or shutdown of
// the schedule, ends it.
type WaitGroup struct {
	noCopy  noCopy
	n       int
	waiting int
	parked  sema
}

// Add adds delta to the counter. When the counter drops to zero every
// parked waiter is woken. A negative counter panics.
func (wg *WaitGroup) Add(delta int) {
	wg.n += delta
	if wg.n < 0 {
		panic("coscope: negative WaitGroup counter")
	}
	if wg.n > 0 {
		return
	}
	for ; wg.waiting > 0; wg.waiting-- {
		wg.parked.release()
	}
}

// Done decrements the counter by one.
func (wg *WaitGroup) Done() {
	wg.Add(-1)
}

// Go runs fn in a new child task of task and counts it in wg.
func (wg *WaitGroup) Go(task TaskBase, fn func(context.Context)) {
	wg.Add(1)
	task.Go(func(ctx context.Context) {
		defer wg.Done()
		fn(ctx)
	})
}

// Wait parks task until the counter is zero.
func (wg *WaitGroup) Wait(task TaskBase) {
	if wg.n == 0 {
		return
	}
	wg.waiting++
	wg.parked.acquire(task)
}
