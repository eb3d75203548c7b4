package coscope

import "github.com/gammazero/deque"

// sema is a counting semaphore for tasks. Waiters are served in FIFO
// order and a release hands the permit straight to the first of them.
type sema struct {
	noCopy noCopy
	v      uint32                // available permits
	w      deque.Deque[*waiter] // parked acquirers
}

// acquire takes a permit, parking t until one is released if none is
// available.
func (s *sema) acquire(t TaskBase) {
	if s.v > 0 {
		s.v--
		return
	}

	w := &waiter{task: t}
	s.w.PushBack(w)
	t.park(w)
}

// release wakes the first waiter, or banks the permit if nobody
// waits.
func (s *sema) release() {
	if s.w.Len() == 0 {
		s.v++
		return
	}

	s.w.PopFront().wake(nil)
}
