package coscope

import (
	"context"
	"time"

	"github.com/gammazero/deque"
)

// Slot is a single-slot channel: a one-value rendezvous between
// tasks. Set stores a value and wakes every waiter; a later Set
// overwrites the value, it is never queued. Once set, Wait returns the
// stored value without parking until Clear is called.
//
// The zero value is an empty slot. A Slot must not be copied after
// first use.
type Slot[T any] struct {
	noCopy noCopy
	v      T
	err    error
	set    bool
	w      deque.Deque[*waiter]
}

// Set stores v, marks the slot signalled and wakes every waiter.
func (s *Slot[T]) Set(v T) {
	s.v, s.err, s.set = v, nil, true
	s.signal()
}

// Fail signals the slot with err instead of a value. Waiters return
// the zero value and err.
func (s *Slot[T]) Fail(err error) {
	var z T
	s.v, s.err, s.set = z, err, true
	s.signal()
}

// Clear discards the stored value or error and unmarks the slot.
// Parked waiters stay parked.
func (s *Slot[T]) Clear() {
	var z T
	s.v, s.err, s.set = z, nil, false
}

// IsSet reports whether the slot is signalled. It never parks.
func (s *Slot[T]) IsSet() bool {
	return s.set
}

// Wait parks task until the slot is signalled and returns its value.
// The wait is interrupted with an error if the task's context is
// cancelled or the schedule stalls.
func (s *Slot[T]) Wait(task TaskBase) (T, error) {
	return s.wait(task, 0, true)
}

// WaitTimeout is like Wait but gives up with ErrTimeout after d.
func (s *Slot[T]) WaitTimeout(task TaskBase, d time.Duration) (T, error) {
	if d <= 0 && !s.set {
		var z T
		return z, ErrTimeout
	}
	return s.wait(task, d, true)
}

// await waits without being interruptible. Only shutdown of the
// schedule ends it early.
func (s *Slot[T]) await(task TaskBase) (T, error) {
	return s.wait(task, 0, false)
}

func (s *Slot[T]) wait(task TaskBase, timeout time.Duration, interruptible bool) (T, error) {
	var z T
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for !s.set {
		if interruptible {
			if err := context.Cause(task.context()); err != nil {
				return z, err
			}
		}

		w := &waiter{task: task, interruptible: interruptible}
		if !deadline.IsZero() {
			left := time.Until(deadline)
			if left <= 0 {
				return z, ErrTimeout
			}
			task.after(w, left, ErrTimeout)
		}

		s.w.PushBack(w)
		task.park(w)

		if w.err != nil {
			s.drop(w)
			return z, w.err
		}
	}

	return s.v, s.err
}

func (s *Slot[T]) signal() {
	for s.w.Len() > 0 {
		s.w.PopFront().wake(nil)
	}
}

// drop removes a waiter that gave up before the slot was signalled.
func (s *Slot[T]) drop(w *waiter) {
	if i := s.w.Index(func(x *waiter) bool { return x == w }); i >= 0 {
		s.w.Remove(i)
	}
}
