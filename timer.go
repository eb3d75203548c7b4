package coscope

import (
	"container/heap"
	"time"
)

// timer wakes a parked waiter at a deadline.
type timer struct {
	when  time.Time
	w     *waiter
	err   error // wake cause; nil for Sleep
	index int   // position in the heap, -1 once removed
}

// timerHeap is a min-heap of timers ordered by deadline.
type timerHeap []*timer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	tm := x.(*timer)
	tm.index = len(*h)
	*h = append(*h, tm)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	tm := old[n-1]
	old[n-1] = nil
	tm.index = -1
	*h = old[:n-1]
	return tm
}

func (h *timerHeap) add(tm *timer) {
	heap.Push(h, tm)
}

func (h *timerHeap) remove(tm *timer) {
	if tm.index >= 0 {
		heap.Remove(h, tm.index)
	}
}

// next returns the earliest timer, or nil.
func (h timerHeap) next() *timer {
	if len(h) == 0 {
		return nil
	}
	return h[0]
}

// expire wakes every timer due at now.
func (h *timerHeap) expire(now time.Time) {
	for h.Len() > 0 && !(*h)[0].when.After(now) {
		tm := heap.Pop(h).(*timer)
		tm.w.timer = nil
		tm.w.wake(tm.err)
	}
}
