package coscope

import (
	"context"
	"time"
)

// Observer receives lease lifecycle events. Calls happen on the
// scheduler's goroutine, from the task that owns the lease.
type Observer interface {
	// LeaseOpened is called once the producer has yielded. wait is the
	// time between Open and the yield.
	LeaseOpened(ctx context.Context, name string, wait time.Duration)
	// LeaseFailed is called when Open fails.
	LeaseFailed(ctx context.Context, name string, err error)
	// LeaseReleased is called after the producer task has completed.
	// hold is the time the value was borrowed, err the cleanup error.
	LeaseReleased(ctx context.Context, name string, hold time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) LeaseOpened(context.Context, string, time.Duration)          {}
func (nopObserver) LeaseFailed(context.Context, string, error)                  {}
func (nopObserver) LeaseReleased(context.Context, string, time.Duration, error) {}
