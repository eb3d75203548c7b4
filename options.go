package coscope

import "time"

// StallPolicy decides what Resume does when every remaining task is
// parked and no timer or I/O request can wake any of them.
type StallPolicy int

const (
	// StallFail wakes every task parked in an interruptible wait with
	// ErrDeadlock. If none is interruptible, Resume returns an error
	// wrapping ErrDeadlock.
	StallFail StallPolicy = iota
	// StallPanic makes Resume panic with an error wrapping
	// ErrDeadlock.
	StallPanic
)

func (p StallPolicy) String() string {
	switch p {
	case StallFail:
		return "fail"
	case StallPanic:
		return "panic"
	}
	return "unknown"
}

// ScheduleOption configures a Schedule.
type ScheduleOption func(*scheduleOptions)

type scheduleOptions struct {
	stall         StallPolicy
	ioConcurrency int
}

func defaultScheduleOptions() scheduleOptions {
	return scheduleOptions{stall: StallFail, ioConcurrency: ScheduleIOConcurrencyLimit}
}

// WithStallPolicy sets the stall policy. The default is StallFail.
func WithStallPolicy(p StallPolicy) ScheduleOption {
	return func(o *scheduleOptions) { o.stall = p }
}

// WithIOConcurrency bounds the number of I/O batches a dispatcher may
// have in flight. Values below one select ScheduleIOConcurrencyLimit.
func WithIOConcurrency(n int) ScheduleOption {
	return func(o *scheduleOptions) {
		if n < 1 {
			n = ScheduleIOConcurrencyLimit
		}
		o.ioConcurrency = n
	}
}

// LeaseOption configures a single Open or With call.
type LeaseOption func(*leaseOptions)

type leaseOptions struct {
	name         string
	yieldTimeout time.Duration
	observer     Observer
	panicAsError bool
}

func defaultLeaseOptions() leaseOptions {
	return leaseOptions{name: "lease", panicAsError: true}
}

// WithName names the lease in trace logs and observer events.
func WithName(name string) LeaseOption {
	return func(o *leaseOptions) { o.name = name }
}

// WithYieldTimeout fails Open with ErrYieldTimeout if the producer has
// not invoked its callback within d. Zero disables the timeout.
func WithYieldTimeout(d time.Duration) LeaseOption {
	return func(o *leaseOptions) { o.yieldTimeout = d }
}

// WithObserver reports lease events to obs.
func WithObserver(obs Observer) LeaseOption {
	return func(o *leaseOptions) { o.observer = obs }
}

// WithPanicAsError controls whether a panic in a With body is returned
// as an error wrapping ErrScopeBodyFailed (the default) or re-raised
// after the lease is released.
func WithPanicAsError(v bool) LeaseOption {
	return func(o *leaseOptions) { o.panicAsError = v }
}
