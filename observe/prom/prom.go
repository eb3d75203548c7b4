// Package prom exports coscope lease events as Prometheus metrics.
package prom

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/webriots/coscope"
)

// Observer implements coscope.Observer with Prometheus collectors.
type Observer struct {
	opened   *prometheus.CounterVec
	failed   *prometheus.CounterVec
	released *prometheus.CounterVec
	wait     *prometheus.HistogramVec
	hold     *prometheus.HistogramVec
}

var _ coscope.Observer = (*Observer)(nil)

// New creates an Observer and registers its collectors with reg under
// namespace.
func New(reg prometheus.Registerer, namespace string) (*Observer, error) {
	o := &Observer{
		opened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "opened_total",
			Help:      "Leases whose producer yielded a value.",
		}, []string{"name"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "failed_total",
			Help:      "Leases that failed to open, by reason.",
		}, []string{"name", "reason"}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "released_total",
			Help:      "Released leases, by cleanup outcome.",
		}, []string{"name", "reason"}),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "yield_wait_seconds",
			Help:      "Time from Open until the producer yielded.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"name"}),
		hold: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "lease",
			Name:      "hold_seconds",
			Help:      "Time a yielded value was borrowed before release.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"name"}),
	}

	for _, c := range []prometheus.Collector{o.opened, o.failed, o.released, o.wait, o.hold} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// LeaseOpened counts the lease and records its yield wait.
func (o *Observer) LeaseOpened(_ context.Context, name string, wait time.Duration) {
	o.opened.WithLabelValues(name).Inc()
	o.wait.WithLabelValues(name).Observe(wait.Seconds())
}

// LeaseFailed counts a failed Open by reason.
func (o *Observer) LeaseFailed(_ context.Context, name string, err error) {
	o.failed.WithLabelValues(name, Reason(err)).Inc()
}

// LeaseReleased counts the release and records the hold duration.
func (o *Observer) LeaseReleased(_ context.Context, name string, hold time.Duration, err error) {
	o.released.WithLabelValues(name, Reason(err)).Inc()
	o.hold.WithLabelValues(name).Observe(hold.Seconds())
}

// Reason maps a lease error to a low-cardinality label value.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, coscope.ErrYieldTimeout):
		return "yield_timeout"
	case errors.Is(err, coscope.ErrDeadlock):
		return "deadlock"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.Is(err, coscope.ErrProducerFailedBeforeYield):
		return "before_yield"
	case errors.Is(err, coscope.ErrProducerCleanupFailed):
		return "cleanup"
	}
	return "other"
}
