package prom

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"github.com/webriots/coscope"
)

func TestReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{fmt.Errorf("%w: %w", coscope.ErrYieldTimeout, coscope.ErrTimeout), "yield_timeout"},
		{fmt.Errorf("%w: %w", coscope.ErrProducerFailedBeforeYield, coscope.ErrDeadlock), "deadlock"},
		{fmt.Errorf("%w: %w", coscope.ErrProducerFailedBeforeYield, context.Canceled), "canceled"},
		{coscope.ErrProducerFailedBeforeYield, "before_yield"},
		{coscope.ErrProducerCleanupFailed, "cleanup"},
		{errors.New("boom"), "other"},
	}

	for _, c := range cases {
		require.Equal(t, c.want, Reason(c.err), "%v", c.err)
	}
}

func TestObserverCountsLeases(t *testing.T) {
	r := require.New(t)

	reg := prometheus.NewRegistry()
	obs, err := New(reg, "test")
	r.NoError(err)

	leak := errors.New("free failed")
	prog := coscope.New().Run(func(_ context.Context, task *coscope.Task[any, any]) {
		ok := coscope.Func(func(yield func(int)) { yield(1) })
		for range 3 {
			r.NoError(coscope.With(task, ok, func(int) error { return nil },
				coscope.WithName("frame"), coscope.WithObserver(obs)))
		}

		dirty := func(_ context.Context, yield func(int)) error {
			yield(1)
			return leak
		}
		r.ErrorIs(coscope.With(task, dirty, func(int) error { return nil },
			coscope.WithName("frame"), coscope.WithObserver(obs)), leak)

		none := coscope.Func(func(func(int)) {})
		r.Error(coscope.With(task, none, func(int) error { return nil },
			coscope.WithName("frame"), coscope.WithObserver(obs)))
	})
	r.NoError(prog.Resume(context.Background()))

	r.Equal(4.0, testutil.ToFloat64(obs.opened.WithLabelValues("frame")))
	r.Equal(3.0, testutil.ToFloat64(obs.released.WithLabelValues("frame", "ok")))
	r.Equal(1.0, testutil.ToFloat64(obs.released.WithLabelValues("frame", "cleanup")))
	r.Equal(1.0, testutil.ToFloat64(obs.failed.WithLabelValues("frame", "before_yield")))
	r.Equal(1, testutil.CollectAndCount(obs.hold))
}

func TestNewRejectsDuplicateRegistration(t *testing.T) {
	r := require.New(t)

	reg := prometheus.NewRegistry()
	_, err := New(reg, "dup")
	r.NoError(err)

	_, err = New(reg, "dup")
	var are prometheus.AlreadyRegisteredError
	r.ErrorAs(err, &are)
}

func TestObserverRecordsDurations(t *testing.T) {
	r := require.New(t)

	reg := prometheus.NewRegistry()
	obs, err := New(reg, "dur")
	r.NoError(err)

	obs.LeaseOpened(context.Background(), "a", time.Millisecond)
	obs.LeaseReleased(context.Background(), "a", 2*time.Millisecond, nil)

	r.Equal(1, testutil.CollectAndCount(obs.wait))
	r.Equal(1, testutil.CollectAndCount(obs.hold))
}
