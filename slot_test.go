package coscope

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func runTask(t *testing.T, fn func(*Task[any, any])) {
	t.Helper()
	err := New().Run(func(_ context.Context, task *Task[any, any]) {
		fn(task)
	}).Resume(context.Background())
	require.NoError(t, err)
}

func TestSlotWaitOnSignalledSlotDoesNotPark(t *testing.T) {
	r := require.New(t)

	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]
		s.Set(7)

		ran := false
		task.Go(func(context.Context) { ran = true })

		v, err := s.Wait(task)
		r.NoError(err)
		r.Equal(7, v)
		r.False(ran, "Wait on a signalled slot must not let other tasks run")

		v, err = s.Wait(task)
		r.NoError(err)
		r.Equal(7, v)
		r.True(s.IsSet())
	})
}

func TestSlotWaitParksUntilSet(t *testing.T) {
	r := require.New(t)

	var events []string
	runTask(t, func(task *Task[any, any]) {
		var s Slot[string]
		task.Go(func(context.Context) {
			events = append(events, "set")
			s.Set("hello")
		})

		r.False(s.IsSet())
		events = append(events, "wait")
		v, err := s.Wait(task)
		r.NoError(err)
		events = append(events, v)
	})

	r.Equal([]string{"wait", "set", "hello"}, events)
}

func TestSlotClearThenSet(t *testing.T) {
	r := require.New(t)

	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]
		s.Set(1)
		s.Clear()
		r.False(s.IsSet())

		s.Set(2)
		v, err := s.Wait(task)
		r.NoError(err)
		r.Equal(2, v)
	})
}

func TestSlotClearedSlotParksAgain(t *testing.T) {
	r := require.New(t)

	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]
		s.Set(1)
		s.Clear()

		task.Go(func(context.Context) { s.Set(3) })

		v, err := s.Wait(task)
		r.NoError(err)
		r.Equal(3, v)
	})
}

func TestSlotSetTwiceBeforeWaitKeepsLastValue(t *testing.T) {
	r := require.New(t)

	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]
		s.Set(1)
		s.Set(2)

		v, err := s.Wait(task)
		r.NoError(err)
		r.Equal(2, v)

		v, err = s.Wait(task)
		r.NoError(err)
		r.Equal(2, v, "a slot is not a queue: the first value is gone")
	})
}

func TestSlotSetWakesEveryWaiter(t *testing.T) {
	r := require.New(t)

	got := map[string]int{}
	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]
		for _, name := range []string{"a", "b", "c"} {
			task.Go(func(ctx context.Context) {
				v, err := s.Wait(MustTaskBaseFromContext(ctx))
				r.NoError(err)
				got[name] = v
			})
		}
		task.Sleep(time.Millisecond)
		s.Set(5)
	})

	r.Equal(map[string]int{"a": 5, "b": 5, "c": 5}, got)
}

func TestSlotWaitTimeout(t *testing.T) {
	r := require.New(t)

	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]

		start := time.Now()
		_, err := s.WaitTimeout(task, 5*time.Millisecond)
		r.ErrorIs(err, ErrTimeout)
		r.GreaterOrEqual(time.Since(start), 5*time.Millisecond)

		_, err = s.WaitTimeout(task, 0)
		r.ErrorIs(err, ErrTimeout)

		task.Go(func(context.Context) { s.Set(9) })
		v, err := s.WaitTimeout(task, time.Second)
		r.NoError(err)
		r.Equal(9, v)
	})
}

func TestSlotFail(t *testing.T) {
	r := require.New(t)

	boom := errors.New("boom")
	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]
		task.Go(func(context.Context) { s.Fail(boom) })

		v, err := s.Wait(task)
		r.ErrorIs(err, boom)
		r.Zero(v)
		r.True(s.IsSet())

		s.Set(4)
		v, err = s.Wait(task)
		r.NoError(err)
		r.Equal(4, v)
	})
}

func TestSlotParkFromOtherTaskPanics(t *testing.T) {
	r := require.New(t)

	r.Panics(func() {
		_ = New().Run(func(_ context.Context, task *Task[any, any]) {
			var s Slot[int]
			parent := task
			task.Go(func(context.Context) {
				_, _ = s.Wait(parent)
			})
		}).Resume(context.Background())
	})
}

func TestSlotAbandonedWaitsAreDropped(t *testing.T) {
	r := require.New(t)

	runTask(t, func(task *Task[any, any]) {
		var s Slot[int]
		for range 50 {
			_, err := s.WaitTimeout(task, time.Microsecond)
			r.ErrorIs(err, ErrTimeout)
		}
		r.Zero(s.w.Len())

		var never Slot[int]
		_, err := never.Wait(task)
		r.ErrorIs(err, ErrDeadlock)
		r.Zero(never.w.Len())

		task.Go(func(context.Context) { s.Set(1) })
		v, err := s.Wait(task)
		r.NoError(err)
		r.Equal(1, v)
	})
}
