package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jezek/xgb/xproto"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/bnema/keytray/internal/x11"
	"github.com/bnema/keytray/internal/x11/x11test"
)

func runWithTimeout(t *testing.T, l *Loop, cb Callback) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := l.Run(ctx, cb)
	require.NoError(t, ctx.Err(), "loop did not stop on its own")
	return err
}

func TestTimersFireInDeadlineOrder(t *testing.T) {
	clock := clockwork.NewFakeClock()
	l := New(x11test.New(), WithClock(clock), WithSignals())

	third := l.RequestTimeout(30 * time.Millisecond)
	first := l.RequestTimeout(10 * time.Millisecond)
	second := l.RequestTimeout(20 * time.Millisecond)
	l.RequestTimeout(time.Hour)

	assert.Equal(t, 2, l.arms, "only insertions that lower the next deadline rearm")
	assert.Equal(t, 4, l.Pending())

	clock.Advance(50 * time.Millisecond)

	var fired []TimerID
	err := runWithTimeout(t, l, func(ev Event) (ControlFlow, error) {
		timer, ok := ev.(Timer)
		require.True(t, ok)
		fired = append(fired, timer.ID)
		if len(fired) == 3 {
			return Break, nil
		}
		return Continue, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []TimerID{first, second, third}, fired)
	assert.Equal(t, 1, l.Pending())
}

func TestTimerIDsIncrease(t *testing.T) {
	l := New(x11test.New(), WithClock(clockwork.NewFakeClock()), WithSignals())
	a := l.RequestTimeout(time.Second)
	b := l.RequestTimeout(time.Second)
	assert.Less(t, a, b)
}

func TestExpireKeepsFutureTimers(t *testing.T) {
	base := time.Unix(0, 0)
	var q timerQueue
	q.push(Timer{ID: 1, Deadline: base.Add(3 * time.Second)})
	q.push(Timer{ID: 2, Deadline: base.Add(time.Second)})
	q.push(Timer{ID: 3, Deadline: base.Add(2 * time.Second)})

	due := q.expire(base.Add(2 * time.Second))
	require.Len(t, due, 2)
	assert.Equal(t, TimerID(2), due[0].ID)
	assert.Equal(t, TimerID(3), due[1].ID)

	next, ok := q.next()
	require.True(t, ok)
	assert.Equal(t, TimerID(1), next.ID)
}

func TestBreakSkipsQueuedEvents(t *testing.T) {
	conn := x11test.New()
	for i := 0; i < 3; i++ {
		conn.Events <- xproto.ExposeEvent{Window: xproto.Window(i + 1)}
	}
	l := New(conn, WithSignals())

	var seen []xproto.Window
	err := runWithTimeout(t, l, func(ev Event) (ControlFlow, error) {
		x, ok := ev.(X11)
		require.True(t, ok)
		seen = append(seen, x.Event.(xproto.ExposeEvent).Window)
		if len(seen) == 2 {
			return Break, nil
		}
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []xproto.Window{1, 2}, seen)
}

func TestSignalIsDispatched(t *testing.T) {
	l := New(x11test.New(), WithSignals())
	l.signals <- unix.SIGTERM

	var got Event
	err := runWithTimeout(t, l, func(ev Event) (ControlFlow, error) {
		got = ev
		return Break, nil
	})
	require.NoError(t, err)
	assert.Equal(t, Signal{Signal: unix.SIGTERM}, got)
	assert.Equal(t, "SIGTERM", signalName(unix.SIGTERM))
}

func TestCallbackErrorStopsLoop(t *testing.T) {
	conn := x11test.New()
	conn.Events <- xproto.ExposeEvent{}
	l := New(conn, WithSignals())

	boom := errors.New("boom")
	err := runWithTimeout(t, l, func(Event) (ControlFlow, error) {
		return Continue, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestClosedConnectionStopsLoop(t *testing.T) {
	conn := x11test.New()
	conn.Events <- xproto.ExposeEvent{}
	close(conn.Events)
	l := New(conn, WithSignals())

	calls := 0
	err := runWithTimeout(t, l, func(Event) (ControlFlow, error) {
		calls++
		return Continue, nil
	})
	assert.ErrorIs(t, err, x11.ErrConnectionClosed)
	assert.Equal(t, 1, calls)
}
