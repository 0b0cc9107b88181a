package event

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jezek/xgb"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sys/unix"

	"github.com/bnema/keytray/internal/x11"
)

// Source is where X events come from.
type Source interface {
	WaitForEvent() (xgb.Event, error)
}

type received struct {
	ev  xgb.Event
	err error
}

// Loop runs every callback on the goroutine that called Run. The X
// connection is read by a helper goroutine that only hands events over.
type Loop struct {
	source Source
	clock  clockwork.Clock

	timer  clockwork.Timer
	armed  time.Time
	arms   int
	timers timerQueue
	lastID TimerID

	watch   []os.Signal
	signals chan os.Signal
	xevents chan received
}

type Option func(*Loop)

// WithClock replaces the wall clock, mostly for tests.
func WithClock(clock clockwork.Clock) Option {
	return func(l *Loop) { l.clock = clock }
}

// WithSignals replaces the watched signal set.
func WithSignals(sigs ...os.Signal) Option {
	return func(l *Loop) { l.watch = sigs }
}

func New(source Source, opts ...Option) *Loop {
	l := &Loop{
		source:  source,
		clock:   clockwork.NewRealClock(),
		watch:   []os.Signal{unix.SIGINT, unix.SIGTERM, unix.SIGHUP},
		signals: make(chan os.Signal, 1),
		xevents: make(chan received, 256),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// RequestTimeout schedules a Timer event d from now. The underlying timer is
// only reprogrammed when the new deadline is earlier than the armed one.
func (l *Loop) RequestTimeout(d time.Duration) TimerID {
	now := l.clock.Now()
	deadline := now.Add(max(d, 0))
	l.lastID++
	id := l.lastID
	if l.armed.IsZero() || deadline.Before(l.armed) {
		l.arm(now, deadline)
	}
	l.timers.push(Timer{ID: id, Deadline: deadline})
	return id
}

// Pending is the number of timers that have not fired yet.
func (l *Loop) Pending() int {
	return l.timers.Len()
}

func (l *Loop) arm(now, deadline time.Time) {
	d := max(deadline.Sub(now), 0)
	if l.timer == nil {
		l.timer = l.clock.NewTimer(d)
	} else {
		l.timer.Stop()
		l.timer.Reset(d)
	}
	l.armed = deadline
	l.arms++
}

// expired pops every due timer and rearms for the next one.
func (l *Loop) expired() []Timer {
	l.armed = time.Time{}
	now := l.clock.Now()
	due := l.timers.expire(now)
	if next, ok := l.timers.next(); ok {
		l.arm(now, next.Deadline)
	}
	return due
}

// Run dispatches events to cb until cb asks to break, cb fails, the X
// connection closes or ctx is cancelled.
func (l *Loop) Run(ctx context.Context, cb Callback) error {
	if len(l.watch) > 0 {
		signal.Notify(l.signals, l.watch...)
		defer signal.Stop(l.signals)
	}

	done := make(chan struct{})
	defer close(done)
	go l.pump(done)

	for {
		var timerC <-chan time.Time
		if l.timer != nil && !l.armed.IsZero() {
			timerC = l.timer.Chan()
		}

		var (
			flow ControlFlow
			err  error
		)
		select {
		case <-ctx.Done():
			return nil
		case r := <-l.xevents:
			flow, err = l.drain(r, cb)
		case <-timerC:
			flow, err = l.fire(cb)
		case sig := <-l.signals:
			log.Info().Str("signal", signalName(sig)).Msg("received signal")
			flow, err = cb(Signal{Signal: sig})
		}
		if err != nil {
			return err
		}
		if flow == Break {
			return nil
		}
	}
}

// drain dispatches r and then everything already queued behind it.
func (l *Loop) drain(r received, cb Callback) (ControlFlow, error) {
	for {
		switch {
		case errors.Is(r.err, x11.ErrConnectionClosed):
			return Break, fmt.Errorf("wait for event: %w", r.err)
		case r.err != nil:
			// Errors from unchecked requests, usually a window that went away.
			log.Debug().Err(r.err).Msg("x11 error")
		case r.ev != nil:
			flow, err := cb(X11{Event: r.ev})
			if err != nil || flow == Break {
				return flow, err
			}
		}
		select {
		case r = <-l.xevents:
		default:
			return Continue, nil
		}
	}
}

func (l *Loop) fire(cb Callback) (ControlFlow, error) {
	for _, t := range l.expired() {
		flow, err := cb(t)
		if err != nil || flow == Break {
			return flow, err
		}
	}
	return Continue, nil
}

func (l *Loop) pump(done <-chan struct{}) {
	for {
		ev, err := l.source.WaitForEvent()
		select {
		case l.xevents <- received{ev: ev, err: err}:
		case <-done:
			return
		}
		if errors.Is(err, x11.ErrConnectionClosed) {
			return
		}
	}
}

func signalName(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		if name := unix.SignalName(s); name != "" {
			return name
		}
	}
	return sig.String()
}
