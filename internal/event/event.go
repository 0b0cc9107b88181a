// Package event multiplexes the X connection, timers and process signals
// onto a single dispatch goroutine.
package event

import (
	"os"
	"time"

	"github.com/jezek/xgb"
)

// TimerID identifies a timeout requested with Loop.RequestTimeout.
type TimerID uint64

// ControlFlow tells the loop whether to keep going after a callback.
type ControlFlow int

const (
	Continue ControlFlow = iota
	Break
)

// Event is one item handed to the loop callback.
type Event interface {
	loopEvent()
}

// X11 wraps an event read from the X connection.
type X11 struct {
	Event xgb.Event
}

// Timer fires once per requested timeout, in deadline order.
type Timer struct {
	ID       TimerID
	Deadline time.Time
}

// Signal is a process signal the loop was asked to watch.
type Signal struct {
	Signal os.Signal
}

func (X11) loopEvent()    {}
func (Timer) loopEvent()  {}
func (Signal) loopEvent() {}

// Callback handles one event. Returning an error stops the loop.
type Callback func(ev Event) (ControlFlow, error)
