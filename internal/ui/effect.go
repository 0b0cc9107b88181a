// Package ui holds the widget contract, the effect values widgets return and
// the Window that applies them against the X server.
package ui

import (
	"fmt"
	"time"
)

// Kind discriminates Effect values.
type Kind int

const (
	KindNone Kind = iota
	KindBatch
	KindDelay
	KindAction
	KindRedraw
	KindLayout
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindBatch:
		return "batch"
	case KindDelay:
		return "delay"
	case KindAction:
		return "action"
	case KindRedraw:
		return "redraw"
	case KindLayout:
		return "layout"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Effect is a deferred side effect. The zero value does nothing. Effects are
// plain values; nothing happens until a Window applies them.
type Effect struct {
	kind   Kind
	batch  []Effect
	inner  *Effect
	delay  time.Duration
	action Action
}

func None() Effect { return Effect{} }

func RequestRedraw() Effect { return Effect{kind: KindRedraw} }

func RequestLayout() Effect { return Effect{kind: KindLayout} }

// Act runs action against the window's connection when applied.
func Act(action Action) Effect {
	if action == nil {
		return Effect{}
	}
	return Effect{kind: KindAction, action: action}
}

// Delay applies effect once d has elapsed.
func Delay(effect Effect, d time.Duration) Effect {
	return Effect{kind: KindDelay, inner: &effect, delay: d}
}

// Batch folds effects left to right with Add.
func Batch(effects ...Effect) Effect {
	var out Effect
	for _, e := range effects {
		out = out.Add(e)
	}
	return out
}

func (e Effect) Kind() Kind { return e.kind }

func (e Effect) IsNone() bool { return e.kind == KindNone }

// Children returns the members of a batch.
func (e Effect) Children() []Effect { return e.batch }

// Action returns the action of an action effect.
func (e Effect) Action() Action { return e.action }

// Delayed returns the inner effect and duration of a delay effect.
func (e Effect) Delayed() (Effect, time.Duration) {
	if e.inner == nil {
		return Effect{}, 0
	}
	return *e.inner, e.delay
}

// Add combines two effects. None is the identity, two batches concatenate
// and a batch absorbs a single effect on either side.
func (e Effect) Add(other Effect) Effect {
	switch {
	case e.kind == KindNone:
		return other
	case other.kind == KindNone:
		return e
	case e.kind == KindBatch && other.kind == KindBatch:
		return Effect{kind: KindBatch, batch: concat(e.batch, other.batch)}
	case e.kind == KindBatch:
		return Effect{kind: KindBatch, batch: concat(e.batch, []Effect{other})}
	case other.kind == KindBatch:
		return Effect{kind: KindBatch, batch: concat([]Effect{e}, other.batch)}
	}
	return Effect{kind: KindBatch, batch: []Effect{e, other}}
}

func concat(a, b []Effect) []Effect {
	out := make([]Effect, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

func (e Effect) String() string {
	switch e.kind {
	case KindBatch:
		return fmt.Sprintf("batch%v", e.batch)
	case KindDelay:
		return fmt.Sprintf("delay(%v, %s)", *e.inner, e.delay)
	case KindAction:
		return fmt.Sprintf("action(%T)", e.action)
	}
	return e.kind.String()
}
