package event

import (
	"container/heap"
	"time"
)

type timerQueue []Timer

func (q timerQueue) Len() int { return len(q) }

func (q timerQueue) Less(i, j int) bool {
	if q[i].Deadline.Equal(q[j].Deadline) {
		return q[i].ID < q[j].ID
	}
	return q[i].Deadline.Before(q[j].Deadline)
}

func (q timerQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *timerQueue) Push(x any) { *q = append(*q, x.(Timer)) }

func (q *timerQueue) Pop() any {
	old := *q
	n := len(old)
	t := old[n-1]
	*q = old[:n-1]
	return t
}

func (q *timerQueue) push(t Timer) {
	heap.Push(q, t)
}

// next returns the earliest pending timer.
func (q timerQueue) next() (Timer, bool) {
	if len(q) == 0 {
		return Timer{}, false
	}
	return q[0], true
}

// expire removes and returns every timer due at or before now, earliest first.
func (q *timerQueue) expire(now time.Time) []Timer {
	var due []Timer
	for q.Len() > 0 && !(*q)[0].Deadline.After(now) {
		due = append(due, heap.Pop(q).(Timer))
	}
	return due
}
