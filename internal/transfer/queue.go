package transfer

import (
	"time"
)

// CallbackEvent is the completion token a transfer agent pushes once an
// operation has finished.
type CallbackEvent struct {
	Success bool
	Err     error
}

// CallbackQueue is a blocking queue of completion tokens with a bounded
// wait. One upload in flight pairs with one queue.
type CallbackQueue struct {
	ch chan CallbackEvent
}

func NewCallbackQueue() *CallbackQueue {
	return &CallbackQueue{
		ch: make(chan CallbackEvent, 16),
	}
}

func (q *CallbackQueue) Put(ev CallbackEvent) {
	q.ch <- ev
}

// Get waits up to timeout for a completion token. The second return is
// false when the wait timed out.
func (q *CallbackQueue) Get(timeout time.Duration) (CallbackEvent, bool) {
	select {
	case ev := <-q.ch:
		return ev, true
	case <-time.After(timeout):
		return CallbackEvent{}, false
	}
}

// WaitUntil blocks for a completion token, re-checking the alive predicate
// every step. It returns false if the predicate reports the run is no
// longer active, so a stopped backup abandons the wait instead of hanging.
func (q *CallbackQueue) WaitUntil(alive func() bool, step time.Duration) (CallbackEvent, bool) {
	for alive() {
		if ev, ok := q.Get(step); ok {
			return ev, true
		}
	}
	return CallbackEvent{}, false
}

// Operation is one pending physical transfer: a finished chunk file on
// local disk destined for a storage key.
type Operation struct {
	LocalPath   string
	Key         string
	RemoveAfter bool
	Callback    *CallbackQueue
}

// Queue feeds transfer agents.
type Queue chan *Operation
