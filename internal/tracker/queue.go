package tracker

import (
	"time"

	"github.com/proxtrack/pt/internal/timeutil"
)

// ObservationQueue is a bounded multi-producer, single-consumer channel of
// Observations. Enqueue never blocks: a full queue drops the observation
// silently, since producers run on radio callback/interrupt contexts and
// must never stall.
type ObservationQueue struct {
	ch    chan Observation
	clock timeutil.Clock
}

// NewObservationQueue creates a queue with the given capacity. It accepts
// any positive capacity and uses 128 for a non-positive one; the 64-256
// range is enforced only by internal/config's Validate, which rejects
// values outside it.
func NewObservationQueue(capacity int, clock timeutil.Clock) *ObservationQueue {
	if capacity <= 0 {
		capacity = 128
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &ObservationQueue{
		ch:    make(chan Observation, capacity),
		clock: clock,
	}
}

// TryEnqueue attempts to enqueue obs without blocking. It returns false if
// the queue is full, in which case the observation is dropped.
func (q *ObservationQueue) TryEnqueue(obs Observation) bool {
	select {
	case q.ch <- obs:
		return true
	default:
		return false
	}
}

// Dequeue waits up to timeout for an Observation. It returns false if the
// timeout elapses with nothing received.
func (q *ObservationQueue) Dequeue(timeout time.Duration) (Observation, bool) {
	select {
	case obs := <-q.ch:
		return obs, true
	case <-q.clock.After(timeout):
		return Observation{}, false
	}
}

// Len reports the number of observations currently buffered. Intended for
// diagnostics only; do not use it for control flow since it is immediately
// stale under concurrent producers.
func (q *ObservationQueue) Len() int {
	return len(q.ch)
}

// drain removes and discards all buffered observations, used by Reset.
func (q *ObservationQueue) drain() {
	for {
		select {
		case <-q.ch:
		default:
			return
		}
	}
}
