package engine

import (
	"slices"
	"sync"

	"github.com/roach88/appsim/internal/ir"
)

// ObservationQueue holds pending observations per recipient agent.
//
// Notify blocks never deliver anything themselves; the app pushes the
// observations a call produced here, and the external scheduler drains
// them per agent. Each agent's list is FIFO in push order.
//
// The queue is unbounded. A scheduler that stops draining will see memory
// grow; it never blocks an action.
//
// Thread-safety: all methods are safe for concurrent use. The signal
// channel enables context-aware waiting by a scheduler goroutine.
type ObservationQueue struct {
	mu      sync.Mutex
	pending map[string][]ir.Observation
	signal  chan struct{} // Signals availability (buffered, size 1)
}

// NewObservationQueue creates an empty queue.
func NewObservationQueue() *ObservationQueue {
	return &ObservationQueue{
		pending: make(map[string][]ir.Observation),
		signal:  make(chan struct{}, 1),
	}
}

// Push appends observations to their recipients' lists.
func (q *ObservationQueue) Push(obs ...ir.Observation) {
	if len(obs) == 0 {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, o := range obs {
		q.pending[o.ToAgent] = append(q.pending[o.ToAgent], o)
	}

	// Non-blocking: buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Drain removes and returns every pending observation for agentID.
// A second call returns nil until more observations are pushed.
func (q *ObservationQueue) Drain(agentID string) []ir.Observation {
	q.mu.Lock()
	defer q.mu.Unlock()

	obs := q.pending[agentID]
	delete(q.pending, agentID)
	return obs
}

// Pending returns the number of observations waiting for agentID.
func (q *ObservationQueue) Pending(agentID string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending[agentID])
}

// Len returns the total number of pending observations.
func (q *ObservationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for _, obs := range q.pending {
		n += len(obs)
	}
	return n
}

// Recipients returns the agents with pending observations, sorted.
func (q *ObservationQueue) Recipients() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]string, 0, len(q.pending))
	for id := range q.pending {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Wait returns a channel that signals when observations may be available.
// Use with select for context-aware waiting:
//
//	select {
//	case <-ctx.Done():
//	    return ctx.Err()
//	case <-q.Wait():
//	    // Drain recipients
//	}
func (q *ObservationQueue) Wait() <-chan struct{} {
	return q.signal
}
