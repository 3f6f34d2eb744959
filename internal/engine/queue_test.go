package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/appsim/internal/ir"
)

func obs(to, msg string) ir.Observation {
	return ir.Observation{ToAgent: to, Message: msg, Data: ir.IRObject{}, Priority: ir.PriorityNormal}
}

func TestObservationQueue_DrainIsPerAgentFIFO(t *testing.T) {
	q := NewObservationQueue()
	q.Push(obs("bob", "one"), obs("alice", "a"), obs("bob", "two"))

	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []string{"alice", "bob"}, q.Recipients())
	assert.Equal(t, 2, q.Pending("bob"))

	got := q.Drain("bob")
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Message)
	assert.Equal(t, "two", got[1].Message)

	assert.Empty(t, q.Drain("bob"), "second drain returns nothing")
	assert.Equal(t, 1, q.Pending("alice"))
}

func TestObservationQueue_DrainUnknownAgent(t *testing.T) {
	q := NewObservationQueue()
	assert.Empty(t, q.Drain("nobody"))
}

func TestObservationQueue_PushNothing(t *testing.T) {
	q := NewObservationQueue()
	q.Push()

	select {
	case <-q.Wait():
		t.Fatal("empty push should not signal")
	default:
	}
}

func TestObservationQueue_WaitSignals(t *testing.T) {
	q := NewObservationQueue()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	go q.Push(obs("bob", "hi"))

	select {
	case <-ctx.Done():
		t.Fatal("timed out waiting for signal")
	case <-q.Wait():
	}
	assert.Len(t, q.Drain("bob"), 1)
}

func TestObservationQueue_ConcurrentPush(t *testing.T) {
	q := NewObservationQueue()
	const workers, per = 20, 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < per; j++ {
				q.Push(obs("bob", "x"))
			}
		}()
	}
	wg.Wait()

	assert.Len(t, q.Drain("bob"), workers*per)
}
