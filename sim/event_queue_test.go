package sim

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventQueue_PopsInTimeOrder(t *testing.T) {
	// GIVEN 10k events pushed at random times
	q := NewEventQueue()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		q.Push(NewArrivalEvent(rng.Float64()*100, CustomerID(i), "s"))
	}

	// WHEN they are drained
	prev := -1.0
	n := 0
	for {
		ev, ok := q.PopNext()
		if !ok {
			break
		}
		// THEN popped times never decrease
		require.GreaterOrEqual(t, ev.Time, prev, "event %d popped out of order", n)
		prev = ev.Time
		n++
	}
	assert.Equal(t, 10000, n)
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_TiesAreFIFO(t *testing.T) {
	// GIVEN events at the same instant interleaved with an earlier one
	q := NewEventQueue()
	q.Push(NewArrivalEvent(5, 1, "a"))
	q.Push(NewDepartureEvent(5, 2, "b", 0))
	q.Push(NewArrivalEvent(1, 3, "c"))
	q.Push(NewArrivalEvent(5, 4, "d"))

	// WHEN drained
	var ids []CustomerID
	for q.Len() > 0 {
		ev, _ := q.PopNext()
		ids = append(ids, ev.CustomerID)
	}

	// THEN simultaneous events leave in insertion order
	assert.Equal(t, []CustomerID{3, 1, 2, 4}, ids)
}

func TestEventQueue_SeqIsAssignedOnPush(t *testing.T) {
	q := NewEventQueue()
	ev := NewArrivalEvent(2, 1, "a")
	q.Push(ev)
	q.Push(ev)

	first, _ := q.PopNext()
	second, _ := q.PopNext()
	assert.Equal(t, uint64(0), first.Seq())
	assert.Equal(t, uint64(1), second.Seq())
	assert.Equal(t, uint64(0), ev.Seq(), "the caller's copy is untouched")
}

func TestEventQueue_PeekDoesNotRemove(t *testing.T) {
	q := NewEventQueue()
	_, ok := q.Peek()
	assert.False(t, ok)

	q.Push(NewArrivalEvent(3, 1, "a"))
	q.Push(NewArrivalEvent(2, 2, "a"))
	ev, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 2.0, ev.Time)
	assert.Equal(t, 2, q.Len())
}

func TestEventQueue_EmptyPop(t *testing.T) {
	_, ok := NewEventQueue().PopNext()
	assert.False(t, ok)
}

func TestEventQueue_NegativeTimePanics(t *testing.T) {
	assert.Panics(t, func() {
		NewEventQueue().Push(NewArrivalEvent(-1, 1, "a"))
	})
}

func TestEvent_String(t *testing.T) {
	assert.Equal(t, "Arrival{t=1.500000 customer=7 station=teller}", NewArrivalEvent(1.5, 7, "teller").String())
	assert.Equal(t, "Departure{t=2.000000 customer=7 station=teller slot=1}", NewDepartureEvent(2, 7, "teller", 1).String())
	assert.Equal(t, "EventKind(9)", EventKind(9).String())
}
