package sim

import "container/heap"

// EventQueue is a min-heap of pending events with deterministic ordering.
// Order by: time → insertion sequence (FIFO among simultaneous events).
type EventQueue struct {
	events  []Event
	nextSeq uint64
}

// NewEventQueue creates an empty event queue.
func NewEventQueue() *EventQueue {
	q := &EventQueue{events: make([]Event, 0)}
	heap.Init((*eventHeap)(q))
	return q
}

// eventHeap adapts EventQueue to heap.Interface without exporting the heap methods.
type eventHeap EventQueue

func (h *eventHeap) Len() int { return len(h.events) }

func (h *eventHeap) Less(i, j int) bool {
	ei, ej := h.events[i], h.events[j]
	if ei.Time != ej.Time {
		return ei.Time < ej.Time
	}
	return ei.seq < ej.seq
}

func (h *eventHeap) Swap(i, j int) { h.events[i], h.events[j] = h.events[j], h.events[i] }

func (h *eventHeap) Push(x any) { h.events = append(h.events, x.(Event)) }

func (h *eventHeap) Pop() any {
	old := h.events
	n := len(old)
	item := old[n-1]
	h.events = old[0 : n-1]
	return item
}

// Push schedules e. Times must be non-negative.
func (q *EventQueue) Push(e Event) {
	if e.Time < 0 {
		panic("EventQueue.Push: event time must be >= 0")
	}
	e.seq = q.nextSeq
	q.nextSeq++
	heap.Push((*eventHeap)(q), e)
}

// PopNext removes and returns the earliest event. ok is false when the queue is empty.
func (q *EventQueue) PopNext() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return heap.Pop((*eventHeap)(q)).(Event), true
}

// Peek returns the earliest event without removing it.
func (q *EventQueue) Peek() (Event, bool) {
	if len(q.events) == 0 {
		return Event{}, false
	}
	return q.events[0], true
}

// Len returns the number of pending events.
func (q *EventQueue) Len() int {
	return len(q.events)
}
