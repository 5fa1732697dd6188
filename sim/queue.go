// Implements the WaitQueue, the FIFO line in front of a station's servers.
// Customers are enqueued when every server is busy.

package sim

import (
	"fmt"
	"strings"
)

// WaitQueue represents a FIFO queue of customers waiting for a free server.
type WaitQueue struct {
	queue []*Customer
	head  int // index of the first live element; the prefix is reclaimed lazily
}

// Enqueue adds a customer to the back of the wait queue.
func (wq *WaitQueue) Enqueue(c *Customer) {
	if c == nil {
		panic("Enqueue: customer must not be nil")
	}
	wq.queue = append(wq.queue, c)
}

func (wq *WaitQueue) String() string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, c := range wq.Items() {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(fmt.Sprint(c.ID))
	}
	sb.WriteString("]")
	return sb.String()
}

// Len returns the number of customers in the queue.
func (wq *WaitQueue) Len() int {
	return len(wq.queue) - wq.head
}

// Peek returns the customer at the front of the queue without removing it.
// Returns nil if the queue is empty.
func (wq *WaitQueue) Peek() *Customer {
	if wq.Len() == 0 {
		return nil
	}
	return wq.queue[wq.head]
}

// Items returns the queue contents, head first.
// Callers MUST NOT append to or reslice the returned slice.
func (wq *WaitQueue) Items() []*Customer {
	return wq.queue[wq.head:]
}

// Dequeue removes and returns the customer at the front of the queue, or nil if empty.
func (wq *WaitQueue) Dequeue() *Customer {
	if wq.Len() == 0 {
		return nil
	}
	c := wq.queue[wq.head]
	wq.queue[wq.head] = nil
	wq.head++
	// Compact once the dead prefix dominates so long runs don't leak the backing array.
	if wq.head >= 64 && wq.head*2 >= len(wq.queue) {
		n := copy(wq.queue, wq.queue[wq.head:])
		clear(wq.queue[n:])
		wq.queue = wq.queue[:n]
		wq.head = 0
	}
	return c
}
