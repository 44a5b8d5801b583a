package sim

import (
	"container/heap"
	"sync"
)

// EventHandle identifies one scheduled event. The zero value does not refer
// to any event.
type EventHandle struct {
	seq uint64
}

// Valid returns true if the handle was issued by an engine.
func (h EventHandle) Valid() bool {
	return h.seq != 0
}

// EventQueue are a queue of event ordered by the time of events. Events with
// the same time are ordered by the sequence number given at push time.
type EventQueue interface {
	Push(evt Event, seq uint64)
	Pop() Event
	Remove(seq uint64) bool
	Len() int
	Peek() Event
}

type queueItem struct {
	evt   Event
	seq   uint64
	index int
}

// EventQueueImpl provides a thread safe event queue
type EventQueueImpl struct {
	sync.Mutex
	events eventHeap
	bySeq  map[uint64]*queueItem
}

// NewEventQueue creates and returns a newly created EventQueue
func NewEventQueue() *EventQueueImpl {
	q := new(EventQueueImpl)
	q.events = make([]*queueItem, 0)
	q.bySeq = make(map[uint64]*queueItem)
	heap.Init(&q.events)

	return q
}

// Push adds an event to the event queue
func (q *EventQueueImpl) Push(evt Event, seq uint64) {
	q.Lock()
	item := &queueItem{evt: evt, seq: seq}
	heap.Push(&q.events, item)
	q.bySeq[seq] = item
	q.Unlock()
}

// Pop returns the next earliest event
func (q *EventQueueImpl) Pop() Event {
	q.Lock()
	item := heap.Pop(&q.events).(*queueItem)
	delete(q.bySeq, item.seq)
	q.Unlock()

	return item.evt
}

// Remove drops the event with the given sequence number. It returns false if
// the event is not in the queue.
func (q *EventQueueImpl) Remove(seq uint64) bool {
	q.Lock()
	defer q.Unlock()

	item, found := q.bySeq[seq]
	if !found {
		return false
	}

	heap.Remove(&q.events, item.index)
	delete(q.bySeq, seq)

	return true
}

// Len returns the number of event in the queue
func (q *EventQueueImpl) Len() int {
	q.Lock()
	l := q.events.Len()
	q.Unlock()

	return l
}

// Peek returns the event in front of the queue without removing it from the
// queue
func (q *EventQueueImpl) Peek() Event {
	q.Lock()
	evt := q.events[0].evt
	q.Unlock()

	return evt
}

type eventHeap []*queueItem

// Len returns the length of the event queue
func (h eventHeap) Len() int {
	return len(h)
}

// Less determines the order between two events. Less returns true if the i-th
// event happens before the j-th event. Same-time events keep their insertion
// order.
func (h eventHeap) Less(i, j int) bool {
	ti, tj := h[i].evt.Time(), h[j].evt.Time()
	if ti != tj {
		return ti < tj
	}

	return h[i].seq < h[j].seq
}

// Swap changes the position of two events in the event queue
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

// Push adds an event into the event queue
func (h *eventHeap) Push(x interface{}) {
	item := x.(*queueItem)
	item.index = len(*h)
	*h = append(*h, item)
}

// Pop removes and returns the next event to happen
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]

	return item
}
