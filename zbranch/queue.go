package zbranch

import (
	"container/heap"
	"sync"
)

// heapSlice is a container/heap.Interface over Branch, ordered
// deepest-first (spec.md section 3: "Ordering in the queue is by depth
// (deepest first)"). Grounded on the teacher's WorkQueue
// (workstealingscheduler.WorkQueue): a thread-safe, mutex-protected
// collection with Push/Pop, generalized here to a priority discipline
// instead of LIFO/FIFO.
type heapSlice []Branch

func (h heapSlice) Len() int            { return len(h) }
func (h heapSlice) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h heapSlice) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *heapSlice) Push(x interface{}) { *h = append(*h, x.(Branch)) }
func (h *heapSlice) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is the per-process priority queue described in spec.md section
// 4.2. T3 is the sole producer and primary consumer; T2 is a secondary
// consumer donating branches to idle peers.
type Queue struct {
	mu sync.Mutex
	h  heapSlice
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	q := &Queue{h: make(heapSlice, 0, 64)}
	heap.Init(&q.h)
	return q
}

// Push inserts b under the queue lock.
func (q *Queue) Push(b Branch) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, b)
}

// Pop removes and returns the deepest branch. ok is false on an empty
// queue.
func (q *Queue) Pop() (b Branch, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return Branch{}, false
	}
	return heap.Pop(&q.h).(Branch), true
}

// Size returns the current queue length.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Donate pops the deepest branch for donation to an idle peer, but only
// when doing so would not starve this process (queue.size() > 1 per
// spec.md section 4.2 — "this size-1 guard keeps the donor from starving
// itself"). ok is false when the guard blocks the donation or the queue
// is empty.
func (q *Queue) Donate() (b Branch, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) <= 1 {
		return Branch{}, false
	}
	return heap.Pop(&q.h).(Branch), true
}
