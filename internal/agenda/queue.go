package agenda

import (
	"container/heap"
	"slices"
)

// Queue is a binary heap of activations under a Strategy. It is not safe
// for concurrent use; ModuleAgenda guards it.
type Queue struct {
	h activationHeap
}

// NewQueue creates an empty queue ordered by s.
func NewQueue(s Strategy) *Queue {
	return &Queue{h: activationHeap{strategy: s}}
}

// Len returns the number of queued activations.
func (q *Queue) Len() int { return len(q.h.items) }

// Push adds a.
func (q *Queue) Push(a *Activation) { heap.Push(&q.h, a) }

// Pop removes and returns the first activation, or nil when empty.
func (q *Queue) Pop() *Activation {
	if len(q.h.items) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(*Activation)
}

// Peek returns the first activation without removing it.
func (q *Queue) Peek() *Activation {
	if len(q.h.items) == 0 {
		return nil
	}
	return q.h.items[0]
}

// Remove deletes a from the queue. It reports false when a is not queued
// here.
func (q *Queue) Remove(a *Activation) bool {
	i := a.index
	if i < 0 || i >= len(q.h.items) || q.h.items[i] != a {
		return false
	}
	heap.Remove(&q.h, i)
	return true
}

// Strategy returns the current ordering.
func (q *Queue) Strategy() Strategy { return q.h.strategy }

// SetStrategy switches the ordering and rebuilds the heap under it.
func (q *Queue) SetStrategy(s Strategy) {
	q.h.strategy = s
	heap.Init(&q.h)
}

// Sorted returns the queued activations in firing order.
func (q *Queue) Sorted() []*Activation {
	out := slices.Clone(q.h.items)
	slices.SortFunc(out, q.h.strategy.Compare)
	return out
}

// Clear drops every activation.
func (q *Queue) Clear() {
	for _, a := range q.h.items {
		a.index = -1
	}
	clear(q.h.items)
	q.h.items = q.h.items[:0]
}

type activationHeap struct {
	items    []*Activation
	strategy Strategy
}

func (h activationHeap) Len() int { return len(h.items) }

func (h activationHeap) Less(i, j int) bool {
	return h.strategy.Compare(h.items[i], h.items[j]) < 0
}

func (h activationHeap) Swap(i, j int) {
	h.items[i], h.items[j] = h.items[j], h.items[i]
	h.items[i].index = i
	h.items[j].index = j
}

func (h *activationHeap) Push(x any) {
	a := x.(*Activation)
	a.index = len(h.items)
	h.items = append(h.items, a)
}

func (h *activationHeap) Pop() any {
	old := h.items
	n := len(old)
	a := old[n-1]
	old[n-1] = nil
	a.index = -1
	h.items = old[:n-1]
	return a
}
