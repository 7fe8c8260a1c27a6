package bandwidth

import "container/heap"

// Priority orders outbound transfers; higher value sorts first.
type Priority int

const (
	Background Priority = iota
	Low
	Normal
	High
	Critical
)

// Transfer is one item waiting for its turn on the wire.
type Transfer struct {
	ID       string
	Priority Priority
	PeerID   string

	seq int // insertion order, for FIFO-within-priority
}

// TransferQueue orders transfers by priority descending, FIFO within a
// priority tier (spec.md 4.4). Backed by container/heap.
type TransferQueue struct {
	items  []*Transfer
	nextSeq int
}

func NewTransferQueue() *TransferQueue {
	return &TransferQueue{}
}

func (q *TransferQueue) Len() int { return len(q.items) }

func (q *TransferQueue) Less(i, j int) bool {
	if q.items[i].Priority != q.items[j].Priority {
		return q.items[i].Priority > q.items[j].Priority
	}
	return q.items[i].seq < q.items[j].seq
}

func (q *TransferQueue) Swap(i, j int) { q.items[i], q.items[j] = q.items[j], q.items[i] }

func (q *TransferQueue) Push(x any) {
	t := x.(*Transfer)
	t.seq = q.nextSeq
	q.nextSeq++
	q.items = append(q.items, t)
}

func (q *TransferQueue) Pop() any {
	old := q.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	q.items = old[:n-1]
	return item
}

// Enqueue adds a transfer to the queue.
func (q *TransferQueue) Enqueue(t *Transfer) {
	heap.Push(q, t)
}

// Dequeue removes and returns the highest-priority, oldest-enqueued
// transfer, or nil if the queue is empty.
func (q *TransferQueue) Dequeue() *Transfer {
	if q.Len() == 0 {
		return nil
	}
	return heap.Pop(q).(*Transfer)
}
