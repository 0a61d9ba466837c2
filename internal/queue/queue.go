// Package queue provides the in-memory working set of accepted bets as a
// min-priority structure over settlement deadlines. The queue is optimized
// for ordered access to the next deadline; arbitrary lookups go through a
// linear Find, which is fine at the scale of active wagers per process.
package queue

import (
	"container/heap"
	"sync"

	"github.com/alanyoungcy/pvpbet/internal/domain"
)

type entry struct {
	bet domain.ActiveBet
	seq uint64 // insertion order, breaks deadline ties deterministically
}

type betHeap []entry

func (h betHeap) Len() int { return len(h) }

func (h betHeap) Less(i, j int) bool {
	if h[i].bet.Deadline != h[j].bet.Deadline {
		return h[i].bet.Deadline < h[j].bet.Deadline
	}
	return h[i].seq < h[j].seq
}

func (h betHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *betHeap) Push(x any) { *h = append(*h, x.(entry)) }

func (h *betHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// ExpiryQueue orders active bets by ascending settlement deadline, ties
// broken by insertion order (first inserted pops first). All methods are
// safe for concurrent use; read-then-write sequences like peek+pop still
// belong to a single goroutine (the settlement loop owns mutation).
type ExpiryQueue struct {
	mu sync.Mutex
	h  betHeap
	// seq only grows; it survives pops so a requeued bet sorts after
	// everything inserted before it at the same deadline.
	seq uint64
}

// New returns an empty ExpiryQueue.
func New() *ExpiryQueue {
	return &ExpiryQueue{}
}

// Len returns the number of queued bets.
func (q *ExpiryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.h)
}

// Peek returns the smallest deadline currently queued without removing it.
// The second return is false when the queue is empty.
func (q *ExpiryQueue) Peek() (uint64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return 0, false
	}
	return q.h[0].bet.Deadline, true
}

// Push inserts a bet.
func (q *ExpiryQueue) Push(bet domain.ActiveBet) {
	q.mu.Lock()
	defer q.mu.Unlock()
	heap.Push(&q.h, entry{bet: bet, seq: q.seq})
	q.seq++
}

// Pop removes and returns the bet with the smallest (deadline, insertion)
// key. It returns domain.ErrQueueEmpty on an empty queue.
func (q *ExpiryQueue) Pop() (domain.ActiveBet, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.h) == 0 {
		return domain.ActiveBet{}, domain.ErrQueueEmpty
	}
	e := heap.Pop(&q.h).(entry)
	return e.bet, nil
}

// Find returns every queued bet matching the predicate, in no particular
// order. It never mutates the queue.
func (q *ExpiryQueue) Find(pred func(domain.ActiveBet) bool) []domain.ActiveBet {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.ActiveBet
	for _, e := range q.h {
		if pred(e.bet) {
			out = append(out, e.bet)
		}
	}
	return out
}
