package orchestrator

import (
	"container/heap"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/auctiondraft/go/internal/models"
)

type pending struct {
	action  models.Action
	arrived time.Time
}

type actionHeap []pending

func (h actionHeap) Len() int           { return len(h) }
func (h actionHeap) Less(i, j int) bool { return h[i].action.Less(h[j].action) }
func (h actionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *actionHeap) Push(x any)        { *h = append(*h, x.(pending)) }
func (h *actionHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// queue is the coordinator's inbox: a min-heap on (createdAt, actionId) plus
// the set of action ids already accepted. The seen set is bounded; ids that
// fall out of it are older than the cursor and the reducer ignores them.
type queue struct {
	mu      sync.Mutex
	items   actionHeap
	seen    map[uuid.UUID]struct{}
	order   []uuid.UUID
	maxSeen int
}

func newQueue(maxSeen int) *queue {
	return &queue{seen: make(map[uuid.UUID]struct{}), maxSeen: maxSeen}
}

// push reports false for an action id that was already accepted.
func (q *queue) push(a models.Action, now time.Time) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, dup := q.seen[a.ActionID]; dup {
		return false
	}
	q.seen[a.ActionID] = struct{}{}
	q.order = append(q.order, a.ActionID)
	if q.maxSeen > 0 && len(q.order) > q.maxSeen {
		evict := len(q.order) - q.maxSeen
		for _, id := range q.order[:evict] {
			delete(q.seen, id)
		}
		q.order = append([]uuid.UUID(nil), q.order[evict:]...)
	}

	heap.Push(&q.items, pending{action: a, arrived: now})
	return true
}

// pop removes the head if it has waited at least window since arrival.
func (q *queue) pop(now time.Time, window time.Duration) (models.Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 || now.Sub(q.items[0].arrived) < window {
		return models.Action{}, false
	}
	return heap.Pop(&q.items).(pending).action, true
}

// releaseAt is when the current head becomes eligible.
func (q *queue) releaseAt(window time.Duration) (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return time.Time{}, false
	}
	return q.items[0].arrived.Add(window), true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
