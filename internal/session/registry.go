package session

import (
	"container/list"
	"fmt"
	"sync"
)

// Registry owns the waiting queue and the active pairings. Every exported
// method runs as one critical section, so callers never observe a
// half-applied transition. No method performs I/O.
type Registry struct {
	mu      sync.Mutex
	queue   *list.List
	waiting map[int64]*list.Element
	pairs   map[int64]int64
}

func NewRegistry() *Registry {
	return &Registry{
		queue:   list.New(),
		waiting: make(map[int64]*list.Element),
		pairs:   make(map[int64]int64),
	}
}

// Enqueue appends id to the tail of the queue. It reports false and changes
// nothing when id is already waiting or paired.
func (r *Registry) Enqueue(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enqueueLocked(id)
}

// DequeuePair pops the two oldest waiting participants and pairs them.
func (r *Registry) DequeuePair() (Pair, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dequeuePairLocked()
}

// EnqueueAndMatch is Enqueue followed by DequeuePair in a single critical
// section. When the enqueue was a no-op no pairing is attempted.
func (r *Registry) EnqueueAndMatch(id int64) (Pair, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.enqueueLocked(id) {
		return Pair{}, false
	}
	return r.dequeuePairLocked()
}

// Disconnect dissolves the pairing of id and returns the former partner.
// A waiting id is removed from the queue instead; an idle id is a no-op.
func (r *Registry) Disconnect(id int64) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if partner, ok := r.pairs[id]; ok {
		delete(r.pairs, id)
		delete(r.pairs, partner)
		return partner, true
	}

	if el, ok := r.waiting[id]; ok {
		r.queue.Remove(el)
		delete(r.waiting, id)
	}
	return 0, false
}

func (r *Registry) Status(id int64) State {
	r.mu.Lock()
	defer r.mu.Unlock()

	if partner, ok := r.pairs[id]; ok {
		return State{Kind: Paired, Partner: partner}
	}
	if _, ok := r.waiting[id]; ok {
		return State{Kind: Waiting}
	}
	return State{Kind: Idle}
}

func (r *Registry) QueueLen() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.queue.Len()
}

// PairCount returns the number of active pairings, not paired participants.
func (r *Registry) PairCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pairs) / 2
}

func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Queue: make([]int64, 0, r.queue.Len()),
		Pairs: make(map[int64]int64, len(r.pairs)),
	}
	for el := r.queue.Front(); el != nil; el = el.Next() {
		snap.Queue = append(snap.Queue, el.Value.(int64))
	}
	for a, b := range r.pairs {
		snap.Pairs[a] = b
	}
	return snap
}

// CheckInvariants verifies queue uniqueness, pairing symmetry and that no
// participant is both waiting and paired.
func (r *Registry) CheckInvariants() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.queue.Len() != len(r.waiting) {
		return fmt.Errorf("queue holds %d entries but index holds %d", r.queue.Len(), len(r.waiting))
	}

	seen := make(map[int64]struct{}, r.queue.Len())
	for el := r.queue.Front(); el != nil; el = el.Next() {
		id := el.Value.(int64)
		if _, dup := seen[id]; dup {
			return fmt.Errorf("participant %d queued twice", id)
		}
		seen[id] = struct{}{}
		if r.waiting[id] != el {
			return fmt.Errorf("participant %d queue index is stale", id)
		}
		if _, paired := r.pairs[id]; paired {
			return fmt.Errorf("participant %d is both waiting and paired", id)
		}
	}

	for a, b := range r.pairs {
		if a == b {
			return fmt.Errorf("participant %d paired with itself", a)
		}
		if back, ok := r.pairs[b]; !ok || back != a {
			return fmt.Errorf("pairing %d->%d is not symmetric", a, b)
		}
	}
	return nil
}

func (r *Registry) enqueueLocked(id int64) bool {
	if _, ok := r.pairs[id]; ok {
		return false
	}
	if _, ok := r.waiting[id]; ok {
		return false
	}
	r.waiting[id] = r.queue.PushBack(id)
	return true
}

func (r *Registry) dequeuePairLocked() (Pair, bool) {
	if r.queue.Len() < 2 {
		return Pair{}, false
	}

	a := r.popFrontLocked()
	b := r.popFrontLocked()
	r.pairs[a] = b
	r.pairs[b] = a
	return Pair{A: a, B: b}, true
}

func (r *Registry) popFrontLocked() int64 {
	el := r.queue.Front()
	id := r.queue.Remove(el).(int64)
	delete(r.waiting, id)
	return id
}
