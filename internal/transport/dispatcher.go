package transport

import (
	"context"
	"sync"
)

type pending struct {
	ctx context.Context
	in  Inbound
}

// Dispatcher runs updates from different participants concurrently while
// keeping each participant's own updates in arrival order.
type Dispatcher struct {
	handler Handler

	mu     sync.Mutex
	queues map[int64][]pending
	wg     sync.WaitGroup
}

func NewDispatcher(h Handler) *Dispatcher {
	return &Dispatcher{
		handler: h,
		queues:  make(map[int64][]pending),
	}
}

// Dispatch queues in behind any update from the same participant that is
// still being handled. It never blocks on the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) {
	d.mu.Lock()
	q, running := d.queues[in.From]
	d.queues[in.From] = append(q, pending{ctx: ctx, in: in})
	if !running {
		d.wg.Add(1)
	}
	d.mu.Unlock()

	if !running {
		go d.drain(in.From)
	}
}

// Wait blocks until every dispatched update has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) drain(id int64) {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		q := d.queues[id]
		if len(q) == 0 {
			delete(d.queues, id)
			d.mu.Unlock()
			return
		}
		next := q[0]
		d.queues[id] = q[1:]
		d.mu.Unlock()

		d.handler.Handle(next.ctx, next.in)
	}
}
