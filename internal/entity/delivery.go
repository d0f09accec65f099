package entity

import (
	"context"
	"sync"
)

// delivery orders the events of one store by commit order.
//
// A ticket is taken with the store lock held, at the moment the transition
// is committed. After the lock is released the event waits until every
// earlier ticket of the store has been delivered. Calls made by a listener
// of this store with the context it was handed run inline: they belong to
// the delivery in progress and waiting would never end.
type delivery struct {
	mu   sync.Mutex
	cond *sync.Cond
	next uint64
	turn uint64
	// done holds tickets finished ahead of turn by inline deliveries.
	done map[uint64]bool
}

type deliveringKey struct{ d *delivery }

func newDelivery() *delivery {
	d := &delivery{done: make(map[uint64]bool)}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// take issues the next ticket. The caller holds the store lock.
func (d *delivery) take() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.next
	d.next++
	return t
}

// run calls fn once ticket is due and marks it delivered afterwards. fn
// receives a context that lets listeners re-enter the store.
func (d *delivery) run(ctx context.Context, ticket uint64, fn func(context.Context) error) error {
	if ctx.Value(deliveringKey{d}) == nil {
		d.mu.Lock()
		for d.turn != ticket {
			d.cond.Wait()
		}
		d.mu.Unlock()
		ctx = context.WithValue(ctx, deliveringKey{d}, true)
	}
	defer d.finish(ticket)
	return fn(ctx)
}

func (d *delivery) finish(ticket uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ticket != d.turn {
		d.done[ticket] = true
		return
	}
	d.turn++
	for d.done[d.turn] {
		delete(d.done, d.turn)
		d.turn++
	}
	d.cond.Broadcast()
}
