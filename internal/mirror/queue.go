package mirror

import "sync"

// opQueue is an unbounded FIFO of pending writes.
//
// Enqueue is called from inside store locks and never blocks. The writer
// goroutine drains it with Dequeue. The signal channel has a buffer of one,
// so many enqueues coalesce into a single wake-up.
type opQueue struct {
	mu     sync.Mutex
	ops    []op
	last   int64
	closed bool
	signal chan struct{}
}

// newOpQueue returns a queue whose first op is assigned seq start+1.
func newOpQueue(start int64) *opQueue {
	return &opQueue{
		ops:    make([]op, 0, 64),
		last:   start,
		signal: make(chan struct{}, 1),
	}
}

// Enqueue assigns o the next seq and appends it. Returns false if the queue
// is closed.
func (q *opQueue) Enqueue(o op) (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return 0, false
	}
	q.last++
	o.seq = q.last
	q.ops = append(q.ops, o)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return o.seq, true
}

// Last returns the seq of the most recently enqueued op.
func (q *opQueue) Last() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.last
}

// TryDequeue removes the front op without blocking.
func (q *opQueue) TryDequeue() (op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.ops) == 0 {
		return op{}, false
	}
	o := q.ops[0]
	q.ops[0] = op{}
	if len(q.ops) == 1 {
		q.ops = q.ops[:0]
	} else {
		q.ops = q.ops[1:]
	}
	return o, true
}

// Dequeue blocks until an op is available. It returns false once the queue
// is closed and drained.
func (q *opQueue) Dequeue() (op, bool) {
	for {
		if o, ok := q.TryDequeue(); ok {
			return o, true
		}

		q.mu.Lock()
		if q.closed && len(q.ops) == 0 {
			q.mu.Unlock()
			return op{}, false
		}
		q.mu.Unlock()

		<-q.signal
	}
}

// Len returns the number of pending ops.
func (q *opQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.ops)
}

// Close stops accepting ops and wakes the writer.
func (q *opQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
