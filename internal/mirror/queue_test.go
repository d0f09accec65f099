package mirror

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpQueue_FIFOAndSeq(t *testing.T) {
	q := newOpQueue(41)

	seq, ok := q.Enqueue(op{subject: "a"})
	require.True(t, ok)
	assert.Equal(t, int64(42), seq)
	seq, _ = q.Enqueue(op{subject: "b"})
	assert.Equal(t, int64(43), seq)
	assert.Equal(t, int64(43), q.Last())
	assert.Equal(t, 2, q.Len())

	first, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", first.subject)
	assert.Equal(t, int64(42), first.seq)

	second, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "b", second.subject)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

func TestOpQueue_CloseDrainsThenStops(t *testing.T) {
	q := newOpQueue(0)
	q.Enqueue(op{subject: "a"})
	q.Close()
	q.Close()

	_, ok := q.Enqueue(op{subject: "b"})
	assert.False(t, ok)

	o, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "a", o.subject)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

func TestOpQueue_ConcurrentEnqueueKeepsSeqOrder(t *testing.T) {
	q := newOpQueue(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Enqueue(op{})
			}
		}()
	}
	wg.Wait()
	q.Close()

	var prev int64
	for {
		o, ok := q.Dequeue()
		if !ok {
			break
		}
		assert.Equal(t, prev+1, o.seq)
		prev = o.seq
	}
	assert.Equal(t, int64(800), prev)
}
