package object

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestHub_PublishReachesSubscribersOnly(t *testing.T) {
	h := NewHub()
	a := NewFile("/repo", "/repo/a", DataSet, 1, 0)
	b := NewFile("/repo", "/repo/b", DataSet, 1, 0)

	la, lb := &recorder{}, &recorder{}
	ida, idb := h.Add(la), h.Add(lb)
	require.True(t, h.Subscribe(a, ida))
	require.True(t, h.Subscribe(b, idb))

	require.NoError(t, h.Publish(context.Background(), RemoveEvent{Removed: a}))

	assert.Equal(t, 1, la.count())
	assert.Equal(t, 0, lb.count())
}

func TestHub_SubscribeRejectsDuplicatesAndSelf(t *testing.T) {
	h := NewHub()
	a := NewFile("/repo", "/repo/a", DataSet, 1, 0)

	id := h.Add(&recorder{})
	assert.True(t, h.Subscribe(a, id))
	assert.False(t, h.Subscribe(a, id), "second subscription is a no-op")

	self := h.Add(selfListener{a})
	assert.False(t, h.Subscribe(a, self), "an object cannot listen to itself")

	assert.False(t, h.Subscribe(a, ListenerID("unknown")))
}

type selfListener struct{ *File }

func (selfListener) Notify(context.Context, Event) error { return nil }

func TestHub_ForgetMakesSubscriptionInert(t *testing.T) {
	h := NewHub()
	a := NewFile("/repo", "/repo/a", DataSet, 1, 0)
	l := &recorder{}
	id := h.Add(l)
	require.True(t, h.Subscribe(a, id))

	h.Forget(id)

	require.NoError(t, h.Publish(context.Background(), RemoveEvent{Removed: a}))
	assert.Equal(t, 0, l.count())
	assert.Empty(t, h.Subscribers(a))
}

func TestHub_UnsubscribeAndDrop(t *testing.T) {
	h := NewHub()
	a := NewFile("/repo", "/repo/a", DataSet, 1, 0)
	id1, id2 := h.Add(&recorder{}), h.Add(&recorder{})
	h.Subscribe(a, id1)
	h.Subscribe(a, id2)

	assert.True(t, h.Unsubscribe(a, id1))
	assert.False(t, h.Unsubscribe(a, id1))
	assert.Equal(t, []ListenerID{id2}, h.Subscribers(a))

	h.Drop(a)
	assert.Empty(t, h.Subscribers(a))
}

func TestHub_PublishJoinsFailuresAndRecoversPanics(t *testing.T) {
	h := NewHub()
	a := NewFile("/repo", "/repo/a", DataSet, 1, 0)

	failing := &recorder{err: errors.New("boom")}
	after := &recorder{}
	h.Subscribe(a, h.Add(failing))
	h.Subscribe(a, h.Add(ListenerFunc(func(context.Context, Event) error { panic("bad listener") })))
	h.Subscribe(a, h.Add(after))

	err := h.Publish(context.Background(), ReplaceEvent{Old: a, New: a})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, 1, after.count(), "delivery continues past failing listeners")
}

func TestHub_PublishOrder(t *testing.T) {
	h := NewHub()
	a := NewFile("/repo", "/repo/a", DataSet, 1, 0)

	var order []int
	for i := 0; i < 5; i++ {
		i := i
		h.Subscribe(a, h.Add(ListenerFunc(func(context.Context, Event) error {
			order = append(order, i)
			return nil
		})))
	}
	require.NoError(t, h.Publish(context.Background(), MoveEvent{Moved: a, NewPath: "/repo/b"}))
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order)
}
