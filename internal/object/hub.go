package object

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Listener receives lifecycle events for objects it subscribed to.
//
// ctx identifies the delivery in progress. A listener that calls back into
// a store must pass ctx on, otherwise the call waits for the delivery it is
// part of to finish.
type Listener interface {
	Notify(ctx context.Context, ev Event) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(context.Context, Event) error

func (f ListenerFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }

// ListenerID addresses a listener in a Hub.
type ListenerID string

// Hub is the listener registry shared by the repositories of a process.
//
// It owns listeners by id and keeps, per subject id, the ordered list of
// subscribed listener ids. Subscriptions are non-owning: forgetting a
// listener invalidates all of its subscriptions, which are pruned lazily on
// the next publish for each subject.
//
// Thread-safety: all methods are safe for concurrent use. Listeners are
// invoked without holding the hub lock.
type Hub struct {
	mu        sync.Mutex
	listeners map[ListenerID]Listener
	subs      map[string][]ListenerID
}

// NewHub creates an empty listener registry.
func NewHub() *Hub {
	return &Hub{
		listeners: make(map[ListenerID]Listener),
		subs:      make(map[string][]ListenerID),
	}
}

// Add registers a listener and returns its id.
func (h *Hub) Add(l Listener) ListenerID {
	id := ListenerID(uuid.Must(uuid.NewV7()).String())
	h.mu.Lock()
	h.listeners[id] = l
	h.mu.Unlock()
	return id
}

// Forget removes a listener. Its subscriptions become inert.
func (h *Hub) Forget(id ListenerID) {
	h.mu.Lock()
	delete(h.listeners, id)
	h.mu.Unlock()
}

// Subscribe makes the listener receive events about subject.
// Returns false if the listener is unknown, already subscribed, or is the
// subject itself.
func (h *Hub) Subscribe(subject Object, id ListenerID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	l, ok := h.listeners[id]
	if !ok {
		return false
	}
	if self, ok := l.(Object); ok && Same(self, subject) {
		return false
	}
	for _, existing := range h.subs[subject.ID()] {
		if existing == id {
			return false
		}
	}
	h.subs[subject.ID()] = append(h.subs[subject.ID()], id)
	return true
}

// Unsubscribe removes one subscription.
func (h *Hub) Unsubscribe(subject Object, id ListenerID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	ids := h.subs[subject.ID()]
	for i, existing := range ids {
		if existing == id {
			h.subs[subject.ID()] = append(ids[:i:i], ids[i+1:]...)
			if len(h.subs[subject.ID()]) == 0 {
				delete(h.subs, subject.ID())
			}
			return true
		}
	}
	return false
}

// Drop removes every subscription to subject.
func (h *Hub) Drop(subject Object) {
	h.mu.Lock()
	delete(h.subs, subject.ID())
	h.mu.Unlock()
}

// Subscribers returns the live listener ids subscribed to subject.
func (h *Hub) Subscribers(subject Object) []ListenerID {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []ListenerID
	for _, id := range h.subs[subject.ID()] {
		if _, ok := h.listeners[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Publish delivers ev to the listeners of ev.Subject() in subscription
// order. A listener error or panic does not stop delivery to the others;
// all failures are joined into the returned error.
func (h *Hub) Publish(ctx context.Context, ev Event) error {
	subject := ev.Subject()
	if subject == nil {
		return nil
	}

	h.mu.Lock()
	ids := h.subs[subject.ID()]
	targets := make([]Listener, 0, len(ids))
	kept := make([]ListenerID, 0, len(ids))
	for _, id := range ids {
		if l, ok := h.listeners[id]; ok {
			targets = append(targets, l)
			kept = append(kept, id)
		}
	}
	switch {
	case len(kept) == 0:
		delete(h.subs, subject.ID())
	case len(kept) != len(ids):
		h.subs[subject.ID()] = kept
	}
	h.mu.Unlock()

	var errs []error
	for _, l := range targets {
		if err := deliver(ctx, l, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func deliver(ctx context.Context, l Listener, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s listener panicked: %v", ev.Type(), r)
		}
	}()
	if err := l.Notify(ctx, ev); err != nil {
		return fmt.Errorf("%s listener: %w", ev.Type(), err)
	}
	return nil
}
