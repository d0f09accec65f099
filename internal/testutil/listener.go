package testutil

import (
	"context"
	"sync"

	"github.com/roach88/clusteval/internal/object"
)

// Recorder is a listener that keeps every event it receives.
// A non-nil Err is returned from Notify after recording.
type Recorder struct {
	mu     sync.Mutex
	events []object.Event
	Err    error
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Notify(_ context.Context, e object.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the received events.
func (r *Recorder) Events() []object.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]object.Event(nil), r.events...)
}

// Count returns how many events were received.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Listen adds r to hub and subscribes it to subject.
func (r *Recorder) Listen(hub *object.Hub, subject object.Object) object.ListenerID {
	id := hub.Add(r)
	hub.Subscribe(subject, id)
	return id
}
