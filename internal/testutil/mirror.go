package testutil

import (
	"context"
	"sync"

	"github.com/roach88/clusteval/internal/object"
)

// MirrorCall is one call observed by Mirror.
type MirrorCall struct {
	Op     string // "register", "unregister", "register_class", "unregister_class"
	Path   string // object path, or class name for class calls
	Update bool
}

// Mirror records every call in order. A non-nil Err is returned from every
// call after it has been recorded, to simulate an unreachable backend.
type Mirror struct {
	mu    sync.Mutex
	calls []MirrorCall
	Err   error
}

// NewMirror creates an empty recording mirror.
func NewMirror() *Mirror {
	return &Mirror{}
}

func (m *Mirror) record(c MirrorCall) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, c)
	return m.Err
}

func (m *Mirror) Register(_ context.Context, obj object.Object, update bool) error {
	return m.record(MirrorCall{Op: "register", Path: obj.Path(), Update: update})
}

func (m *Mirror) Unregister(_ context.Context, obj object.Object) error {
	return m.record(MirrorCall{Op: "unregister", Path: obj.Path()})
}

func (m *Mirror) RegisterClass(_ context.Context, _ string, class *object.Class) error {
	return m.record(MirrorCall{Op: "register_class", Path: class.Name})
}

func (m *Mirror) UnregisterClass(_ context.Context, _ string, class *object.Class) error {
	return m.record(MirrorCall{Op: "unregister_class", Path: class.Name})
}

// Calls returns a copy of the recorded calls.
func (m *Mirror) Calls() []MirrorCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MirrorCall(nil), m.calls...)
}

// Ops returns only the operation names of the recorded calls.
func (m *Mirror) Ops() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Op
	}
	return out
}
