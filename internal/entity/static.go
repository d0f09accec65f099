package entity

import (
	"context"

	"github.com/roach88/clusteval/internal/object"
)

// StaticStore holds instances of one compile-time kind.
type StaticStore struct {
	*table
	parent *StaticStore
}

var _ Store = (*StaticStore)(nil)

// NewStaticStore creates a store for kind rooted at basePath. When parent is
// non-nil, lookups that miss locally fall back to parent and its ancestors.
func NewStaticStore(kind *object.Kind, basePath string, deps Deps, hooks Hooks, parent *StaticStore) *StaticStore {
	var pt *table
	if parent != nil {
		pt = parent.table
	}
	return &StaticStore{table: newTable(kind, basePath, deps, hooks, pt), parent: parent}
}

// Parent returns the store this store delegates to, or nil.
func (s *StaticStore) Parent() *StaticStore { return s.parent }

// Register inserts obj, or replaces an equal-identity object found through
// the lookup chain if obj is newer. An existing object with a change date
// greater or equal to obj's is kept and false is returned.
//
// When a replace is committed and a listener of the replaced object fails,
// the replace stands and (true, *RegisterError) is returned.
func (s *StaticStore) Register(ctx context.Context, obj object.Object) (bool, error) {
	if err := s.admit(obj); err != nil {
		return false, err
	}

	s.mu.Lock()
	existing := s.lookupLocked(obj.Identity())
	if existing == nil {
		s.putLocked(obj)
		s.mirrorRegister(ctx, obj, false)
		s.mu.Unlock()
		s.logf(ctx, "object registered", obj)
		return true, nil
	}

	if existing == obj || !s.hooks.Replaceable(existing, obj) {
		s.mu.Unlock()
		return false, nil
	}

	s.putLocked(obj)
	s.mirrorRegister(ctx, obj, true)
	p := s.commitLocked(object.ReplaceEvent{Old: existing, New: obj})
	s.mu.Unlock()
	s.logf(ctx, "object replaced", obj)

	if err := s.publish(ctx, p, "replace"); err != nil {
		return true, err
	}
	return true, nil
}

// Unregister removes obj from this store. Objects that live only in an
// ancestor are not touched. The result is false when obj was not
// registered here or when the name map or path index had lost track of it.
func (s *StaticStore) Unregister(ctx context.Context, obj object.Object) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, consistent := s.deleteLocked(obj)
	if cur == nil {
		return false
	}
	s.mirrorUnregister(ctx, cur)
	s.logf(ctx, "object unregistered", cur)
	return consistent
}

// Remove unregisters obj and publishes RemoveEvent to the listeners of the
// stored object. A listener failure is returned as *RegisterError; the
// removal itself stands.
func (s *StaticStore) Remove(ctx context.Context, obj object.Object) (bool, error) {
	s.mu.Lock()
	cur, consistent := s.deleteLocked(obj)
	if cur == nil {
		s.mu.Unlock()
		return false, nil
	}
	s.mirrorUnregister(ctx, cur)
	s.logf(ctx, "object removed", cur)
	p := s.commitLocked(object.RemoveEvent{Removed: cur})
	s.mu.Unlock()

	if err := s.publish(ctx, p, "remove"); err != nil {
		return consistent, err
	}
	return consistent, nil
}
