package entity

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/roach88/clusteval/internal/object"
)

// DynamicStore holds the plugin classes of one dynamic kind together with
// their instances. Instances are partitioned by the simple name of their
// class; an instance can only be registered while its class is registered
// here or in an ancestor.
//
// Instances are deduplicated by identity with the same change-date rule as
// StaticStore. Unregistering a class also removes the instances that
// descendant stores accepted through it.
type DynamicStore struct {
	*table
	parent    *DynamicStore
	ancestors []*DynamicStore

	// Guarded by table.mu.
	classes map[string]*object.Class
	buckets map[string][]object.Object

	childMu  sync.Mutex
	children []*DynamicStore
}

var _ Store = (*DynamicStore)(nil)

// NewDynamicStore creates a dynamic store for kind rooted at basePath.
func NewDynamicStore(kind *object.Kind, basePath string, deps Deps, hooks Hooks, parent *DynamicStore) *DynamicStore {
	var pt *table
	var chain []*DynamicStore
	if parent != nil {
		pt = parent.table
		chain = append([]*DynamicStore{parent}, parent.ancestors...)
	}
	s := &DynamicStore{
		table:     newTable(kind, basePath, deps, hooks, pt),
		parent:    parent,
		ancestors: chain,
		classes:   make(map[string]*object.Class),
		buckets:   make(map[string][]object.Object),
	}
	if parent != nil {
		parent.childMu.Lock()
		parent.children = append(parent.children, s)
		parent.childMu.Unlock()
	}
	return s
}

// Parent returns the store this store delegates to, or nil.
func (s *DynamicStore) Parent() *DynamicStore { return s.parent }

// Detach stops class removals in the parent from reaching s.
func (s *DynamicStore) Detach() {
	if s.parent == nil {
		return
	}
	s.parent.childMu.Lock()
	defer s.parent.childMu.Unlock()
	if i := slices.Index(s.parent.children, s); i >= 0 {
		s.parent.children = slices.Delete(s.parent.children, i, i+1)
	}
}

// RegisterClass registers a plugin class. An already registered class of
// the same name is unregistered first, cascading to its instances. The
// class is then checked by the dependency gate; on failure the insertion is
// rolled back and false is returned.
func (s *DynamicStore) RegisterClass(ctx context.Context, class *object.Class) bool {
	s.mu.Lock()

	var events []object.Event
	old, replaced := s.classes[class.Name]
	if replaced {
		events = s.unregisterClassLocked(ctx, old)
	}
	// Leftovers of another class sharing the simple name would be orphaned
	// by the bucket reset.
	for _, obj := range append([]object.Object(nil), s.buckets[class.SimpleName]...) {
		if cur, _ := s.unregisterLocked(ctx, obj); cur != nil {
			events = append(events, object.RemoveEvent{Removed: cur})
		}
	}

	s.classes[class.Name] = class
	s.buckets[class.SimpleName] = []object.Object{}

	if s.deps.Gate != nil {
		if err := s.deps.Gate.Ensure(ctx, class); err != nil {
			delete(s.classes, class.Name)
			s.dropBucketLocked(class.SimpleName)
			p := s.commitLocked(events...)
			s.mu.Unlock()
			s.deps.Logger.Warn("class not registered", "kind", s.kind.Name(), "class", class.Name, "error", err)
			_ = s.publish(ctx, p, "remove")
			if replaced {
				s.cascade(ctx, old)
			}
			return false
		}
	}

	s.deps.Classes.Add(class)
	if s.deps.Mirror != nil {
		if err := s.deps.Mirror.RegisterClass(ctx, s.deps.Repository, class); err != nil {
			s.deps.Logger.Warn("mirror register class failed", "class", class.Name, "error", err)
		}
	}
	p := s.commitLocked(events...)
	s.mu.Unlock()

	s.deps.Logger.Log(ctx, s.deps.Level, "class registered", "kind", s.kind.Name(), "class", class.Name)
	_ = s.publish(ctx, p, "remove")
	if replaced {
		s.cascade(ctx, old)
	}
	return true
}

// UnregisterClass removes a class and unregisters every instance of it,
// here and in descendant stores that have no class of that name of their
// own, publishing RemoveEvent to each instance's listeners.
func (s *DynamicStore) UnregisterClass(ctx context.Context, class *object.Class) bool {
	s.mu.Lock()
	cur, ok := s.classes[class.Name]
	if !ok {
		s.mu.Unlock()
		return false
	}
	p := s.commitLocked(s.unregisterClassLocked(ctx, cur)...)
	s.mu.Unlock()

	_ = s.publish(ctx, p, "remove")
	s.cascade(ctx, cur)
	return true
}

// cascade removes the instances that descendant stores accepted through
// class. Each descendant is locked after s is released, so the
// child-then-parent lock order holds.
func (s *DynamicStore) cascade(ctx context.Context, class *object.Class) {
	s.childMu.Lock()
	children := slices.Clone(s.children)
	s.childMu.Unlock()

	for _, c := range children {
		if c.purgeInherited(ctx, class) {
			c.cascade(ctx, class)
		}
	}
}

// purgeInherited removes the local instances of an ancestor's class. It
// returns false when a local class of that name shadows it.
func (s *DynamicStore) purgeInherited(ctx context.Context, class *object.Class) bool {
	s.mu.Lock()
	if _, ok := s.classes[class.Name]; ok {
		s.mu.Unlock()
		return false
	}
	visible := s.visibleLocked(class.SimpleName)

	var events []object.Event
	for _, obj := range slices.Clone(s.buckets[class.SimpleName]) {
		if !inheritedFrom(obj, class, visible) {
			continue
		}
		if cur, _ := s.unregisterLocked(ctx, obj); cur != nil {
			events = append(events, object.RemoveEvent{Removed: cur})
		}
	}
	if len(s.buckets[class.SimpleName]) == 0 {
		s.dropBucketLocked(class.SimpleName)
	}
	p := s.commitLocked(events...)
	s.mu.Unlock()

	if len(events) > 0 {
		s.deps.Logger.Log(ctx, s.deps.Level, "inherited class unregistered",
			"kind", s.kind.Name(), "class", class.Name, "instances", len(events))
	}
	_ = s.publish(ctx, p, "remove")
	return true
}

// inheritedFrom reports whether obj was admitted through class. Objects
// that do not carry their class match by type name once no class of that
// name is visible any more.
func inheritedFrom(obj object.Object, class *object.Class, visible bool) bool {
	if inst, ok := obj.(*object.Instance); ok {
		return inst.Class.Name == class.Name
	}
	return obj.TypeName() == class.SimpleName && !visible
}

func (s *DynamicStore) unregisterClassLocked(ctx context.Context, class *object.Class) []object.Event {
	delete(s.classes, class.Name)

	var events []object.Event
	for _, obj := range append([]object.Object(nil), s.buckets[class.SimpleName]...) {
		if cur, _ := s.unregisterLocked(ctx, obj); cur != nil {
			events = append(events, object.RemoveEvent{Removed: cur})
		}
	}
	s.dropBucketLocked(class.SimpleName)

	s.deps.Classes.Release(class.Name)
	if s.deps.Mirror != nil {
		if err := s.deps.Mirror.UnregisterClass(ctx, s.deps.Repository, class); err != nil {
			s.deps.Logger.Warn("mirror unregister class failed", "class", class.Name, "error", err)
		}
	}
	s.deps.Logger.Log(ctx, s.deps.Level, "class unregistered",
		"kind", s.kind.Name(), "class", class.Name, "instances", len(events))
	return events
}

// dropBucketLocked deletes a bucket unless another local class still uses
// the simple name.
func (s *DynamicStore) dropBucketLocked(simple string) {
	if !hasSimpleName(s.classes, simple) {
		delete(s.buckets, simple)
	}
}

func hasSimpleName(classes map[string]*object.Class, simple string) bool {
	for _, c := range classes {
		if c.SimpleName == simple {
			return true
		}
	}
	return false
}

// Register adds a plugin instance. It returns false if no class with the
// instance's type name is registered along the lookup chain, or if an
// equal-identity instance with a change date greater or equal is present.
func (s *DynamicStore) Register(ctx context.Context, obj object.Object) (bool, error) {
	if err := s.admit(obj); err != nil {
		return false, err
	}

	s.mu.Lock()
	if !s.visibleLocked(obj.TypeName()) {
		s.mu.Unlock()
		s.deps.Logger.Debug("instance of unregistered class ignored", "type", obj.TypeName(), "path", obj.Path())
		return false, nil
	}

	existing := s.lookupLocked(obj.Identity())
	if existing != nil && (existing == obj || !s.hooks.Replaceable(existing, obj)) {
		s.mu.Unlock()
		return false, nil
	}
	if existing != nil {
		s.removeFromBucketLocked(existing)
	}

	s.putLocked(obj)
	s.buckets[obj.TypeName()] = append(s.buckets[obj.TypeName()], obj)
	s.mirrorRegister(ctx, obj, existing != nil)
	if existing == nil {
		s.mu.Unlock()
		s.logf(ctx, "instance registered", obj)
		return true, nil
	}
	p := s.commitLocked(object.ReplaceEvent{Old: existing, New: obj})
	s.mu.Unlock()

	s.logf(ctx, "instance replaced", obj)
	if err := s.publish(ctx, p, "replace"); err != nil {
		return true, err
	}
	return true, nil
}

// Unregister removes an instance and publishes RemoveEvent to its
// listeners.
func (s *DynamicStore) Unregister(ctx context.Context, obj object.Object) bool {
	ok, _ := s.Remove(ctx, obj)
	return ok
}

// Remove is Unregister that also reports listener failures.
func (s *DynamicStore) Remove(ctx context.Context, obj object.Object) (bool, error) {
	s.mu.Lock()
	cur, consistent := s.unregisterLocked(ctx, obj)
	if cur == nil {
		s.mu.Unlock()
		return false, nil
	}
	p := s.commitLocked(object.RemoveEvent{Removed: cur})
	s.mu.Unlock()

	if err := s.publish(ctx, p, "remove"); err != nil {
		return consistent, err
	}
	return consistent, nil
}

func (s *DynamicStore) unregisterLocked(ctx context.Context, obj object.Object) (object.Object, bool) {
	cur, consistent := s.deleteLocked(obj)
	if cur == nil {
		return nil, false
	}
	bucketOK := s.removeFromBucketLocked(cur)
	s.mirrorUnregister(ctx, cur)
	s.logf(ctx, "instance unregistered", cur)
	return cur, consistent && bucketOK
}

func (s *DynamicStore) removeFromBucketLocked(obj object.Object) bool {
	bucket := s.buckets[obj.TypeName()]
	for i, b := range bucket {
		if object.Same(b, obj) {
			s.buckets[obj.TypeName()] = append(bucket[:i:i], bucket[i+1:]...)
			return true
		}
	}
	return false
}

// visibleLocked reports whether a class with the simple name is registered
// here or in an ancestor. The caller holds s.mu.
func (s *DynamicStore) visibleLocked(simple string) bool {
	if hasSimpleName(s.classes, simple) {
		return true
	}
	for _, a := range s.ancestors {
		a.mu.Lock()
		ok := hasSimpleName(a.classes, simple)
		a.mu.Unlock()
		if ok {
			return true
		}
	}
	return false
}

// Instances returns the local instances of the class with the given simple
// name.
func (s *DynamicStore) Instances(simple string) []object.Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]object.Object(nil), s.buckets[simple]...)
}

// Class returns the registered class with the given fully qualified name,
// searching ancestors when it is not registered locally.
func (s *DynamicStore) Class(name string) *object.Class {
	s.mu.Lock()
	c, ok := s.classes[name]
	s.mu.Unlock()
	if ok {
		return c
	}
	for _, a := range s.ancestors {
		a.mu.Lock()
		c, ok := a.classes[name]
		a.mu.Unlock()
		if ok {
			return c
		}
	}
	return nil
}

// ClassRegistered reports whether a class of that name is visible here.
func (s *DynamicStore) ClassRegistered(name string) bool {
	return s.Class(name) != nil
}

// Classes returns the classes visible from this store, local classes
// shadowing ancestor classes of the same name, ordered by name.
func (s *DynamicStore) Classes() []*object.Class {
	seen := make(map[string]bool)
	var out []*object.Class
	collect := func(d *DynamicStore) {
		d.mu.Lock()
		defer d.mu.Unlock()
		for name, c := range d.classes {
			if !seen[name] {
				seen[name] = true
				out = append(out, c)
			}
		}
	}
	collect(s)
	for _, a := range s.ancestors {
		collect(a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
