package entity

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/roach88/clusteval/internal/object"
)

// Store is the contract shared by static and dynamic stores.
type Store interface {
	Kind() *object.Kind
	BasePath() string

	// Register inserts obj or replaces an equal-identity object with an
	// older change date. It returns false for stale, duplicate or otherwise
	// routine rejections.
	Register(ctx context.Context, obj object.Object) (bool, error)
	// Unregister removes obj. It returns true only if every index held it.
	Unregister(ctx context.Context, obj object.Object) bool
	// Remove is Unregister followed by a RemoveEvent to the listeners of
	// the removed object.
	Remove(ctx context.Context, obj object.Object) (bool, error)
	// Move re-keys a registered object under a new path.
	Move(ctx context.Context, obj object.Object, newPath string) (bool, error)

	// Registered returns the stored object equal to obj, searching
	// ancestors. With ignoreChangeDate false, an equal-identity object with a
	// different change date yields obj itself.
	Registered(obj object.Object, ignoreChangeDate bool) object.Object
	FindByName(name string) object.Object
	// All returns local entries merged with ancestor entries; local entries
	// shadow ancestor entries of the same identity.
	All() []object.Object

	Initialized() bool
	SetInitialized()
}

// Mirror shadows accepted transitions into durable storage.
// Implementations are best-effort: errors are logged by the store and never
// change the in-memory outcome.
type Mirror interface {
	Register(ctx context.Context, obj object.Object, update bool) error
	Unregister(ctx context.Context, obj object.Object) error
	RegisterClass(ctx context.Context, repository string, class *object.Class) error
	UnregisterClass(ctx context.Context, repository string, class *object.Class) error
}

// Gate validates the runtime prerequisites of a plugin class before its
// registration is accepted.
type Gate interface {
	Ensure(ctx context.Context, class *object.Class) error
}

// Deps are the repository-level collaborators a store writes through.
type Deps struct {
	// Repository is the canonical root of the owning repository.
	Repository string
	Index      *PathIndex
	Mirror     Mirror
	Hub        *object.Hub
	Classes    *ClassSet
	Gate       Gate
	Logger     *slog.Logger
	// Level is the level of routine registration messages. Run-result
	// repositories demote them to debug.
	Level slog.Level
}

func (d Deps) withDefaults() Deps {
	if d.Index == nil {
		d.Index = NewPathIndex()
	}
	if d.Hub == nil {
		d.Hub = object.NewHub()
	}
	if d.Classes == nil {
		d.Classes = NewClassSet()
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	return d
}

// Hooks specialise a store's behavior without a new store type.
// Inserted and Removed run with the store lock held and must not call back
// into the store.
type Hooks struct {
	// Admit vetoes a registration before any lookup. A non-nil error is
	// returned to the caller wrapped in *RegisterError.
	Admit func(obj object.Object) error
	// Replaceable decides whether candidate supersedes existing. The default
	// is existing.ChangeDate() < candidate.ChangeDate().
	Replaceable func(existing, candidate object.Object) bool
	Inserted    func(obj object.Object)
	Removed     func(obj object.Object)
}

// NewerWins is the default replacement rule. Equal change dates never
// replace.
func NewerWins(existing, candidate object.Object) bool {
	return existing.ChangeDate() < candidate.ChangeDate()
}

// NeverReplace keeps the first registration of an identity.
func NeverReplace(existing, candidate object.Object) bool {
	return false
}

// table holds the identity and name maps common to both flavors.
type table struct {
	kind     *object.Kind
	basePath string
	deps     Deps
	hooks    Hooks

	// ancestors is the lookup chain above this table, nearest first.
	// It is fixed at construction.
	ancestors []*table

	mu      sync.Mutex
	objects map[object.Identity]object.Object
	names   map[string]object.Object

	events *delivery

	initialized atomic.Bool
}

func newTable(kind *object.Kind, basePath string, deps Deps, hooks Hooks, parent *table) *table {
	t := &table{
		kind:     kind,
		basePath: object.CanonicalPath(basePath),
		deps:     deps.withDefaults(),
		hooks:    hooks,
		objects:  make(map[object.Identity]object.Object),
		names:    make(map[string]object.Object),
		events:   newDelivery(),
	}
	if t.hooks.Replaceable == nil {
		t.hooks.Replaceable = NewerWins
	}
	if parent != nil {
		t.ancestors = append([]*table{parent}, parent.ancestors...)
	}
	return t
}

func (t *table) Kind() *object.Kind { return t.kind }
func (t *table) BasePath() string   { return t.basePath }
func (t *table) Initialized() bool  { return t.initialized.Load() }
func (t *table) SetInitialized()    { t.initialized.Store(true) }

// lookupLocked searches the local map, then each ancestor under that
// ancestor's own lock. The caller holds t.mu.
func (t *table) lookupLocked(id object.Identity) object.Object {
	if obj, ok := t.objects[id]; ok {
		return obj
	}
	for _, a := range t.ancestors {
		a.mu.Lock()
		obj, ok := a.objects[id]
		a.mu.Unlock()
		if ok {
			return obj
		}
	}
	return nil
}

func (t *table) lookup(id object.Identity) object.Object {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lookupLocked(id)
}

func (t *table) Registered(obj object.Object, ignoreChangeDate bool) object.Object {
	existing := t.lookup(obj.Identity())
	if existing == nil {
		return nil
	}
	if ignoreChangeDate || existing.ChangeDate() == obj.ChangeDate() {
		return existing
	}
	return obj
}

func (t *table) FindByName(name string) object.Object {
	t.mu.Lock()
	obj, ok := t.names[name]
	t.mu.Unlock()
	if ok {
		return obj
	}
	for _, a := range t.ancestors {
		a.mu.Lock()
		obj, ok := a.names[name]
		a.mu.Unlock()
		if ok {
			return obj
		}
	}
	return nil
}

func (t *table) All() []object.Object {
	seen := make(map[object.Identity]bool)
	var out []object.Object
	collect := func(tb *table) {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		for id, obj := range tb.objects {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, obj)
		}
	}
	collect(t)
	for _, a := range t.ancestors {
		collect(a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path() < out[j].Path() })
	return out
}

// putLocked writes obj into all three indexes.
func (t *table) putLocked(obj object.Object) {
	t.objects[obj.Identity()] = obj
	t.names[obj.Name()] = obj
	t.deps.Index.Put(obj)
	if t.hooks.Inserted != nil {
		t.hooks.Inserted(obj)
	}
}

// deleteLocked removes obj from all three indexes. It returns the stored
// object (nil if the identity map did not hold obj) and whether the name map
// and path index held it too.
func (t *table) deleteLocked(obj object.Object) (object.Object, bool) {
	id := obj.Identity()
	cur, ok := t.objects[id]
	if !ok {
		return nil, false
	}
	delete(t.objects, id)

	nameOK := t.dropNameLocked(cur)
	indexOK := t.deps.Index.Remove(cur)
	if !nameOK || !indexOK {
		t.deps.Logger.Error("store indexes out of sync",
			"kind", t.kind.Name(), "path", id.Path, "name_found", nameOK, "index_found", indexOK)
	}
	if t.hooks.Removed != nil {
		t.hooks.Removed(cur)
	}
	return cur, nameOK && indexOK
}

func (t *table) dropNameLocked(obj object.Object) bool {
	name := obj.Name()
	cur, ok := t.names[name]
	if !ok {
		return false
	}
	if !object.Same(cur, obj) {
		return true
	}
	delete(t.names, name)
	// Another local object may share the display name.
	for _, other := range t.objects {
		if other.Name() == name {
			t.names[name] = other
			break
		}
	}
	return true
}

// admit runs the Admit hook.
func (t *table) admit(obj object.Object) error {
	if t.hooks.Admit == nil {
		return nil
	}
	if err := t.hooks.Admit(obj); err != nil {
		return &RegisterError{Op: "admit", Path: obj.Path(), Err: err}
	}
	return nil
}

// pending holds the events of one committed transition in delivery order.
type pending struct {
	ticket uint64
	events []object.Event
}

// commitLocked queues events behind every earlier commit of the store.
// The caller holds t.mu.
func (t *table) commitLocked(events ...object.Event) pending {
	if len(events) == 0 {
		return pending{}
	}
	return pending{ticket: t.events.take(), events: events}
}

// publish delivers p once the earlier commits of the store are delivered.
// It must be called without t.mu held. Every event is delivered; the first
// listener failure is returned as *RegisterError.
func (t *table) publish(ctx context.Context, p pending, op string) error {
	if len(p.events) == 0 {
		return nil
	}
	return t.events.run(ctx, p.ticket, func(ctx context.Context) error {
		var first error
		for _, ev := range p.events {
			if err := t.deliver(ctx, ev, op); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}

func (t *table) deliver(ctx context.Context, ev object.Event, op string) error {
	if err := t.deps.Hub.Publish(ctx, ev); err != nil {
		t.deps.Logger.Error("listener notification failed",
			"event", ev.Type(), "path", ev.Subject().Path(), "error", err)
		return &RegisterError{Op: op, Path: ev.Subject().Path(), Err: err}
	}
	return nil
}

func (t *table) mirrorRegister(ctx context.Context, obj object.Object, update bool) {
	if t.deps.Mirror == nil {
		return
	}
	if err := t.deps.Mirror.Register(ctx, obj, update); err != nil {
		t.deps.Logger.Warn("mirror register failed", "path", obj.Path(), "update", update, "error", err)
	}
}

func (t *table) mirrorUnregister(ctx context.Context, obj object.Object) {
	if t.deps.Mirror == nil {
		return
	}
	if err := t.deps.Mirror.Unregister(ctx, obj); err != nil {
		t.deps.Logger.Warn("mirror unregister failed", "path", obj.Path(), "error", err)
	}
}

func (t *table) logf(ctx context.Context, msg string, obj object.Object) {
	t.deps.Logger.Log(ctx, t.deps.Level, msg, "kind", obj.Kind().Name(), "type", obj.TypeName(), "path", obj.Path())
}
