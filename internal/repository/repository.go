package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/roach88/clusteval/internal/compute"
	"github.com/roach88/clusteval/internal/entity"
	"github.com/roach88/clusteval/internal/mirror"
	"github.com/roach88/clusteval/internal/object"
)

// Repository owns one entity store per managed kind.
type Repository struct {
	env    *Env
	root   string
	parent *Repository
	layout Layout
	logger *slog.Logger
	level  slog.Level
	mirror entity.Mirror
	facts  *compute.Facts
	index  *entity.PathIndex

	static  map[*object.Kind]*entity.StaticStore
	dynamic map[*object.Kind]*entity.DynamicStore
	// owned lists the kinds whose store this repository created.
	owned map[*object.Kind]bool

	runResults *runResultIndex

	// dispatch caches the store resolved for a kind: *object.Kind -> entity.Store.
	dispatch sync.Map
	closed   atomic.Bool
}

// New creates a repository rooted at root. It is not registered in the
// directory; see Open.
func New(env *Env, root string, opts ...Option) (*Repository, error) {
	o := options{layout: DefaultLayout()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.mirror == nil && o.parent != nil {
		o.mirror = o.parent.mirror
	}
	return build(env, root, o, false)
}

// Open creates a repository, registers it in env's directory and creates
// the base directories of its layout.
func Open(env *Env, root string, opts ...Option) (*Repository, error) {
	r, err := New(env, root, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.env.Directory.Register(r); err != nil {
		return nil, err
	}
	if err := r.layout.Ensure(r.root); err != nil {
		r.env.Directory.Unregister(r)
		return nil, fmt.Errorf("open repository %s: %w", r.root, err)
	}
	r.logger.Info("repository opened", "root", r.root, "parent", r.ParentRoot())
	return r, nil
}

func build(env *Env, root string, o options, runResult bool) (*Repository, error) {
	env = env.withDefaults()
	root = object.CanonicalPath(root)
	if root == "" {
		return nil, errors.New("repository root must not be empty")
	}

	r := &Repository{
		env:     env,
		root:    root,
		parent:  o.parent,
		layout:  o.layout,
		logger:  o.logger,
		level:   routineLevel(runResult),
		mirror:  o.mirror,
		index:   entity.NewPathIndex(),
		static:  make(map[*object.Kind]*entity.StaticStore),
		dynamic: make(map[*object.Kind]*entity.DynamicStore),
		owned:   make(map[*object.Kind]bool),
	}
	if r.logger == nil {
		r.logger = env.Logger
	}
	if r.mirror == nil {
		r.mirror = mirror.Stub{}
	}

	gate := o.gate
	switch {
	case runResult:
		r.facts = o.parent.facts
	default:
		r.facts = compute.NewFacts()
	}
	if gate == nil && o.pool != nil {
		gate = compute.NewGate(o.pool, r.facts, o.gateTimeout, r.logger)
	}

	deps := entity.Deps{
		Repository: root,
		Index:      r.index,
		Mirror:     r.mirror,
		Hub:        env.Hub,
		Classes:    env.Classes,
		Gate:       gate,
		Logger:     r.logger,
		Level:      r.level,
	}

	for _, kind := range StaticKinds {
		var parentStore *entity.StaticStore
		if o.parent != nil {
			parentStore = o.parent.static[kind]
		}
		if _, ok := r.layout[kind]; !ok {
			if runResult && parentStore != nil {
				r.static[kind] = parentStore
			}
			continue
		}

		var hooks entity.Hooks
		switch {
		case runResult && (kind == object.DataSet || kind == object.GoldStandard):
			hooks.Admit = requireInParent(o.parent, kind)
		case kind == object.RunResult:
			r.runResults = newRunResultIndex(r.layout.Path(root, kind))
			hooks = r.runResults.hooks()
		}
		r.static[kind] = entity.NewStaticStore(kind, r.layout.Path(root, kind), deps, hooks, parentStore)
		r.owned[kind] = true
	}

	for _, kind := range DynamicKinds {
		var parentStore *entity.DynamicStore
		if o.parent != nil {
			parentStore = o.parent.dynamic[kind]
		}
		if _, ok := r.layout[kind]; !ok {
			if runResult && parentStore != nil {
				r.dynamic[kind] = parentStore
			}
			continue
		}
		r.dynamic[kind] = entity.NewDynamicStore(kind, r.layout.Path(root, kind), deps, entity.Hooks{}, parentStore)
		r.owned[kind] = true
	}

	return r, nil
}

// Root returns the canonical root path.
func (r *Repository) Root() string { return r.root }

// Parent returns the parent repository, or nil.
func (r *Repository) Parent() *Repository { return r.parent }

// ParentRoot returns the parent's root, or "" without a parent.
func (r *Repository) ParentRoot() string {
	if r.parent == nil {
		return ""
	}
	return r.parent.root
}

// Env returns the process services the repository was built with.
func (r *Repository) Env() *Env { return r.env }

// Logger returns the repository logger.
func (r *Repository) Logger() *slog.Logger { return r.logger }

// Mirror returns the persistence mirror.
func (r *Repository) Mirror() entity.Mirror { return r.mirror }

// Kinds returns every kind with a store, static kinds first.
func (r *Repository) Kinds() []*object.Kind {
	var out []*object.Kind
	for _, k := range StaticKinds {
		if _, ok := r.static[k]; ok {
			out = append(out, k)
		}
	}
	for _, k := range DynamicKinds {
		if _, ok := r.dynamic[k]; ok {
			out = append(out, k)
		}
	}
	return out
}

// Owns reports whether this repository created the store responsible for
// kind, as opposed to sharing its parent's.
func (r *Repository) Owns(kind *object.Kind) bool {
	s := r.store(kind)
	return s != nil && r.owned[s.Kind()]
}

// store resolves the store for kind by walking its lineage.
func (r *Repository) store(kind *object.Kind) entity.Store {
	if kind == nil {
		return nil
	}
	if s, ok := r.dispatch.Load(kind); ok {
		return s.(entity.Store)
	}
	for _, k := range kind.Lineage() {
		if s, ok := r.static[k]; ok {
			r.dispatch.Store(kind, entity.Store(s))
			return s
		}
		if s, ok := r.dynamic[k]; ok {
			r.dispatch.Store(kind, entity.Store(s))
			return s
		}
	}
	return nil
}

func (r *Repository) dynamicStore(kind *object.Kind) *entity.DynamicStore {
	if d, ok := r.store(kind).(*entity.DynamicStore); ok {
		return d
	}
	return nil
}

func (r *Repository) storeFor(obj object.Object) (entity.Store, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	s := r.store(obj.Kind())
	if s == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnmanagedKind, obj.Kind().Name())
	}
	return s, nil
}

// Register registers obj with the store responsible for its kind.
// Routine rejections return false with a nil error.
func (r *Repository) Register(ctx context.Context, obj object.Object) (bool, error) {
	s, err := r.storeFor(obj)
	if err != nil {
		return false, err
	}
	return s.Register(ctx, obj)
}

// Unregister removes obj from the store responsible for its kind.
func (r *Repository) Unregister(ctx context.Context, obj object.Object) bool {
	s, err := r.storeFor(obj)
	if err != nil {
		return false
	}
	return s.Unregister(ctx, obj)
}

// Remove unregisters obj and notifies its listeners with a RemoveEvent.
func (r *Repository) Remove(ctx context.Context, obj object.Object) (bool, error) {
	s, err := r.storeFor(obj)
	if err != nil {
		return false, err
	}
	return s.Remove(ctx, obj)
}

// Move re-keys obj under newPath and notifies its listeners with a
// MoveEvent. Only the in-memory state changes; the file is not touched.
func (r *Repository) Move(ctx context.Context, obj object.Object, newPath string) (bool, error) {
	s, err := r.storeFor(obj)
	if err != nil {
		return false, err
	}
	return s.Move(ctx, obj, newPath)
}

// Registered returns the stored object equal to obj. See entity.Store.
func (r *Repository) Registered(obj object.Object, ignoreChangeDate bool) object.Object {
	s := r.store(obj.Kind())
	if s == nil {
		return nil
	}
	return s.Registered(obj, ignoreChangeDate)
}

// ObjectAt returns the object registered at path, searching the parent on
// a miss.
func (r *Repository) ObjectAt(path string) object.Object {
	for cur := r; cur != nil; cur = cur.parent {
		if obj, ok := cur.index.Get(path); ok {
			return obj
		}
	}
	return nil
}

// Find returns the object of kind with the given display name.
func (r *Repository) Find(kind *object.Kind, name string) object.Object {
	s := r.store(kind)
	if s == nil {
		return nil
	}
	obj := s.FindByName(name)
	if obj == nil || !obj.Kind().Is(kind) {
		return nil
	}
	return obj
}

// All returns the objects of kind, including inherited ones. Objects of
// sibling subkinds sharing the store are filtered out.
func (r *Repository) All(kind *object.Kind) []object.Object {
	s := r.store(kind)
	if s == nil {
		return nil
	}
	all := s.All()
	if s.Kind() == kind {
		return all
	}
	out := all[:0:0]
	for _, obj := range all {
		if obj.Kind().Is(kind) {
			out = append(out, obj)
		}
	}
	return out
}

// BasePath returns the directory of the store responsible for kind, or ""
// when kind is not managed.
func (r *Repository) BasePath(kind *object.Kind) string {
	s := r.store(kind)
	if s == nil {
		return ""
	}
	return s.BasePath()
}

// RegisterClass registers class with the dynamic store of base.
// A class refused by the dependency gate returns false.
func (r *Repository) RegisterClass(ctx context.Context, base *object.Kind, class *object.Class) (bool, error) {
	if r.closed.Load() {
		return false, ErrClosed
	}
	d := r.dynamicStore(base)
	if d == nil {
		return false, fmt.Errorf("%w: %s", ErrUnmanagedKind, base.Name())
	}
	return d.RegisterClass(ctx, class), nil
}

// UnregisterClass removes class and every instance of it.
func (r *Repository) UnregisterClass(ctx context.Context, base *object.Kind, class *object.Class) bool {
	d := r.dynamicStore(base)
	if d == nil {
		return false
	}
	return d.UnregisterClass(ctx, class)
}

// ClassRegistered reports whether a class of that name is visible in the
// dynamic store of base.
func (r *Repository) ClassRegistered(base *object.Kind, name string) bool {
	d := r.dynamicStore(base)
	return d != nil && d.ClassRegistered(name)
}

// ClassAvailable reports whether any repository of the process has loaded a
// class of that name.
func (r *Repository) ClassAvailable(name string) bool {
	return r.env.Classes.Available(name)
}

// Class returns the class of that name visible in the dynamic store of base.
func (r *Repository) Class(base *object.Kind, name string) *object.Class {
	d := r.dynamicStore(base)
	if d == nil {
		return nil
	}
	return d.Class(name)
}

// Classes returns the classes visible in the dynamic store of base. A nil
// base returns the classes of every dynamic kind.
func (r *Repository) Classes(base *object.Kind) []*object.Class {
	if base != nil {
		d := r.dynamicStore(base)
		if d == nil {
			return nil
		}
		return d.Classes()
	}

	var out []*object.Class
	for _, k := range DynamicKinds {
		if d, ok := r.dynamic[k]; ok {
			out = append(out, d.Classes()...)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Instances returns the registered instances of the class with the given
// simple name in the dynamic store of base.
func (r *Repository) Instances(base *object.Kind, simpleName string) []object.Object {
	d := r.dynamicStore(base)
	if d == nil {
		return nil
	}
	return d.Instances(simpleName)
}

// Close unregisters the repository from the directory and detaches its
// dynamic stores from the parent's. Further registrations fail with
// ErrClosed. The mirror is owned by the caller.
func (r *Repository) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.env.Directory.Unregister(r)
	for kind, d := range r.dynamic {
		if r.owned[kind] {
			d.Detach()
		}
	}
	r.logger.Log(context.Background(), r.level, "repository closed", "root", r.root)
	return nil
}
