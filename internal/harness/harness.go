package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/roach88/clusteval/internal/compute"
	"github.com/roach88/clusteval/internal/entity"
	"github.com/roach88/clusteval/internal/object"
	"github.com/roach88/clusteval/internal/repository"
	"github.com/roach88/clusteval/internal/testutil"
)

// Root is the scenario root. Repositories are created in memory below it;
// nothing is read from or written to disk.
const Root = "/scenario"

// gateTimeout bounds each class check of the in-memory compute service.
const gateTimeout = time.Second

// defaultListenerError is returned by fail_listener listeners without a
// message.
const defaultListenerError = "listener failed"

// Run executes a scenario and returns the result.
//
// Every flow step produces an invocation line, then the mirror calls and
// listener events it caused, then a completion line. The returned error is
// reserved for scenarios that cannot be set up; failed expectations and
// assertions are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	r, err := newRunner(scenario)
	if err != nil {
		return nil, err
	}
	defer r.close()

	for i, step := range scenario.Flow {
		r.execute(i, step)
	}

	for _, err := range r.evaluateAssertions(scenario.Assertions) {
		r.result.AddError(err.Error())
	}

	return r.result, nil
}

// runner holds the world of one scenario execution.
type runner struct {
	ctx     context.Context
	env     *repository.Env
	repos   map[string]*repository.Repository
	names   map[string]string // canonical root -> repository name
	service *compute.Static
	pool    *compute.Pool

	seq   *testutil.DeterministicClock
	dates *testutil.DeterministicClock

	// listener receives every event about objects the flow registered.
	listener object.ListenerID

	// made remembers the last object constructed for a path so that steps
	// against unregistered paths still operate on a concrete object.
	made    map[string]object.Object
	classes map[string]*object.Class

	mu     sync.Mutex
	result *Result
}

func newRunner(s *Scenario) (*runner, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := &runner{
		ctx:     context.Background(),
		env:     repository.NewEnv(),
		repos:   make(map[string]*repository.Repository),
		names:   make(map[string]string),
		seq:     testutil.NewDeterministicClock(),
		dates:   testutil.NewDeterministicClock(),
		made:    make(map[string]object.Object),
		classes: make(map[string]*object.Class),
		result:  NewResult(),
	}
	r.env.Logger = logger
	r.listener = r.env.Hub.Add(object.ListenerFunc(r.notify))

	if s.Compute != nil {
		r.service = compute.NewStatic(s.Compute.Libraries...)
		r.pool = compute.NewPool(r.service, 0, logger)
	}

	mirror := &traceMirror{r: r}
	for _, spec := range s.repositories() {
		repo, err := r.open(spec, mirror, logger)
		if err != nil {
			r.close()
			return nil, fmt.Errorf("repository %s: %w", spec.Name, err)
		}
		r.repos[spec.Name] = repo
		r.names[repo.Root()] = spec.Name
	}
	return r, nil
}

func (r *runner) open(spec RepositorySpec, mirror entity.Mirror, logger *slog.Logger) (*repository.Repository, error) {
	parent := r.repos[spec.Parent]

	root := Root
	switch {
	case spec.Root != "":
		root = filepath.Join(Root, filepath.FromSlash(spec.Root))
	case spec.RunResult:
		root = filepath.Join(parent.Root(), "results", spec.Name)
	case parent != nil:
		root = filepath.Join(Root, spec.Name)
	}

	if spec.RunResult {
		return repository.NewRunResult(r.env, parent, root, repository.WithLogger(logger))
	}

	opts := []repository.Option{
		repository.WithMirror(mirror),
		repository.WithLogger(logger),
	}
	if parent != nil {
		opts = append(opts, repository.WithParent(parent))
	}
	if r.pool != nil {
		opts = append(opts, repository.WithCompute(r.pool, gateTimeout))
	}
	repo, err := repository.New(r.env, root, opts...)
	if err != nil {
		return nil, err
	}
	if err := r.env.Directory.Register(repo); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *runner) close() {
	for _, repo := range r.repos {
		_ = repo.Close()
	}
	if r.pool != nil {
		r.pool.Close()
	}
}

// execute runs one flow step between its invocation and completion lines
// and checks its expect clause.
func (r *runner) execute(i int, step FlowStep) {
	repo := r.repo(step.Repo)
	kind, _ := object.LookupKind(step.Kind)

	var changeDate object.ChangeDate
	if step.Op == OpRegister || step.Op == OpRegisterClass {
		changeDate = r.changeDate(step)
	}

	inv := TraceEvent{
		Type:       TraceInvocation,
		Op:         step.Op,
		Repo:       r.repoName(repo),
		Kind:       step.Kind,
		Class:      step.Class,
		Library:    step.Library,
		ChangeDate: int64(changeDate),
	}
	if step.Path != "" {
		inv.Path = rel(r.abs(repo, step.Path))
	}
	if step.To != "" {
		inv.To = rel(r.abs(repo, step.To))
	}
	r.record(inv)

	result, err := r.apply(repo, kind, step, changeDate)
	code := errorCode(err)
	r.record(TraceEvent{Type: TraceCompletion, Op: step.Op, Result: result, Error: code})

	r.check(i, step, result, code)
}

func (r *runner) apply(repo *repository.Repository, kind *object.Kind, step FlowStep, changeDate object.ChangeDate) (*bool, error) {
	ctx := r.ctx

	switch step.Op {
	case OpRegister:
		obj := r.construct(repo, kind, step, changeDate)
		ok, err := repo.Register(ctx, obj)
		if ok {
			r.env.Hub.Subscribe(obj, r.listener)
		}
		return &ok, err

	case OpUnregister:
		ok := repo.Unregister(ctx, r.target(repo, kind, step.Path))
		return &ok, nil

	case OpRemove:
		ok, err := repo.Remove(ctx, r.target(repo, kind, step.Path))
		return &ok, err

	case OpMove:
		ok, err := repo.Move(ctx, r.target(repo, kind, step.Path), r.abs(repo, step.To))
		return &ok, err

	case OpLink:
		dependent := r.target(repo, kind, step.Path)
		dependency := r.target(repo, kind, step.To)
		ok := repo.Link(dependent, dependency) != ""
		return &ok, nil

	case OpFailListener:
		msg := step.Message
		if msg == "" {
			msg = defaultListenerError
		}
		id := r.env.Hub.Add(object.ListenerFunc(func(context.Context, object.Event) error {
			return errors.New(msg)
		}))
		ok := r.env.Hub.Subscribe(r.target(repo, kind, step.Path), id)
		return &ok, nil

	case OpRegisterClass:
		class := object.NewClass(step.Class, kind, step.Requires...)
		class.ChangeDate = changeDate
		r.classes[class.Name] = class
		ok, err := repo.RegisterClass(ctx, kind, class)
		return &ok, err

	case OpUnregisterClass:
		ok := repo.UnregisterClass(ctx, kind, r.class(repo, kind, step.Class))
		return &ok, nil

	case OpInstall:
		r.service.Install(step.Library)
		return nil, nil

	case OpUninstall:
		r.service.Uninstall(step.Library)
		return nil, nil
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

func (r *runner) check(i int, step FlowStep, result *bool, code string) {
	exp := step.Expect
	if code != "" && (exp == nil || exp.Error == "") {
		r.result.AddError(fmt.Sprintf("flow[%d] %s %s: unexpected error %s", i, step.Op, step.Path, code))
	}
	if exp == nil {
		return
	}
	if exp.Result != nil && (result == nil || *result != *exp.Result) {
		got := "none"
		if result != nil {
			got = fmt.Sprint(*result)
		}
		r.result.AddError(fmt.Sprintf("flow[%d] %s %s: expected result %v, got %s",
			i, step.Op, step.Path, *exp.Result, got))
	}
	if exp.Error != "" {
		want := exp.Error
		if want == "none" {
			want = ""
		}
		if code != want {
			r.result.AddError(fmt.Sprintf("flow[%d] %s %s: expected error %q, got %q",
				i, step.Op, step.Path, exp.Error, code))
		}
	}
}

// construct creates the object a register step asks for. Instances of a
// class the repository does not know get a detached class, which the
// dynamic store refuses.
func (r *runner) construct(repo *repository.Repository, kind *object.Kind, step FlowStep, changeDate object.ChangeDate) object.Object {
	abs := r.abs(repo, step.Path)
	var obj object.Object
	if kind.Flavor() == object.Dynamic {
		obj = object.NewInstance(repo.Root(), abs, r.class(repo, kind, step.Class), changeDate)
	} else {
		obj = object.NewFile(repo.Root(), abs, kind, changeDate, 0)
	}
	r.made[abs] = obj
	return obj
}

// target returns the object currently registered at path, falling back to
// the last object constructed for it.
func (r *runner) target(repo *repository.Repository, kind *object.Kind, rel string) object.Object {
	abs := r.abs(repo, rel)
	if obj := repo.ObjectAt(abs); obj != nil {
		return obj
	}
	if obj, ok := r.made[abs]; ok {
		return obj
	}
	return object.NewFile(repo.Root(), abs, kind, 0, 0)
}

func (r *runner) class(repo *repository.Repository, kind *object.Kind, name string) *object.Class {
	if c := repo.Class(kind, name); c != nil {
		return c
	}
	if c, ok := r.classes[name]; ok {
		return c
	}
	return object.NewClass(name, kind)
}

func (r *runner) changeDate(step FlowStep) object.ChangeDate {
	if step.ChangeDate != 0 {
		return object.ChangeDate(step.ChangeDate)
	}
	return r.dates.Next()
}

func (r *runner) repo(name string) *repository.Repository {
	if name == "" {
		name = MainRepository
	}
	return r.repos[name]
}

func (r *runner) repoName(repo *repository.Repository) string {
	return r.nameOf(repo.Root())
}

func (r *runner) nameOf(root string) string {
	if name, ok := r.names[object.CanonicalPath(root)]; ok {
		return name
	}
	return root
}

func (r *runner) abs(repo *repository.Repository, rel string) string {
	return object.CanonicalPath(filepath.Join(repo.Root(), filepath.FromSlash(rel)))
}

// rel renders p relative to the scenario root.
func rel(p string) string {
	out, err := filepath.Rel(Root, p)
	if err != nil {
		return p
	}
	return path.Clean(filepath.ToSlash(out))
}

// record appends a line with the next sequence number.
func (r *runner) record(e TraceEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.Seq = int64(r.seq.Next())
	r.result.Trace = append(r.result.Trace, e)
}

// notify records the events of registered objects and follows
// replacements.
func (r *runner) notify(_ context.Context, ev object.Event) error {
	subject := ev.Subject()
	line := TraceEvent{
		Type: TraceNotify,
		Op:   ev.Type(),
		Repo: r.nameOf(subject.Repository()),
		Kind: subject.Kind().Name(),
	}
	switch e := ev.(type) {
	case object.ReplaceEvent:
		line.Path = rel(e.Old.Path())
		line.ChangeDate = int64(e.New.ChangeDate())
		r.env.Hub.Subscribe(e.New, r.listener)
	case object.RemoveEvent:
		line.Path = rel(e.Removed.Path())
	case object.MoveEvent:
		line.Path = rel(e.OldPath)
		line.To = rel(e.NewPath)
	}
	r.record(line)
	return nil
}

// errorCode reduces err to a stable category for traces and expectations.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var re *entity.RegisterError
	switch {
	case errors.As(err, &re):
		return "register_error:" + re.Op
	case errors.Is(err, repository.ErrUnmanagedKind):
		return "unmanaged_kind"
	case errors.Is(err, repository.ErrClosed):
		return "closed"
	default:
		return "error"
	}
}

// traceMirror records mirror calls as trace lines.
type traceMirror struct {
	r *runner
}

func (m *traceMirror) Register(_ context.Context, obj object.Object, update bool) error {
	m.r.record(TraceEvent{
		Type:       TraceMirror,
		Op:         "register",
		Repo:       m.r.nameOf(obj.Repository()),
		Kind:       obj.Kind().Name(),
		Path:       rel(obj.Path()),
		ChangeDate: int64(obj.ChangeDate()),
		Update:     update,
	})
	return nil
}

func (m *traceMirror) Unregister(_ context.Context, obj object.Object) error {
	m.r.record(TraceEvent{
		Type: TraceMirror,
		Op:   "unregister",
		Repo: m.r.nameOf(obj.Repository()),
		Kind: obj.Kind().Name(),
		Path: rel(obj.Path()),
	})
	return nil
}

func (m *traceMirror) RegisterClass(_ context.Context, repo string, class *object.Class) error {
	m.r.record(TraceEvent{
		Type:  TraceMirror,
		Op:    "register_class",
		Repo:  m.r.nameOf(repo),
		Kind:  class.Base.Name(),
		Class: class.Name,
	})
	return nil
}

func (m *traceMirror) UnregisterClass(_ context.Context, repo string, class *object.Class) error {
	m.r.record(TraceEvent{
		Type:  TraceMirror,
		Op:    "unregister_class",
		Repo:  m.r.nameOf(repo),
		Kind:  class.Base.Name(),
		Class: class.Name,
	})
	return nil
}
