package repository

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/clusteval/internal/entity"
	"github.com/roach88/clusteval/internal/object"
)

// NewRunResult creates the repository of one run result, rooted at root
// inside parent, and registers it in env's directory.
//
// Configs, runs, input data sets and gold standards get stores of their own
// that delegate to the parent. Data sets and gold standards are only
// admitted when the parent holds one of the same name. Every other store,
// the dynamic ones included, is the parent's. Routine messages are logged
// at debug level.
func NewRunResult(env *Env, parent *Repository, root string, opts ...Option) (*Repository, error) {
	if parent == nil {
		return nil, ErrNoParent
	}
	o := options{layout: RunResultLayout(), mirror: parent.mirror}
	for _, opt := range opts {
		opt(&o)
	}
	o.parent = parent

	r, err := build(env, root, o, true)
	if err != nil {
		return nil, err
	}
	if err := r.env.Directory.Register(r); err != nil {
		return nil, err
	}
	return r, nil
}

// requireInParent admits an object only if the parent repository holds an
// object of the same kind and name.
func requireInParent(parent *Repository, kind *object.Kind) func(object.Object) error {
	return func(obj object.Object) error {
		if parent.Find(kind, obj.Name()) == nil {
			return fmt.Errorf("%w: no %s named %q in %s", entity.ErrNotAdmitted, kind.Name(), obj.Name(), parent.Root())
		}
		return nil
	}
}

// runResultIndex maps run identifiers to run results. The identifier is
// the first path segment below the results directory.
type runResultIndex struct {
	base string

	mu   sync.Mutex
	byID map[string]object.Object
}

func newRunResultIndex(base string) *runResultIndex {
	return &runResultIndex{base: base, byID: make(map[string]object.Object)}
}

func (x *runResultIndex) identifier(obj object.Object) string {
	rel, err := filepath.Rel(x.base, obj.Path())
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return obj.Name()
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return first
}

func (x *runResultIndex) inserted(obj object.Object) {
	x.mu.Lock()
	x.byID[x.identifier(obj)] = obj
	x.mu.Unlock()
}

func (x *runResultIndex) removed(obj object.Object) {
	id := x.identifier(obj)
	x.mu.Lock()
	if cur, ok := x.byID[id]; ok && object.Same(cur, obj) {
		delete(x.byID, id)
	}
	x.mu.Unlock()
}

func (x *runResultIndex) get(id string) object.Object {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.byID[id]
}

func (x *runResultIndex) hooks() entity.Hooks {
	return entity.Hooks{
		Replaceable: entity.NeverReplace,
		Inserted:    x.inserted,
		Removed:     x.removed,
	}
}

// RunResult returns the run result with the given run identifier, searching
// the parent when this repository shares its run-result store.
func (r *Repository) RunResult(identifier string) object.Object {
	for cur := r; cur != nil; cur = cur.parent {
		if cur.runResults == nil {
			continue
		}
		if obj := cur.runResults.get(identifier); obj != nil {
			return obj
		}
	}
	return nil
}

// routineLevel is the level of routine store messages.
func routineLevel(runResult bool) slog.Level {
	if runResult {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
