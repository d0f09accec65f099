package entity

import (
	"sort"
	"sync"

	"github.com/roach88/clusteval/internal/object"
)

// PathIndex is a repository-wide reverse index from canonical path to the
// registered object at that path, independent of kind.
//
// Thread-safety: safe for concurrent use; it has its own lock and is
// touched from inside store locks, never the other way round.
type PathIndex struct {
	mu     sync.RWMutex
	byPath map[string]object.Object
}

// NewPathIndex creates an empty index.
func NewPathIndex() *PathIndex {
	return &PathIndex{byPath: make(map[string]object.Object)}
}

// Put maps the object's path to the object, replacing any previous entry.
func (x *PathIndex) Put(obj object.Object) {
	x.mu.Lock()
	x.byPath[obj.Path()] = obj
	x.mu.Unlock()
}

// Remove drops the entry for obj's path.
// Returns false if no entry existed at that path. An entry that belongs to
// a different object is left in place and counts as success: that object
// took the path over legitimately.
func (x *PathIndex) Remove(obj object.Object) bool {
	return x.RemovePath(obj.Path(), obj)
}

// RemovePath is Remove for an object whose path has since changed.
func (x *PathIndex) RemovePath(path string, obj object.Object) bool {
	x.mu.Lock()
	defer x.mu.Unlock()

	cur, ok := x.byPath[path]
	if !ok {
		return false
	}
	if cur.ID() == obj.ID() || object.Same(cur, obj) {
		delete(x.byPath, path)
	}
	return true
}

// Get returns the object registered at path.
func (x *PathIndex) Get(path string) (object.Object, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	obj, ok := x.byPath[object.CanonicalPath(path)]
	return obj, ok
}

// Len returns the number of indexed paths.
func (x *PathIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.byPath)
}

// Paths returns all indexed paths in lexical order.
func (x *PathIndex) Paths() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make([]string, 0, len(x.byPath))
	for p := range x.byPath {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
