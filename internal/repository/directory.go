package repository

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/clusteval/internal/object"
)

// Directory maps canonical root paths to repositories.
// Thread-safe; its lock is independent of every repository's locks.
type Directory struct {
	mu    sync.RWMutex
	repos map[string]*Repository
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{repos: make(map[string]*Repository)}
}

// Register adds r under its root path.
//
// A repository already registered at the same root, r itself included,
// fails with *AlreadyExistsError. When r lies inside a
// registered repository, that repository must be r's parent; r must in turn
// lie inside any parent it declares. Both violations fail with
// *InvalidNestingError.
func (d *Directory) Register(r *Repository) error {
	root := r.Root()

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.repos[root]; ok {
		return &AlreadyExistsError{Root: root}
	}

	parent := r.Parent()
	if parent != nil && (parent.Root() == root || !object.Within(root, parent.Root())) {
		return &InvalidNestingError{Root: root, Parent: parent.Root()}
	}

	if owner := d.resolveLocked(root, false); owner != nil && owner != parent {
		ne := &InvalidNestingError{Root: root, Owner: owner.Root()}
		if parent != nil {
			ne.Parent = parent.Root()
		}
		return ne
	}

	d.repos[root] = r
	return nil
}

// Unregister removes r. A different repository registered at the same root
// is left alone.
func (d *Directory) Unregister(r *Repository) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cur, ok := d.repos[r.Root()]; ok && cur == r {
		delete(d.repos, r.Root())
		return true
	}
	return false
}

// Exact returns the repository registered at exactly root.
func (d *Directory) Exact(root string) (*Repository, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.repos[object.CanonicalPath(root)]
	return r, ok
}

// Resolve returns the deepest repository whose root contains path.
func (d *Directory) Resolve(path string) (*Repository, error) {
	p := object.CanonicalPath(path)

	d.mu.RLock()
	defer d.mu.RUnlock()

	if r := d.resolveLocked(p, true); r != nil {
		return r, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNoRepository, p)
}

// resolveLocked finds the longest registered root containing p on a
// separator boundary. With inclusive false a root equal to p is skipped.
func (d *Directory) resolveLocked(p string, inclusive bool) *Repository {
	var best *Repository
	for root, r := range d.repos {
		if root == p && !inclusive {
			continue
		}
		if !object.Within(p, root) {
			continue
		}
		if best == nil || len(root) > len(best.Root()) {
			best = r
		}
	}
	return best
}

// All returns the registered repositories ordered by root.
func (d *Directory) All() []*Repository {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*Repository, 0, len(d.repos))
	for _, r := range d.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Root() < out[j].Root() })
	return out
}

// Len returns the number of registered repositories.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.repos)
}
