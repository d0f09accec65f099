package entity

import (
	"sort"
	"sync"

	"github.com/roach88/clusteval/internal/object"
)

// ClassSet is the process-wide set of loaded plugin classes. It answers
// "is this class available anywhere" independently of any repository.
//
// Entries are counted: every store that registers a class adds a
// reference and a class stays available until the last one is released.
//
// One ClassSet is created at process start and handed to every repository;
// tests create their own.
type ClassSet struct {
	mu      sync.RWMutex
	classes map[string]*object.Class
	refs    map[string]int
}

// NewClassSet creates an empty set.
func NewClassSet() *ClassSet {
	return &ClassSet{
		classes: make(map[string]*object.Class),
		refs:    make(map[string]int),
	}
}

// Add records class as loaded and takes a reference on its name. The
// latest class added under a name is the one Get returns.
func (s *ClassSet) Add(class *object.Class) {
	s.mu.Lock()
	s.classes[class.Name] = class
	s.refs[class.Name]++
	s.mu.Unlock()
}

// Release drops one reference and forgets the class with the last one.
// It returns false when the name was not loaded.
func (s *ClassSet) Release(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.refs[name]
	if !ok {
		return false
	}
	if n > 1 {
		s.refs[name] = n - 1
		return true
	}
	delete(s.refs, name)
	delete(s.classes, name)
	return true
}

// Available reports whether a class with the given name is loaded.
func (s *ClassSet) Available(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.classes[name]
	return ok
}

// Get returns the loaded class with the given name.
func (s *ClassSet) Get(name string) (*object.Class, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.classes[name]
	return c, ok
}

// Names returns the loaded class names in lexical order.
func (s *ClassSet) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.classes))
	for n := range s.classes {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
