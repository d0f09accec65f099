package repository

import "github.com/roach88/clusteval/internal/object"

// Lookup returns the object of kind named name as a T.
func Lookup[T object.Object](r *Repository, kind *object.Kind, name string) (T, bool) {
	var zero T
	obj := r.Find(kind, name)
	if obj == nil {
		return zero, false
	}
	t, ok := obj.(T)
	return t, ok
}

// Collection returns the objects of kind that are a T.
func Collection[T object.Object](r *Repository, kind *object.Kind) []T {
	var out []T
	for _, obj := range r.All(kind) {
		if t, ok := obj.(T); ok {
			out = append(out, t)
		}
	}
	return out
}
