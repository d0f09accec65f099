// Package object defines the managed-artifact model shared by every
// repository component.
//
// An object is identified by the pair (owning repository root, canonical
// path). The change date orders competing registrations of the same identity
// but never takes part in equality:
//
//	a.Identity() == b.Identity()  =>  Same(a, b)
//
// Lifecycle transitions (replace, remove, move) are described by immutable
// Event values. Listeners are not attached to objects directly; a Hub keeps
// an owning listener registry plus a subject-id to listener-id relation, so
// a subscription never keeps its listener alive and a forgotten listener is
// dropped from every subject at once.
//
// Kind is the static type descriptor used for store dispatch. Each kind
// carries its lineage (self first, then ancestors), computed once when the
// kind is declared, so resolving "nearest kind with a store" never needs
// reflection.
package object
