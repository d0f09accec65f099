// Package entity implements the per-kind containers that hold registered
// objects.
//
// Two store flavors share one contract (Store):
//
//   - StaticStore holds instances of kinds fixed at compile time.
//   - DynamicStore additionally holds plugin classes and partitions its
//     instances by concrete class.
//
// # Registration
//
// Register looks the identity up through the lookup chain (the store
// itself, then its ancestors nearest first). An unknown identity is
// inserted. A known identity is replaced only when the existing change date
// is strictly smaller than the candidate's; otherwise the call is a no-op
// returning false. A replacement publishes ReplaceEvent(old, new) to the
// listeners of the old object.
//
// # Locking
//
// Each store has one mutex guarding all of its maps. A register or
// unregister call holds it for its whole body, mirror call included, so the
// mirror observes transitions in store order. Ancestor stores are locked one
// at a time while the child lock is held; no code path takes a parent lock
// and then a child lock. Class removals reach descendant stores only after
// the parent lock is released.
//
// # Delivery
//
// Events are published after the store lock is released and before the
// call returns, so a listener may cascade into any store, including an
// ancestor. Each commit takes a ticket while the lock is held and events
// are delivered in ticket order: two replaces of one identity reach
// listeners in the order they were committed. A listener that calls back
// into the notifying store with the context it was handed is part of the
// current delivery and does not wait.
package entity
