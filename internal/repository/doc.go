// Package repository implements the repository aggregate: one entity store
// per managed kind, a repository-global path index, an optional parent, and
// the process-wide Directory that maps root paths to repositories.
//
// # Dispatch
//
// Register, Unregister and the lookup helpers resolve the store for an
// object by walking its kind lineage (self, parent, grandparent...) until a
// kind with a store is found. The resolved store is cached per kind.
//
// # Hierarchy
//
// A repository created WithParent builds delegating stores: lookups that
// miss locally fall back to the parent's store for the same kind. Run-result
// repositories (NewRunResult) share most stores with their parent outright
// and only scope configs, runs, inputs and gold standards to themselves.
//
// # Process services
//
// The Directory, the loaded-class set and the listener Hub are process-wide
// state. They are bundled in an Env that callers construct once and pass to
// every repository; tests construct one per case.
package repository
