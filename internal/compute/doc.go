// Package compute talks to the external scripting service that provides
// optional runtime libraries for plugin classes, and implements the
// dependency gate consulted before a plugin class is registered.
//
// Connections are per worker: a worker id travels in the context
// (WithWorker) and Pool hands each worker its own lazily dialed connection.
// Idle connections expire and are closed.
//
// The gate never panics or returns a fault for an unavailable library; it
// records a MissingDependency fact and returns a *DependencyError, which the
// dynamic store turns into a false registration result.
package compute
