// Package mirror shadows repository registration state into durable
// storage.
//
// The in-memory stores are the authority; a mirror is best-effort. Stub
// discards everything. SQLite keeps three tables:
//
//   - objects: the currently registered objects, keyed by (repository, path)
//   - classes: the currently registered plugin classes, keyed by
//     (repository, name)
//   - transitions: an append-only journal of every accepted transition,
//     ordered by a logical seq
//
// # Write path
//
// Stores call the mirror while holding their lock, so calls arrive in store
// order. SQLite assigns each call a seq, appends it to an in-memory FIFO
// and returns immediately; a single writer goroutine applies the queue in
// order. Write failures are logged and the writer continues. Flush waits
// until everything enqueued so far has been applied.
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//
// All list queries order by a stable key (path, name or seq).
package mirror
