// Package finder discovers repository objects on disk.
//
// Scan makes one pass over the base directory of every kind a repository
// owns. Static kinds are matched by file extension (run results are the
// directories below results); each match becomes an object.File whose change
// date is the file's modification time, and registered objects whose file
// has vanished are removed. Dynamic kinds are fed from CUE manifests (see
// package manifest); classes a manifest no longer declares are unregistered,
// and classes refused by the dependency gate are retried on every pass.
//
// After its first pass over a kind the finder marks the kind initialized,
// which is what Repository.Initialize waits for.
//
// Watch runs an initial Scan and then rescans on debounced fsnotify events
// and, optionally, on a fixed interval.
package finder
