package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNoRepository is returned by Directory.Resolve when no registered
	// repository owns a path.
	ErrNoRepository = errors.New("no repository owns path")

	// ErrUnmanagedKind is returned when no store is responsible for a kind.
	ErrUnmanagedKind = errors.New("kind is not managed by this repository")

	// ErrNoParent is returned by NewRunResult without a parent repository.
	ErrNoParent = errors.New("run-result repository needs a parent")

	// ErrClosed is returned by operations on a closed repository.
	ErrClosed = errors.New("repository closed")
)

// AlreadyExistsError reports a second repository for a root path that is
// already owned.
type AlreadyExistsError struct {
	Root string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("repository already exists: %s", e.Root)
}

// IsAlreadyExists reports whether err is or wraps an *AlreadyExistsError.
func IsAlreadyExists(err error) bool {
	var ae *AlreadyExistsError
	return errors.As(err, &ae)
}

// InvalidNestingError reports a repository nested inside another one
// without declaring it as its parent, or declaring a parent it is not
// nested in.
type InvalidNestingError struct {
	Root   string
	Owner  string
	Parent string
}

func (e *InvalidNestingError) Error() string {
	switch {
	case e.Owner != "" && e.Parent == "":
		return fmt.Sprintf("repository %s is nested in %s without a parental relationship", e.Root, e.Owner)
	case e.Owner != "":
		return fmt.Sprintf("repository %s is nested in %s but declares parent %s", e.Root, e.Owner, e.Parent)
	default:
		return fmt.Sprintf("repository %s is not inside its parent %s", e.Root, e.Parent)
	}
}

// IsInvalidNesting reports whether err is or wraps an *InvalidNestingError.
func IsInvalidNesting(err error) bool {
	var ne *InvalidNestingError
	return errors.As(err, &ne)
}
