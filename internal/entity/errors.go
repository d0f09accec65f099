package entity

import (
	"errors"
	"fmt"
)

// RegisterError reports a registration whose outcome must not be ignored:
// a failed admission precondition or a listener failure during a committed
// replace. Routine rejections (stale, duplicate) are reported as false, not
// as errors.
type RegisterError struct {
	Op   string // "admit", "replace", "remove", "move"
	Path string
	Err  error
}

func (e *RegisterError) Error() string {
	return fmt.Sprintf("register %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *RegisterError) Unwrap() error {
	return e.Err
}

// IsRegisterError reports whether err is or wraps a *RegisterError.
func IsRegisterError(err error) bool {
	var re *RegisterError
	return errors.As(err, &re)
}

// ErrNotAdmitted is wrapped by admission failures raised by store hooks.
var ErrNotAdmitted = errors.New("object not admitted")

// ErrNotMovable is returned by Move for objects that do not implement
// object.Movable.
var ErrNotMovable = errors.New("object cannot be moved")
