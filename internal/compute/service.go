package compute

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Service is a compute backend reachable over some connection.
type Service interface {
	// Name identifies the service in reports when it cannot be reached.
	Name() string
	Dial(ctx context.Context) (Conn, error)
}

// Conn is one connection to a Service.
type Conn interface {
	// LoadLibrary makes the named library available on this connection.
	// requester is the fully qualified class name that needs it.
	LoadLibrary(ctx context.Context, name, requester string) error
	Close() error
}

var (
	// ErrLibraryUnavailable is wrapped by LoadLibrary when the library is
	// not installed.
	ErrLibraryUnavailable = errors.New("library unavailable")
	// ErrServiceUnavailable is wrapped by Dial when the service cannot be
	// reached.
	ErrServiceUnavailable = errors.New("compute service unavailable")
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("connection closed")
)

// DependencyError reports a class whose prerequisite could not be loaded.
type DependencyError struct {
	Class   string
	Library string
	Err     error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("class %s requires %s: %v", e.Class, e.Library, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// IsDependencyError reports whether err is or wraps a *DependencyError.
func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

// Static is an in-process service with a fixed set of installed libraries.
// It stands in for the scripting service when none is configured and in
// tests.
type Static struct {
	mu        sync.RWMutex
	libraries map[string]bool
	dials     int
	loads     int
}

// NewStatic creates a service on which exactly libraries are installed.
func NewStatic(libraries ...string) *Static {
	s := &Static{libraries: make(map[string]bool)}
	for _, l := range libraries {
		s.libraries[l] = true
	}
	return s
}

func (s *Static) Name() string { return "static" }

// Install makes a library available to subsequent loads.
func (s *Static) Install(name string) {
	s.mu.Lock()
	s.libraries[name] = true
	s.mu.Unlock()
}

// Uninstall removes a library.
func (s *Static) Uninstall(name string) {
	s.mu.Lock()
	delete(s.libraries, name)
	s.mu.Unlock()
}

// Dials returns how many connections were opened.
func (s *Static) Dials() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dials
}

// Loads returns how many LoadLibrary calls reached the service.
func (s *Static) Loads() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loads
}

func (s *Static) Dial(ctx context.Context) (Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.dials++
	s.mu.Unlock()
	return &staticConn{service: s}, nil
}

type staticConn struct {
	service *Static
	mu      sync.Mutex
	closed  bool
}

func (c *staticConn) LoadLibrary(ctx context.Context, name, requester string) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.service.mu.Lock()
	defer c.service.mu.Unlock()
	c.service.loads++
	if !c.service.libraries[name] {
		return fmt.Errorf("%s: %w", name, ErrLibraryUnavailable)
	}
	return nil
}

func (c *staticConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Unavailable is a service that can never be reached.
type Unavailable struct {
	Label string
}

func (u Unavailable) Name() string {
	if u.Label == "" {
		return "R"
	}
	return u.Label
}

func (u Unavailable) Dial(context.Context) (Conn, error) {
	return nil, fmt.Errorf("%s: %w", u.Name(), ErrServiceUnavailable)
}
