package object

import (
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Object is a managed artifact owned by exactly one repository.
type Object interface {
	// ID is a process-unique handle used to address listener subscriptions.
	// It survives moves and is unrelated to equality.
	ID() string
	Identity() Identity
	Repository() string
	Path() string
	ChangeDate() ChangeDate
	Kind() *Kind
	// TypeName is the concrete runtime type. For instances of plugin
	// classes it is the class simple name.
	TypeName() string
	// Name is the display name used for lookup by name.
	Name() string
}

// Movable is implemented by objects whose path can be changed in place.
type Movable interface {
	Object
	MoveTo(path string)
}

// Same reports whether a and b denote the same managed object.
// Change dates are ignored.
func Same(a, b Object) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Identity() == b.Identity()
}

// Base implements Object and is meant to be embedded by concrete artifacts.
// The path is the only mutable field.
type Base struct {
	id         string
	repository string
	kind       *Kind
	typeName   string
	changeDate ChangeDate

	mu   sync.RWMutex
	path string
}

// NewBase creates the common part of a managed object. repository and path
// are canonicalised. typeName defaults to the kind name.
func NewBase(repository, path string, kind *Kind, typeName string, changeDate ChangeDate) *Base {
	if typeName == "" {
		typeName = kind.Name()
	}
	return &Base{
		id:         uuid.Must(uuid.NewV7()).String(),
		repository: CanonicalPath(repository),
		kind:       kind,
		typeName:   typeName,
		changeDate: changeDate,
		path:       CanonicalPath(path),
	}
}

func (b *Base) ID() string             { return b.id }
func (b *Base) Repository() string     { return b.repository }
func (b *Base) Kind() *Kind            { return b.kind }
func (b *Base) TypeName() string       { return b.typeName }
func (b *Base) ChangeDate() ChangeDate { return b.changeDate }

func (b *Base) Path() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.path
}

func (b *Base) Identity() Identity {
	return Identity{Repository: b.repository, Path: b.Path()}
}

// Name is the file name without its extension.
func (b *Base) Name() string {
	base := filepath.Base(b.Path())
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// MoveTo changes the object's path. Callers must re-index the object in its
// repository; Repository.Move does both.
func (b *Base) MoveTo(path string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.path = CanonicalPath(path)
}

func (b *Base) String() string {
	return b.TypeName() + "(" + b.Path() + ")"
}

// File is a plain artifact discovered on disk.
type File struct {
	*Base
	Size int64
}

// NewFile creates a File of the given kind.
func NewFile(repository, path string, kind *Kind, changeDate ChangeDate, size int64) *File {
	return &File{Base: NewBase(repository, path, kind, "", changeDate), Size: size}
}

// Instance is an object whose concrete type is a registered plugin class.
type Instance struct {
	*Base
	Class *Class
}

// NewInstance creates an instance of class located at path.
func NewInstance(repository, path string, class *Class, changeDate ChangeDate) *Instance {
	return &Instance{
		Base:  NewBase(repository, path, class.Base, class.SimpleName, changeDate),
		Class: class,
	}
}
