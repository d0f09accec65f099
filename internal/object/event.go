package object

// Event is an immutable lifecycle transition. Subject is the object whose
// listeners receive the event.
type Event interface {
	Subject() Object
	Type() string
}

// ReplaceEvent is delivered to the listeners of Old when New supersedes it.
type ReplaceEvent struct {
	Old Object
	New Object
}

func (e ReplaceEvent) Subject() Object { return e.Old }
func (e ReplaceEvent) Type() string    { return "replace" }

// RemoveEvent is delivered to the listeners of a removed object.
type RemoveEvent struct {
	Removed Object
}

func (e RemoveEvent) Subject() Object { return e.Removed }
func (e RemoveEvent) Type() string    { return "remove" }

// MoveEvent is delivered to the listeners of a moved object.
// NewPath is the canonical destination path.
type MoveEvent struct {
	Moved   Object
	OldPath string
	NewPath string
}

func (e MoveEvent) Subject() Object { return e.Moved }
func (e MoveEvent) Type() string    { return "move" }
