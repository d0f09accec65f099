package mirror

import (
	"context"

	"github.com/roach88/clusteval/internal/object"
)

// Stub is the mirror used when no persistence is configured.
type Stub struct{}

func (Stub) Register(context.Context, object.Object, bool) error { return nil }

func (Stub) Unregister(context.Context, object.Object) error { return nil }

func (Stub) RegisterClass(context.Context, string, *object.Class) error { return nil }

func (Stub) UnregisterClass(context.Context, string, *object.Class) error { return nil }

// Flush is a no-op.
func (Stub) Flush(context.Context) error { return nil }

// Close is a no-op.
func (Stub) Close() error { return nil }
