package entity

import (
	"context"

	"github.com/roach88/clusteval/internal/object"
)

// Move re-keys a registered object under newPath and publishes MoveEvent to
// its listeners. It returns false when obj is not registered in this store,
// already lives at newPath, or another object is visible at newPath through
// the lookup chain. Bucket membership of dynamic instances is unchanged.
func (t *table) Move(ctx context.Context, obj object.Object, newPath string) (bool, error) {
	m, ok := obj.(object.Movable)
	if !ok {
		return false, &RegisterError{Op: "move", Path: obj.Path(), Err: ErrNotMovable}
	}
	target := object.CanonicalPath(newPath)

	t.mu.Lock()
	cur, ok := t.objects[obj.Identity()]
	if !ok || cur != obj || cur.Path() == target {
		t.mu.Unlock()
		return false, nil
	}
	if t.lookupLocked(object.Identity{Repository: cur.Repository(), Path: target}) != nil {
		t.mu.Unlock()
		return false, nil
	}

	oldPath := cur.Path()
	t.deleteLocked(cur)
	t.mirrorUnregister(ctx, cur)
	m.MoveTo(target)
	t.putLocked(cur)
	t.mirrorRegister(ctx, cur, false)
	p := t.commitLocked(object.MoveEvent{Moved: cur, OldPath: oldPath, NewPath: target})
	t.mu.Unlock()

	t.deps.Logger.Log(ctx, t.deps.Level, "object moved",
		"kind", cur.Kind().Name(), "from", oldPath, "to", target)

	if err := t.publish(ctx, p, "move"); err != nil {
		return true, err
	}
	return true, nil
}
