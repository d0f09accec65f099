package repository

import (
	"context"

	"github.com/roach88/clusteval/internal/object"
)

// Link makes dependent follow dependency: removing dependency removes
// dependent from this repository (which may cascade further), and replacing
// dependency moves the link to the replacement. It returns the listener id,
// or "" when the two are the same object.
func (r *Repository) Link(dependent, dependency object.Object) object.ListenerID {
	if object.Same(dependent, dependency) {
		return ""
	}
	l := &link{repo: r, dependent: dependent}
	l.id = r.env.Hub.Add(l)
	r.env.Hub.Subscribe(dependency, l.id)
	return l.id
}

// Unlink drops a link created by Link.
func (r *Repository) Unlink(id object.ListenerID) {
	r.env.Hub.Forget(id)
}

type link struct {
	repo      *Repository
	dependent object.Object
	id        object.ListenerID
}

func (l *link) Notify(ctx context.Context, ev object.Event) error {
	hub := l.repo.env.Hub
	switch e := ev.(type) {
	case object.ReplaceEvent:
		hub.Unsubscribe(e.Old, l.id)
		hub.Subscribe(e.New, l.id)
	case object.RemoveEvent:
		hub.Forget(l.id)
		l.repo.logger.Log(ctx, l.repo.level, "removing dependent",
			"path", l.dependent.Path(), "dependency", e.Removed.Path())
		if _, err := l.repo.Remove(ctx, l.dependent); err != nil {
			return err
		}
	}
	return nil
}
