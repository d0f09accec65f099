package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/object"
	"github.com/roach88/clusteval/internal/testutil"
)

func newDeps(m Mirror) Deps {
	return Deps{
		Repository: testutil.FixedRoot,
		Index:      NewPathIndex(),
		Mirror:     m,
		Hub:        object.NewHub(),
		Classes:    NewClassSet(),
	}
}

func newStatic(t *testing.T, parent *StaticStore) (*StaticStore, *testutil.Mirror) {
	t.Helper()
	m := testutil.NewMirror()
	return NewStaticStore(object.DataSet, "/repo/data/datasets", newDeps(m), Hooks{}, parent), m
}

func TestStaticStore_RegisterIntoEmptyStore(t *testing.T) {
	ctx := context.Background()
	s, m := newStatic(t, nil)
	obj := testutil.File("data/datasets/a.txt", object.DataSet, 100)

	ok, err := s.Register(ctx, obj)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []object.Object{obj}, s.All())
	assert.Same(t, obj, s.FindByName("a"))
	indexed, found := s.deps.Index.Get("/repo/data/datasets/a.txt")
	require.True(t, found)
	assert.Same(t, obj, indexed)
	assert.Equal(t, []testutil.MirrorCall{{Op: "register", Path: obj.Path(), Update: false}}, m.Calls())
}

func TestStaticStore_OlderRediscoveryIsRejected(t *testing.T) {
	ctx := context.Background()
	s, m := newStatic(t, nil)
	obj1 := testutil.File("a", object.DataSet, 100)
	obj2 := testutil.File("a", object.DataSet, 50)

	ok, err := s.Register(ctx, obj1)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Register(ctx, obj2)
	require.NoError(t, err)
	assert.False(t, ok)

	require.Len(t, s.All(), 1)
	assert.Same(t, obj1, s.All()[0])
	assert.Len(t, m.Calls(), 1, "rejected registration is not mirrored")
}

func TestStaticStore_EqualChangeDateNeverReplaces(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	obj1 := testutil.File("a", object.DataSet, 100)
	obj2 := testutil.File("a", object.DataSet, 100)

	_, _ = s.Register(ctx, obj1)
	ok, err := s.Register(ctx, obj2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Same(t, obj1, s.All()[0])

	ok, _ = s.Register(ctx, obj1)
	assert.False(t, ok, "re-registering the stored value is a no-op")
}

func TestStaticStore_NewerReplacesAndNotifiesOldListeners(t *testing.T) {
	ctx := context.Background()
	s, m := newStatic(t, nil)
	obj1 := testutil.File("a", object.DataSet, 100)
	obj2 := testutil.File("a", object.DataSet, 200)
	other := testutil.File("b", object.DataSet, 100)

	l := testutil.NewRecorder()
	l.Listen(s.deps.Hub, obj1)
	bystander := testutil.NewRecorder()
	bystander.Listen(s.deps.Hub, other)

	_, _ = s.Register(ctx, obj1)
	_, _ = s.Register(ctx, other)

	ok, err := s.Register(ctx, obj2)
	require.NoError(t, err)
	require.True(t, ok)

	all := s.All()
	require.Len(t, all, 2)
	assert.Same(t, obj2, all[0])
	assert.Same(t, obj2, s.FindByName("a"))

	require.Equal(t, 1, l.Count())
	assert.Equal(t, object.ReplaceEvent{Old: obj1, New: obj2}, l.Events()[0])
	assert.Equal(t, 0, bystander.Count())

	last := m.Calls()[len(m.Calls())-1]
	assert.Equal(t, testutil.MirrorCall{Op: "register", Path: obj2.Path(), Update: true}, last)
}

func TestStaticStore_ListenerFailureOnReplace(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	obj1 := testutil.File("a", object.DataSet, 1)
	obj2 := testutil.File("a", object.DataSet, 2)

	l := testutil.NewRecorder()
	l.Err = errors.New("cannot rebind")
	l.Listen(s.deps.Hub, obj1)

	_, _ = s.Register(ctx, obj1)
	ok, err := s.Register(ctx, obj2)

	assert.True(t, ok, "the replace is committed")
	require.Error(t, err)
	assert.True(t, IsRegisterError(err))
	var re *RegisterError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "replace", re.Op)
	assert.Same(t, obj2, s.All()[0])
}

func TestStaticStore_Unregister(t *testing.T) {
	ctx := context.Background()
	s, m := newStatic(t, nil)
	obj := testutil.File("a", object.DataSet, 1)
	_, _ = s.Register(ctx, obj)

	assert.True(t, s.Unregister(ctx, obj))
	assert.Empty(t, s.All())
	assert.Nil(t, s.FindByName("a"))
	assert.Equal(t, 0, s.deps.Index.Len())
	assert.Equal(t, []string{"register", "unregister"}, m.Ops())

	assert.False(t, s.Unregister(ctx, obj), "second unregister finds nothing")
}

func TestStaticStore_UnregisterAcceptsEqualIdentity(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	stored := testutil.File("a", object.DataSet, 1)
	_, _ = s.Register(ctx, stored)

	other := testutil.File("a", object.DataSet, 999)
	assert.True(t, s.Unregister(ctx, other))
	assert.Empty(t, s.All())
}

func TestStaticStore_UnregisterReportsIndexCorruption(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	obj := testutil.File("a", object.DataSet, 1)
	_, _ = s.Register(ctx, obj)

	s.deps.Index.Remove(obj)

	assert.False(t, s.Unregister(ctx, obj), "all three removals must succeed")
	assert.Empty(t, s.All(), "the identity entry is still dropped")
}

func TestStaticStore_RemovePublishesRemoveEvent(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	obj := testutil.File("a", object.DataSet, 1)
	l := testutil.NewRecorder()
	l.Listen(s.deps.Hub, obj)
	_, _ = s.Register(ctx, obj)

	ok, err := s.Remove(ctx, obj)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []object.Event{object.RemoveEvent{Removed: obj}}, l.Events())

	ok, err = s.Remove(ctx, obj)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, l.Count())
}

func TestStaticStore_MirrorFailureDoesNotChangeOutcome(t *testing.T) {
	ctx := context.Background()
	s, m := newStatic(t, nil)
	m.Err = errors.New("database is locked")
	obj := testutil.File("a", object.DataSet, 1)

	ok, err := s.Register(ctx, obj)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Unregister(ctx, obj))
}

func TestStaticStore_NilMirror(t *testing.T) {
	ctx := context.Background()
	s := NewStaticStore(object.DataSet, "/repo/data/datasets", Deps{}, Hooks{}, nil)
	obj := testutil.File("a", object.DataSet, 1)

	ok, err := s.Register(ctx, obj)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, s.Unregister(ctx, obj))
}

func TestStaticStore_AdmitHook(t *testing.T) {
	ctx := context.Background()
	hooks := Hooks{Admit: func(obj object.Object) error {
		if obj.Name() == "forbidden" {
			return ErrNotAdmitted
		}
		return nil
	}}
	s := NewStaticStore(object.DataSet, "/repo/data/datasets", newDeps(nil), hooks, nil)

	ok, err := s.Register(ctx, testutil.File("forbidden.txt", object.DataSet, 1))
	assert.False(t, ok)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotAdmitted)
	assert.True(t, IsRegisterError(err))

	ok, err = s.Register(ctx, testutil.File("fine.txt", object.DataSet, 1))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStaticStore_NeverReplaceHook(t *testing.T) {
	ctx := context.Background()
	s := NewStaticStore(object.RunResult, "/repo/results", newDeps(nil), Hooks{Replaceable: NeverReplace}, nil)
	first := testutil.File("results/r1", object.RunResult, 1)
	_, _ = s.Register(ctx, first)

	ok, err := s.Register(ctx, testutil.File("results/r1", object.RunResult, 2))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Same(t, first, s.All()[0])
}

func TestStaticStore_InsertedRemovedHooks(t *testing.T) {
	ctx := context.Background()
	var inserted, removed []string
	hooks := Hooks{
		Inserted: func(obj object.Object) { inserted = append(inserted, obj.Name()) },
		Removed:  func(obj object.Object) { removed = append(removed, obj.Name()) },
	}
	s := NewStaticStore(object.DataSet, "/repo", newDeps(nil), hooks, nil)
	a := testutil.File("a", object.DataSet, 1)
	_, _ = s.Register(ctx, a)
	_, _ = s.Register(ctx, testutil.File("a", object.DataSet, 2))
	s.Unregister(ctx, a)

	assert.Equal(t, []string{"a", "a"}, inserted)
	assert.Equal(t, []string{"a"}, removed)
}

func TestStaticStore_SharedDisplayName(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	csv := testutil.File("data/a.csv", object.DataSet, 1)
	txt := testutil.File("data/a.txt", object.DataSet, 1)
	_, _ = s.Register(ctx, csv)
	_, _ = s.Register(ctx, txt)

	require.True(t, s.Unregister(ctx, txt))
	assert.Same(t, csv, s.FindByName("a"), "name falls back to the remaining object")
}

func TestStaticStore_Registered(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	stored := testutil.File("a", object.DataSet, 100)
	_, _ = s.Register(ctx, stored)

	same := testutil.File("a", object.DataSet, 100)
	newer := testutil.File("a", object.DataSet, 200)
	unknown := testutil.File("b", object.DataSet, 100)

	assert.Same(t, stored, s.Registered(same, false), "equal change date yields the stored object")
	assert.Same(t, newer, s.Registered(newer, false), "differing change date yields the candidate")
	assert.Same(t, stored, s.Registered(newer, true))
	assert.Nil(t, s.Registered(unknown, false))
}

func TestStaticStore_Initialized(t *testing.T) {
	s, _ := newStatic(t, nil)
	assert.False(t, s.Initialized())
	s.SetInitialized()
	assert.True(t, s.Initialized())
	assert.Equal(t, "/repo/data/datasets", s.BasePath())
	assert.Same(t, object.DataSet, s.Kind())
}
