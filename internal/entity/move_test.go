package entity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/object"
	"github.com/roach88/clusteval/internal/testutil"
)

func TestStaticStore_MoveReindexes(t *testing.T) {
	ctx := context.Background()
	s, m := newStatic(t, nil)
	obj := testutil.File("data/datasets/a.txt", object.DataSet, 100)
	id := obj.ID()

	_, err := s.Register(ctx, obj)
	require.NoError(t, err)

	rec := testutil.NewRecorder()
	rec.Listen(s.deps.Hub, obj)

	ok, err := s.Move(ctx, obj, "/repo/data/datasets/b.txt")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "/repo/data/datasets/b.txt", obj.Path())
	assert.Equal(t, id, obj.ID())
	assert.Same(t, obj, s.FindByName("b"))
	assert.Nil(t, s.FindByName("a"))

	_, found := s.deps.Index.Get("/repo/data/datasets/a.txt")
	assert.False(t, found)
	indexed, found := s.deps.Index.Get("/repo/data/datasets/b.txt")
	require.True(t, found)
	assert.Same(t, obj, indexed)

	require.Equal(t, 1, rec.Count())
	ev, ok := rec.Events()[0].(object.MoveEvent)
	require.True(t, ok)
	assert.Equal(t, "/repo/data/datasets/a.txt", ev.OldPath)
	assert.Equal(t, "/repo/data/datasets/b.txt", ev.NewPath)

	assert.Equal(t, []testutil.MirrorCall{
		{Op: "register", Path: "/repo/data/datasets/a.txt"},
		{Op: "unregister", Path: "/repo/data/datasets/a.txt"},
		{Op: "register", Path: "/repo/data/datasets/b.txt"},
	}, m.Calls())
}

func TestStaticStore_MoveOntoOccupiedPathIsRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	a := testutil.File("a", object.DataSet, 1)
	b := testutil.File("b", object.DataSet, 1)
	_, _ = s.Register(ctx, a)
	_, _ = s.Register(ctx, b)

	ok, err := s.Move(ctx, a, b.Path())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "/repo/a", a.Path())
}

func TestStaticStore_MoveUnregisteredIsRejected(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)

	ok, err := s.Move(ctx, testutil.File("a", object.DataSet, 1), "/repo/z")
	require.NoError(t, err)
	assert.False(t, ok)
}

type immovable struct{ object.Object }

func TestStaticStore_MoveRequiresMovable(t *testing.T) {
	ctx := context.Background()
	s, _ := newStatic(t, nil)
	obj := immovable{testutil.File("a", object.DataSet, 1)}

	ok, err := s.Move(ctx, obj, "/repo/z")
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrNotMovable)
}

func TestDynamicStore_MoveKeepsBucket(t *testing.T) {
	ctx := context.Background()
	s, _ := newDynamic(t, nil, nil)
	class := object.NewClass("statistics.data.Diameter", object.DataStatistic)
	require.True(t, s.RegisterClass(ctx, class))

	inst := instance(class, "supp/statistics/data/diameter.cue", 1)
	_, err := s.Register(ctx, inst)
	require.NoError(t, err)

	rec := testutil.NewRecorder()
	rec.Listen(s.deps.Hub, inst)

	ok, err := s.Move(ctx, inst, "/repo/supp/statistics/data/diameter2.cue")
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, []object.Object{inst}, s.Instances("Diameter"))
	require.Equal(t, 1, rec.Count())
	assert.Equal(t, "move", rec.Events()[0].Type())
}
