package repository

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/object"
	"github.com/roach88/clusteval/internal/testutil"
)

// testEnv returns a fresh Env whose logger writes into the returned buffer.
func testEnv() (*Env, *bytes.Buffer) {
	var buf bytes.Buffer
	env := NewEnv()
	env.Logger = slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return env, &buf
}

func newRepo(t *testing.T, env *Env, root string, opts ...Option) (*Repository, *testutil.Mirror) {
	t.Helper()
	m := testutil.NewMirror()
	r, err := New(env, root, append([]Option{WithMirror(m)}, opts...)...)
	require.NoError(t, err)
	return r, m
}

func fileIn(r *Repository, kind *object.Kind, rel string, cd object.ChangeDate) *object.File {
	return object.NewFile(r.Root(), r.BasePath(kind)+"/"+rel, kind, cd, 0)
}
