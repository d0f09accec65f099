package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/clusteval/internal/object"
)

// FixedRoot is a repository root used by tests that never touch the disk.
const FixedRoot = "/repo"

// File creates an in-memory File under FixedRoot.
func File(rel string, kind *object.Kind, changeDate object.ChangeDate) *object.File {
	return object.NewFile(FixedRoot, filepath.Join(FixedRoot, rel), kind, changeDate, 0)
}

// WriteFile creates root/rel with content and sets its modification time
// to mtime. Parent directories are created as needed.
func WriteFile(t *testing.T, root, rel, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
	return path
}
