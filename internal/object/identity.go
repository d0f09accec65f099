package object

import (
	"path/filepath"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ChangeDate is the logical timestamp arbitrating between two objects with
// the same identity. It is usually a modification time in milliseconds.
type ChangeDate int64

// ChangeDateOf converts a modification time to a ChangeDate.
func ChangeDateOf(t time.Time) ChangeDate {
	return ChangeDate(t.UnixMilli())
}

// Identity is the equality key of a managed object.
// Both fields are canonical (see CanonicalPath), so Identity is safe to use
// as a map key.
type Identity struct {
	Repository string
	Path       string
}

// String renders the identity as repository:path.
func (id Identity) String() string {
	return id.Repository + ":" + id.Path
}

// CanonicalPath returns the canonical form of a filesystem path: NFC
// normalised, absolute and cleaned. Two spellings of the same location
// (decomposed accents, trailing separators, "a/../b") map to one string.
//
// If the working directory cannot be determined the cleaned relative form
// is returned.
func CanonicalPath(p string) string {
	if p == "" {
		return ""
	}
	p = norm.NFC.String(p)
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}

// Within reports whether path lies inside root on a separator boundary.
// A path is within itself. Both arguments must already be canonical.
func Within(path, root string) bool {
	if path == root {
		return true
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !startsWithParent(rel)
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && rel[2] == filepath.Separator
}
