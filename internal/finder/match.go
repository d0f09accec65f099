package finder

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/roach88/clusteval/internal/object"
)

// matcher decides whether a directory entry is an object of some kind.
type matcher func(e fs.DirEntry) bool

func anyFile(e fs.DirEntry) bool { return e.Type().IsRegular() }

func withExt(ext string) matcher {
	return func(e fs.DirEntry) bool {
		return e.Type().IsRegular() && strings.EqualFold(filepath.Ext(e.Name()), ext)
	}
}

func directory(e fs.DirEntry) bool { return e.IsDir() }

// matchers lists the static kinds discovered on disk. Kinds without an
// entry are never scanned and are marked initialized immediately.
var matchers = map[*object.Kind]matcher{
	object.DataSet:            anyFile,
	object.GoldStandard:       anyFile,
	object.Program:            anyFile,
	object.DataSetConfig:      withExt(".dsconfig"),
	object.GoldStandardConfig: withExt(".gsconfig"),
	object.DataConfig:         withExt(".dataconfig"),
	object.ProgramConfig:      withExt(".config"),
	object.Run:                withExt(".run"),
	object.RunResult:          directory,
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
