package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/clusteval/internal/object"
)

// LoadMode controls how errors are handled during loading.
type LoadMode int

const (
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll LoadMode = iota
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast
)

// LoadFile compiles every plugin declared in the manifest at path. Each
// class carries the file as Source and its mtime as ChangeDate.
func LoadFile(path string, kinds []*object.Kind, mode LoadMode) ([]*object.Class, []error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest not readable: %v", err)}}
	}
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("manifest not readable: %v", err)}}
	}

	ctx := cuecontext.New()
	value := ctx.CompileBytes(src, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, []error{fromCUE(ErrCodeBuildFailed, err)}
	}

	plugins := value.LookupPath(cue.ParsePath("plugin"))
	if !plugins.Exists() {
		return nil, nil
	}
	iter, err := plugins.Fields()
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating plugins: %v", err), Pos: plugins.Pos()}}
	}

	changeDate := object.ChangeDateOf(info.ModTime())
	var (
		classes []*object.Class
		errs    []error
	)
	for iter.Next() {
		class, err := Compile(iter.Value(), kinds)
		if err != nil {
			errs = append(errs, err)
			if mode == LoadModeFailFast {
				return classes, errs
			}
			continue
		}
		class.Source = path
		class.ChangeDate = changeDate
		classes = append(classes, class)
	}
	return classes, errs
}

// LoadDir loads every manifest directly inside dir, in file name order.
func LoadDir(dir string, kinds []*object.Kind, mode LoadMode) ([]*object.Class, []error) {
	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}

	var (
		classes []*object.Class
		errs    []error
	)
	for _, f := range files {
		c, e := LoadFile(f, kinds, mode)
		classes = append(classes, c...)
		errs = append(errs, e...)
		if len(e) > 0 && mode == LoadModeFailFast {
			break
		}
	}
	return classes, errs
}

// IsManifest reports whether path names a manifest file.
func IsManifest(path string) bool {
	base := filepath.Base(path)
	return filepath.Ext(base) == ".cue" && !strings.HasPrefix(base, ".")
}

// FindCUEFiles returns the manifests directly inside dir, sorted.
// Subdirectories are not descended into.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || !IsManifest(e.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}
