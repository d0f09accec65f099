package finder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/roach88/clusteval/internal/manifest"
	"github.com/roach88/clusteval/internal/object"
	"github.com/roach88/clusteval/internal/repository"
)

// Config holds finder configuration options.
type Config struct {
	// Debounce delays a rescan after a filesystem event.
	Debounce time.Duration
	// Interval forces a rescan periodically. Zero disables it.
	Interval time.Duration
}

// DefaultConfig returns sensible defaults for the finder.
func DefaultConfig() Config {
	return Config{
		Debounce: 500 * time.Millisecond,
	}
}

// Stats summarises one Scan.
type Stats struct {
	Registered int `json:"registered"`
	Removed    int `json:"removed"`
	Classes    int `json:"classes"`
	Refused    int `json:"refused"`
	Errors     int `json:"errors"`
}

func (s *Stats) add(o Stats) {
	s.Registered += o.Registered
	s.Removed += o.Removed
	s.Classes += o.Classes
	s.Refused += o.Refused
	s.Errors += o.Errors
}

// manifestState remembers what a manifest contributed.
type manifestState struct {
	changeDate object.ChangeDate
	kind       *object.Kind
	registered []*object.Class
	refused    []*object.Class
}

// Finder keeps a repository in step with its directory tree.
type Finder struct {
	repo   *repository.Repository
	cfg    Config
	logger *slog.Logger

	// scanMu serialises passes.
	scanMu sync.Mutex

	mu        sync.Mutex
	known     map[string]error
	manifests map[string]*manifestState
}

// New creates a finder for repo.
func New(repo *repository.Repository, cfg Config, logger *slog.Logger) *Finder {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultConfig().Debounce
	}
	if logger == nil {
		logger = repo.Logger()
	}
	return &Finder{
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
		known:     make(map[string]error),
		manifests: make(map[string]*manifestState),
	}
}

// KnownErrors returns the last load or registration error per path.
// A path disappears from the result once it loads cleanly again.
func (f *Finder) KnownErrors() map[string]error {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make(map[string]error, len(f.known))
	for p, err := range f.known {
		out[p] = err
	}
	return out
}

func (f *Finder) setKnown(path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.known, path)
		return
	}
	f.known[path] = err
}

// Scan makes one pass over every kind the repository owns.
func (f *Finder) Scan(ctx context.Context) (Stats, error) {
	f.scanMu.Lock()
	defer f.scanMu.Unlock()

	var total Stats
	for _, kind := range f.repo.Kinds() {
		if err := ctx.Err(); err != nil {
			return total, fmt.Errorf("scan interrupted: %w", err)
		}
		if !f.repo.Owns(kind) {
			continue
		}

		var (
			st  Stats
			err error
		)
		switch {
		case kind.Flavor() == object.Dynamic:
			st, err = f.scanManifests(ctx, kind)
		case matchers[kind] != nil:
			st, err = f.scanFiles(ctx, kind, matchers[kind])
		}
		total.add(st)
		if err != nil {
			return total, err
		}
		if !f.repo.InitializedKind(kind) {
			f.repo.SetInitialized(kind)
			f.logger.Debug("kind initialized", "kind", kind.Name())
		}
	}
	return total, nil
}

// readDir lists dir; a missing directory is empty.
func readDir(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return entries, err
}

func (f *Finder) scanFiles(ctx context.Context, kind *object.Kind, match matcher) (Stats, error) {
	var st Stats
	dir := f.repo.BasePath(kind)
	entries, err := readDir(dir)
	if err != nil {
		return st, fmt.Errorf("scan %s: %w", kind.Name(), err)
	}

	seen := make(map[string]bool)
	for _, e := range entries {
		if hidden(e.Name()) || !match(e) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Vanished between ReadDir and Info.
			continue
		}

		path := object.CanonicalPath(filepath.Join(dir, e.Name()))
		seen[path] = true

		var size int64
		if !e.IsDir() {
			size = info.Size()
		}
		candidate := object.NewFile(f.repo.Root(), path, kind, object.ChangeDateOf(info.ModTime()), size)
		if existing := f.repo.Registered(candidate, false); existing != nil && existing != object.Object(candidate) {
			// Unchanged.
			continue
		}

		ok, err := f.repo.Register(ctx, candidate)
		f.setKnown(path, err)
		if err != nil {
			st.Errors++
			f.logger.Warn("could not register object", "kind", kind.Name(), "path", path, "error", err)
			continue
		}
		if ok {
			st.Registered++
		}
	}

	for _, obj := range f.repo.All(kind) {
		if obj.Repository() != f.repo.Root() || filepath.Dir(obj.Path()) != dir || seen[obj.Path()] {
			continue
		}
		if ok, _ := f.repo.Remove(ctx, obj); ok {
			st.Removed++
		}
		f.setKnown(obj.Path(), nil)
	}
	return st, nil
}

func (f *Finder) scanManifests(ctx context.Context, kind *object.Kind) (Stats, error) {
	var st Stats
	dir := f.repo.BasePath(kind)
	files, err := manifest.FindCUEFiles(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return st, fmt.Errorf("scan %s manifests: %w", kind.Name(), err)
	}

	seen := make(map[string]bool)
	for _, file := range files {
		path := object.CanonicalPath(file)
		seen[path] = true
		st.add(f.loadManifest(ctx, kind, path))
	}

	f.mu.Lock()
	var vanished []string
	for path, ms := range f.manifests {
		if ms.kind == kind && !seen[path] {
			vanished = append(vanished, path)
		}
	}
	f.mu.Unlock()
	sort.Strings(vanished)

	for _, path := range vanished {
		f.mu.Lock()
		ms := f.manifests[path]
		delete(f.manifests, path)
		delete(f.known, path)
		f.mu.Unlock()

		for _, c := range ms.registered {
			if f.repo.UnregisterClass(ctx, kind, c) {
				st.Removed++
			}
		}
		f.logger.Info("manifest removed", "kind", kind.Name(), "path", path)
	}
	return st, nil
}

func (f *Finder) loadManifest(ctx context.Context, kind *object.Kind, path string) Stats {
	var st Stats
	info, err := os.Stat(path)
	if err != nil {
		return st
	}
	changeDate := object.ChangeDateOf(info.ModTime())

	f.mu.Lock()
	prev := f.manifests[path]
	f.mu.Unlock()

	if prev != nil && prev.changeDate == changeDate {
		// Unchanged: only retry what the gate refused last time.
		var still []*object.Class
		for _, c := range prev.refused {
			if ok, _ := f.repo.RegisterClass(ctx, kind, c); ok {
				prev.registered = append(prev.registered, c)
				st.Classes++
				continue
			}
			still = append(still, c)
		}
		st.Refused += len(still)
		prev.refused = still
		return st
	}

	classes, errs := manifest.LoadFile(path, []*object.Kind{kind}, manifest.LoadModeCollectAll)
	if len(errs) > 0 {
		st.Errors += len(errs)
		f.setKnown(path, errors.Join(errs...))
		f.logger.Warn("manifest has errors", "kind", kind.Name(), "path", path, "errors", len(errs), "error", errs[0])
	} else {
		f.setKnown(path, nil)
	}

	next := &manifestState{changeDate: changeDate, kind: kind}
	declared := make(map[string]bool, len(classes))
	for _, c := range classes {
		declared[c.Name] = true
	}
	if prev != nil {
		for _, c := range prev.registered {
			if !declared[c.Name] {
				f.repo.UnregisterClass(ctx, kind, c)
				st.Removed++
			}
		}
	}

	for _, c := range classes {
		ok, err := f.repo.RegisterClass(ctx, kind, c)
		if err != nil {
			st.Errors++
			f.logger.Warn("could not register class", "class", c.Name, "error", err)
			continue
		}
		if ok {
			next.registered = append(next.registered, c)
			st.Classes++
		} else {
			next.refused = append(next.refused, c)
			st.Refused++
		}
	}

	f.mu.Lock()
	f.manifests[path] = next
	f.mu.Unlock()
	return st
}
