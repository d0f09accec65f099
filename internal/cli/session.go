package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/clusteval/internal/compute"
	"github.com/roach88/clusteval/internal/config"
	"github.com/roach88/clusteval/internal/finder"
	"github.com/roach88/clusteval/internal/mirror"
	"github.com/roach88/clusteval/internal/object"
	"github.com/roach88/clusteval/internal/repository"
	"github.com/roach88/clusteval/internal/tracing"
)

const tracerName = "github.com/roach88/clusteval/internal/cli"

// session is everything a command needs to work on one repository.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	tracing *tracing.Provider
	env     *repository.Env
	pool    *compute.Pool
	mirror  *mirror.SQLite // nil unless mirroring
	repo    *repository.Repository
	finder  *finder.Finder
}

// sessionOptions are the per-command overrides of the config.
type sessionOptions struct {
	root string // repository root; empty uses the config
	db   string // mirror database; empty uses the config
}

// newLogger installs a text handler on w at level, or debug when verbose.
func newLogger(opts *RootOptions, cmd *cobra.Command, cfg config.Config) *slog.Logger {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// openSession loads the config and opens the repository with its
// collaborators. Failures are reported through f.
func openSession(ctx context.Context, opts *RootOptions, cmd *cobra.Command, f *OutputFormatter, so sessionOptions) (*session, error) {
	cfg, used, err := config.Load(opts.Config)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	s := &session{cfg: cfg, logger: newLogger(opts, cmd, cfg), env: repository.NewEnv()}
	s.env.Logger = s.logger
	if used != "" {
		s.logger.Debug("config loaded", "path", used)
	}

	s.tracing, err = tracing.NewProvider(ctx, tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		Exporter:     cfg.Tracing.Exporter,
		FilePath:     cfg.Tracing.FilePath,
		OTLPEndpoint: cfg.Tracing.OTLPEndpoint,
		SampleRate:   cfg.Tracing.SampleRate,
		Writer:       cmd.ErrOrStderr(),
	})
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to set up tracing", err)
	}

	root := so.root
	if root == "" {
		if root, err = cfg.RootDir(); err != nil {
			s.close(ctx)
			return nil, f.Fail(ExitCommandError, ErrCodeRepository, "failed to locate repository", err)
		}
	}
	root = object.CanonicalPath(root)

	var service compute.Service
	if cfg.Compute.Address != "" {
		service = compute.NewTCP(cfg.Compute.Address, cfg.Compute.Timeout)
	} else {
		service = compute.NewStatic(cfg.Compute.Available...)
	}
	s.pool = compute.NewPool(service, cfg.Compute.IdleTTL, s.logger)

	repoOpts := []repository.Option{
		repository.WithLogger(s.logger),
		repository.WithCompute(s.pool, cfg.Compute.Timeout),
	}

	dbPath := so.db
	if dbPath == "" && cfg.Mirror.Enabled {
		dbPath = cfg.MirrorPath(root)
	}
	if dbPath != "" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			s.close(ctx)
			return nil, f.Fail(ExitCommandError, ErrCodeMirror, "failed to create mirror directory", err)
		}
		s.mirror, err = mirror.Open(dbPath,
			mirror.WithLogger(s.logger),
			mirror.WithTracer(s.tracing.Tracer("github.com/roach88/clusteval/internal/mirror")),
		)
		if err != nil {
			s.close(ctx)
			return nil, f.Fail(ExitCommandError, ErrCodeMirror, "failed to open mirror", err)
		}
		s.logger.Info("mirror ready", "path", dbPath)
		repoOpts = append(repoOpts, repository.WithMirror(s.mirror))
	}

	s.repo, err = repository.Open(s.env, root, repoOpts...)
	if err != nil {
		s.close(ctx)
		return nil, f.Fail(ExitCommandError, ErrCodeRepository, "failed to open repository", err)
	}
	s.finder = finder.New(s.repo, finder.Config{
		Debounce: cfg.Finder.Debounce,
		Interval: cfg.Finder.Interval,
	}, s.logger)
	return s, nil
}

func (s *session) tracer() trace.Tracer {
	return s.tracing.Tracer(tracerName)
}

// startSpan starts the command span and records its trace id on f.
func (s *session) startSpan(ctx context.Context, f *OutputFormatter, name string) (context.Context, trace.Span) {
	ctx, span := s.tracer().Start(ctx, name)
	if sc := span.SpanContext(); sc.IsSampled() {
		f.TraceID = sc.TraceID().String()
	}
	return ctx, span
}

// load runs one finder pass and waits for the repository to initialize.
func (s *session) load(ctx context.Context) (finder.Stats, error) {
	st, err := s.finder.Scan(ctx)
	if err != nil {
		return st, err
	}
	if err := s.repo.Initialize(ctx); err != nil {
		return st, err
	}
	return st, nil
}

// close releases everything openSession acquired. Mirror writes are
// flushed before the database is closed.
func (s *session) close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	if s.repo != nil {
		_ = s.repo.Close()
	}
	if s.mirror != nil {
		if err := s.mirror.Flush(ctx); err != nil {
			s.logger.Error("error flushing mirror", "error", err)
		}
		if err := s.mirror.Close(); err != nil {
			s.logger.Error("error closing mirror", "error", err)
		}
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.tracing != nil {
		if err := s.tracing.Shutdown(ctx); err != nil {
			s.logger.Error("error shutting down tracing", "error", err)
		}
	}
}

// knownErrors renders the finder's per-path errors.
func (s *session) knownErrors() map[string]string {
	known := s.finder.KnownErrors()
	if len(known) == 0 {
		return nil
	}
	out := make(map[string]string, len(known))
	for path, err := range known {
		out[path] = err.Error()
	}
	return out
}

// objectCounts counts the objects per static kind the repository owns.
func objectCounts(r *repository.Repository) map[string]int {
	counts := make(map[string]int)
	for _, kind := range r.Kinds() {
		if kind.Flavor() != object.Static || !r.Owns(kind) {
			continue
		}
		counts[kind.Name()] = len(r.All(kind))
	}
	return counts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// cmdContext returns the command's context, or Background outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// lookupKind parses a kind flag; flavor restricts the accepted kinds.
func lookupKind(name string, flavor object.Flavor) (*object.Kind, error) {
	kind, ok := object.LookupKind(name)
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", name)
	}
	if kind.Flavor() != flavor {
		return nil, fmt.Errorf("kind %q is not %s", name, flavor)
	}
	return kind, nil
}

var errScanFailed = errors.New("repository loaded with errors")
