package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/roach88/clusteval/internal/compute"
	"github.com/roach88/clusteval/internal/finder"
)

// ScanOptions holds flags for the scan command.
type ScanOptions struct {
	*RootOptions
	Database string
	Watch    bool
}

// ScanResult summarises a loaded repository.
type ScanResult struct {
	Root    string                      `json:"root"`
	Stats   finder.Stats                `json:"stats"`
	Objects map[string]int              `json:"objects"`
	Classes int                         `json:"classes"`
	Errors  map[string]string           `json:"errors,omitempty"`
	Missing []compute.MissingDependency `json:"missing,omitempty"`
}

func (r ScanResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Repository %s\n", r.Root)
	fmt.Fprintf(&b, "  registered %d, removed %d, classes %d, refused %d\n",
		r.Stats.Registered, r.Stats.Removed, r.Stats.Classes, r.Stats.Refused)
	for _, kind := range sortedKeys(r.Objects) {
		if n := r.Objects[kind]; n > 0 {
			fmt.Fprintf(&b, "  %-20s %d\n", kind, n)
		}
	}
	fmt.Fprintf(&b, "  %-20s %d\n", "classes", r.Classes)
	if len(r.Errors) > 0 {
		fmt.Fprintf(&b, "✗ %d path(s) with errors\n", len(r.Errors))
		for _, path := range sortedKeys(r.Errors) {
			fmt.Fprintf(&b, "  %s: %s\n", path, r.Errors[path])
		}
	}
	for _, m := range r.Missing {
		fmt.Fprintf(&b, "  missing library %s for %s\n", m.Library, m.Class)
	}
	return b.String()
}

// NewScanCommand creates the scan command.
func NewScanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scan [root]",
		Short: "Register everything found in the repository",
		Long: `Scan the repository directories, register datasets, configs, programs,
runs and run results, and load plugin classes from their manifests.

With --watch the scan is repeated whenever the directories change,
until interrupted. With --db every registration is mirrored to SQLite.

Example:
  clusteval scan ./repository
  clusteval scan --watch --db ./clusteval.db ./repository`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) == 1 {
				root = args[0]
			}
			return runScan(opts, root, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "mirror registrations to this SQLite database")
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "keep scanning on filesystem changes")

	return cmd
}

func runScan(opts *ScanOptions, root string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx, cancel := context.WithCancel(cmdContext(cmd))
	defer cancel()

	s, err := openSession(ctx, opts.RootOptions, cmd, f, sessionOptions{root: root, db: opts.Database})
	if err != nil {
		return err
	}
	defer s.close(ctx)

	if opts.Watch {
		return watch(ctx, cancel, s, f)
	}

	ctx, span := s.startSpan(ctx, f, "clusteval.scan")
	st, err := s.load(ctx)
	span.SetAttributes(
		attribute.String("root", s.repo.Root()),
		attribute.Int("registered", st.Registered),
		attribute.Int("errors", st.Errors),
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.End()
		return f.Fail(ExitCommandError, ErrCodeScan, "scan failed", err)
	}
	span.End()

	result := s.scanResult(st)
	if err := f.Success(result); err != nil {
		return err
	}
	if len(result.Errors) > 0 {
		return WrapExitError(ExitFailure, "scan completed with errors", errScanFailed)
	}
	return nil
}

func (s *session) scanResult(st finder.Stats) ScanResult {
	var missing []compute.MissingDependency
	if m := s.repo.MissingDependencies(); len(m) > 0 {
		missing = m
	}
	return ScanResult{
		Root:    s.repo.Root(),
		Stats:   st,
		Objects: objectCounts(s.repo),
		Classes: len(s.repo.Classes(nil)),
		Errors:  s.knownErrors(),
		Missing: missing,
	}
}

// watch rescans until interrupted, reporting every pass.
func watch(ctx context.Context, cancel context.CancelFunc, s *session, f *OutputFormatter) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			s.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	s.logger.Info("watching repository", "root", s.repo.Root())
	err := s.finder.Watch(ctx, func(st finder.Stats, err error) {
		if err != nil {
			if ctx.Err() == nil {
				_ = f.Error(ErrCodeScan, "scan failed", err.Error())
			}
			return
		}
		_ = f.Success(s.scanResult(st))
	})
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeScan, "watch failed", err)
	}
	s.logger.Info("watch stopped")
	return nil
}
