package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/clusteval/internal/finder"
	"github.com/roach88/clusteval/internal/object"
	"github.com/roach88/clusteval/internal/repository"
)

// ObjectInfo describes a registered object.
type ObjectInfo struct {
	Kind       string `json:"kind"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Repository string `json:"repository"`
	ChangeDate int64  `json:"change_date"`
}

func objectInfo(obj object.Object) ObjectInfo {
	return ObjectInfo{
		Kind:       obj.Kind().Name(),
		Type:       obj.TypeName(),
		Name:       obj.Name(),
		Path:       obj.Path(),
		Repository: obj.Repository(),
		ChangeDate: int64(obj.ChangeDate()),
	}
}

// ResolveResult names the repository responsible for a path and the
// object registered there, if any.
type ResolveResult struct {
	Path       string      `json:"path"`
	Repository string      `json:"repository"`
	Parent     string      `json:"parent,omitempty"`
	Object     *ObjectInfo `json:"object,omitempty"`
}

func (r ResolveResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.Path)
	fmt.Fprintf(&b, "  repository %s\n", r.Repository)
	if r.Parent != "" {
		fmt.Fprintf(&b, "  parent     %s\n", r.Parent)
	}
	if r.Object != nil {
		fmt.Fprintf(&b, "  %s %s (change date %d)\n", r.Object.Type, r.Object.Name, r.Object.ChangeDate)
	}
	return b.String()
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Root string
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <path>",
		Short: "Show which repository and object own a path",
		Long: `Load the repository and report the object registered at path.

Paths inside a run result are resolved in that run result's own
repository, which is loaded on demand.

Example:
  clusteval resolve --root ./repository ./repository/data/datasets/iris.txt`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Root, "root", "", "repository root (default: from config)")

	return cmd
}

func runResolve(opts *ResolveOptions, target string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmdContext(cmd)

	s, err := openSession(ctx, opts.RootOptions, cmd, f, sessionOptions{root: opts.Root})
	if err != nil {
		return err
	}
	defer s.close(ctx)

	ctx, span := s.startSpan(ctx, f, "clusteval.resolve")
	defer span.End()
	if _, err := s.load(ctx); err != nil {
		return f.Fail(ExitCommandError, ErrCodeScan, "scan failed", err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeUsage, "invalid path", err)
	}
	path := object.CanonicalPath(abs)

	if err := s.openRunResult(cmd, path); err != nil {
		return f.Fail(ExitCommandError, ErrCodeRepository, "failed to open run result", err)
	}

	repo, err := s.env.Directory.Resolve(path)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeNotFound, "no repository contains "+path, err)
	}
	result := ResolveResult{Path: path, Repository: repo.Root(), Parent: repo.ParentRoot()}
	if obj := repo.ObjectAt(path); obj != nil {
		info := objectInfo(obj)
		result.Object = &info
	}
	if err := f.Success(result); err != nil {
		return err
	}
	if result.Object == nil {
		return NewExitError(ExitFailure, "nothing registered at "+path)
	}
	return nil
}

// openRunResult loads the run result containing path as a sub-repository.
// Paths outside every run result are left alone.
func (s *session) openRunResult(cmd *cobra.Command, path string) error {
	for _, rr := range s.repo.All(object.RunResult) {
		if rr.Path() == path || !object.Within(path, rr.Path()) {
			continue
		}
		child, err := repository.NewRunResult(s.env, s.repo, rr.Path(), repository.WithLogger(s.logger))
		if err != nil {
			return err
		}
		_, err = finder.New(child, finder.DefaultConfig(), s.logger).Scan(cmdContext(cmd))
		return err
	}
	return nil
}
