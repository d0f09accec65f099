package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/clusteval/internal/config"
	"github.com/roach88/clusteval/internal/mirror"
)

// MirrorResult is the content of a mirror database.
type MirrorResult struct {
	Database    string              `json:"database"`
	Objects     []mirror.ObjectRow  `json:"objects"`
	Classes     []mirror.ClassRow   `json:"classes"`
	Transitions []mirror.Transition `json:"transitions,omitempty"`
}

func (r MirrorResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mirror %s: %d object(s), %d class(es)\n", r.Database, len(r.Objects), len(r.Classes))
	for _, o := range r.Objects {
		fmt.Fprintf(&b, "  %-20s %s\n", o.TypeName, o.Path)
	}
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "  %-20s %s\n", c.BaseKind, c.Name)
	}
	for _, t := range r.Transitions {
		fmt.Fprintf(&b, "  #%d %-16s %s\n", t.Seq, t.Op, t.Subject)
	}
	return b.String()
}

// MirrorOptions holds flags for the mirror command.
type MirrorOptions struct {
	*RootOptions
	Database   string
	Repository string
	Journal    bool
}

// NewMirrorCommand creates the mirror command.
func NewMirrorCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MirrorOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Show what the SQLite mirror recorded",
		Long: `Print the objects and classes recorded in a mirror database, and with
--journal every transition in the order it was applied.

Example:
  clusteval mirror --db ./clusteval.db --journal`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMirror(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "mirror database (default: from config)")
	cmd.Flags().StringVar(&opts.Repository, "repository", "", "only show rows of this repository root")
	cmd.Flags().BoolVar(&opts.Journal, "journal", false, "include the transition journal")

	return cmd
}

func runMirror(opts *MirrorOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmdContext(cmd)

	cfg, _, err := config.Load(opts.Config)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}
	path := opts.Database
	if path == "" {
		root, err := cfg.RootDir()
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeRepository, "failed to locate repository", err)
		}
		path = cfg.MirrorPath(root)
	}
	if _, err := os.Stat(path); err != nil {
		return f.Fail(ExitCommandError, ErrCodeMirror, "mirror database not found", err)
	}

	m, err := mirror.Open(path, mirror.WithLogger(newLogger(opts.RootOptions, cmd, cfg)))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeMirror, "failed to open mirror", err)
	}
	defer m.Close()

	result := MirrorResult{Database: path}
	if result.Objects, err = m.Objects(ctx, opts.Repository); err != nil {
		return f.Fail(ExitCommandError, ErrCodeMirror, "failed to read objects", err)
	}
	if result.Classes, err = m.Classes(ctx, opts.Repository); err != nil {
		return f.Fail(ExitCommandError, ErrCodeMirror, "failed to read classes", err)
	}
	if opts.Journal {
		if result.Transitions, err = m.Transitions(ctx, opts.Repository); err != nil {
			return f.Fail(ExitCommandError, ErrCodeMirror, "failed to read journal", err)
		}
	}
	return f.Success(result)
}
