package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/clusteval/internal/compute"
	"github.com/roach88/clusteval/internal/object"
)

// ClassInfo describes one registered plugin class.
type ClassInfo struct {
	Kind       string   `json:"kind"`
	Name       string   `json:"name"`
	SimpleName string   `json:"simple_name"`
	Requires   []string `json:"requires,omitempty"`
	Source     string   `json:"source,omitempty"`
}

// ClassesResult lists classes and the ones refused for missing libraries.
type ClassesResult struct {
	Classes []ClassInfo                 `json:"classes"`
	Missing []compute.MissingDependency `json:"missing,omitempty"`
	Report  string                      `json:"report,omitempty"`
}

func (r ClassesResult) Text() string {
	var b strings.Builder
	for _, c := range r.Classes {
		fmt.Fprintf(&b, "%-28s %s", c.Kind, c.Name)
		if len(c.Requires) > 0 {
			fmt.Fprintf(&b, " (requires %s)", strings.Join(c.Requires, ", "))
		}
		b.WriteByte('\n')
	}
	if len(r.Classes) == 0 {
		b.WriteString("No classes registered\n")
	}
	if r.Report != "" {
		b.WriteString(r.Report)
		if !strings.HasSuffix(r.Report, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// ClassesOptions holds flags for the classes command.
type ClassesOptions struct {
	*RootOptions
	Kind string
}

// NewClassesCommand creates the classes command.
func NewClassesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classes [root]",
		Short: "List loaded plugin classes",
		Long: `Load the repository and list its plugin classes, followed by the
libraries that must be installed for the refused ones.

Example:
  clusteval classes --kind DataStatistic ./repository`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) == 1 {
				root = args[0]
			}
			return runClasses(opts, root, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Kind, "kind", "k", "", "only list classes of this kind")

	return cmd
}

func runClasses(opts *ClassesOptions, root string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	ctx := cmdContext(cmd)

	var base *object.Kind
	if opts.Kind != "" {
		kind, err := lookupKind(opts.Kind, object.Dynamic)
		if err != nil {
			return f.Fail(ExitCommandError, ErrCodeUsage, "invalid --kind", err)
		}
		base = kind
	}

	s, err := openSession(ctx, opts.RootOptions, cmd, f, sessionOptions{root: root})
	if err != nil {
		return err
	}
	defer s.close(ctx)

	ctx, span := s.startSpan(ctx, f, "clusteval.classes")
	defer span.End()
	if _, err := s.load(ctx); err != nil {
		return f.Fail(ExitCommandError, ErrCodeScan, "scan failed", err)
	}

	result := ClassesResult{Classes: []ClassInfo{}}
	for _, c := range s.repo.Classes(base) {
		result.Classes = append(result.Classes, ClassInfo{
			Kind:       c.Base.Name(),
			Name:       c.Name,
			SimpleName: c.SimpleName,
			Requires:   c.Requires,
			Source:     c.Source,
		})
	}
	if missing := s.repo.MissingDependencies(); len(missing) > 0 {
		result.Missing = missing
		result.Report = s.repo.MissingDependencyReport()
	}
	return f.Success(result)
}
