package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// InitResult describes a freshly laid out repository.
type InitResult struct {
	Root        string   `json:"root"`
	Directories []string `json:"directories"`
}

func (r InitResult) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "✓ Initialized repository at %s\n", r.Root)
	for _, d := range r.Directories {
		fmt.Fprintf(&b, "  %s\n", d)
	}
	return b.String()
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [root]",
		Short: "Create the repository directory layout",
		Long: `Create every base directory of a clusteval repository under root.

Existing directories and files are left untouched.

Example:
  clusteval init ./repository`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var root string
			if len(args) == 1 {
				root = args[0]
			}
			return runInit(rootOpts, root, cmd)
		},
	}
	return cmd
}

func runInit(opts *RootOptions, root string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	ctx := cmdContext(cmd)

	s, err := openSession(ctx, opts, cmd, f, sessionOptions{root: root})
	if err != nil {
		return err
	}
	defer s.close(ctx)

	result := InitResult{Root: s.repo.Root()}
	seen := make(map[string]bool)
	for _, kind := range s.repo.Kinds() {
		dir := s.repo.BasePath(kind)
		if dir != "" {
			seen[dir] = true
		}
	}
	result.Directories = sortedKeys(seen)
	return f.Success(result)
}
