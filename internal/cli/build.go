package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/unitsel/internal/ir"
	"github.com/roach88/unitsel/internal/selector"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	Flowsheet string
	Database  string
}

// BuildResult is the JSON payload of the build command.
type BuildResult struct {
	Flowsheet  string               `json:"flowsheet"`
	SpecHash   string               `json:"spec_hash"`
	Build      selector.BuildRecord `json:"build"`
	Equalities int                  `json:"equalities"`
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build <specs-dir>",
		Short: "Build a unit selector and show its structure",
		Long: `Compile a flowsheet, assemble its units and build the selector.

Prints one branch per candidate with its inlet and outlet edges, the
exposed connectors and the structure fingerprint. With --db the build is
also recorded.

Examples:
  unitsel build ./specs
  unitsel build ./specs --flowsheet fan_out --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Flowsheet, "flowsheet", "f", "", "flowsheet to build (required when the specs define several)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the build into this SQLite database")

	return cmd
}

func runBuild(opts *BuildOptions, specsDir string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	m, err := prepareModel(formatter, specsDir, opts.Flowsheet)
	if err != nil {
		return err
	}
	s, err := openSession(ctx, formatter, m, opts.Database)
	if err != nil {
		return err
	}
	defer s.Close()

	rec, err := s.build(ctx, formatter)
	if err != nil {
		return err
	}

	specHash, err := ir.SpecHash(m.Spec)
	if err != nil {
		return WrapExitError(ExitFailure, "hashing flowsheet spec", err)
	}

	result := BuildResult{
		Flowsheet:  m.Spec.Name,
		SpecHash:   specHash,
		Build:      *rec,
		Equalities: s.sel.Equalities(),
	}
	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	writeBuildText(formatter, result)
	return nil
}

// writeBuildText prints the branch table of a build.
func writeBuildText(formatter *OutputFormatter, result BuildResult) {
	rec := result.Build
	formatter.Printf("Flowsheet: %s\n", result.Flowsheet)
	formatter.Printf("Spec:      %s\n", result.SpecHash)
	formatter.Printf("Selector:  %s\n", rec.Selector)
	formatter.Printf("Build:     %s (seq %d)\n", rec.BuildID, rec.Seq)
	formatter.Printf("Fingerprint: %s\n", rec.Fingerprint)
	if len(rec.Connectors) == 0 {
		formatter.Printf("Connectors: (none)\n")
	} else {
		formatter.Printf("Connectors: %s\n", strings.Join(rec.Connectors, ", "))
	}
	formatter.Printf("\n")

	for _, b := range rec.Branches {
		formatter.Printf("Branch %d: %s\n", b.Index, b.Unit)
		for _, e := range b.Edges {
			formatter.Printf("  %-22s %s -> %s (%s)\n", e.Name, e.Source, e.Dest, plural(e.Equalities, "equality", "equalities"))
		}
	}
	formatter.Printf("\n✓ Built %d branch(es), %s\n", len(rec.Branches), plural(result.Equalities, "equality", "equalities"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
