package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Unit     string // optional - filter to one candidate
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID  string               `json:"run_id"`
	Build  selector.BuildRecord `json:"build"`
	Events []selector.InitEvent `json:"events"`
	Stats  TraceStats           `json:"stats"`
}

// TraceStats holds summary statistics for a run.
type TraceStats struct {
	TotalEvents int    `json:"total_events"`
	Propagated  int    `json:"propagated"`
	Initialized int    `json:"initialized"`
	Outlets     int    `json:"outlets"`
	Failed      bool   `json:"failed"`
	FailedUnit  string `json:"failed_unit,omitempty"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [run-id]",
		Short: "Show a recorded initialization run",
		Long: `Read a run back from the database: the build it ran against and every
propagate, initialize and outlet step in seq order.

Without a run ID, lists the recorded runs.

Examples:
  unitsel trace --db ./unitsel.db
  unitsel trace 0192f0c4-... --db ./unitsel.db
  unitsel trace 0192f0c4-... --db ./unitsel.db --unit hx2 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runTrace(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", defaultDatabase(), "path to SQLite database (default $"+EnvDatabase+")")
	cmd.Flags().StringVar(&opts.Unit, "unit", "", "only show events of this candidate")

	return cmd
}

func runTrace(opts *TraceOptions, runID string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Database == "" {
		_ = formatter.Error(ErrCodeDatabase, "no database: pass --db or set "+EnvDatabase, nil)
		return NewExitError(ExitCommandError, "--db is required")
	}
	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if runID == "" {
		return listRuns(ctx, formatter, st)
	}

	events, err := st.ReadRun(ctx, runID)
	if errors.Is(err, store.ErrNotFound) {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("run %q not found", runID), nil)
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	build, err := st.ReadBuild(ctx, events[0].BuildID)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read build", err)
	}

	result := TraceResult{
		RunID:  runID,
		Build:  build,
		Events: filterEvents(events, opts.Unit),
		Stats:  traceStats(events),
	}

	if formatter.IsJSON() {
		return formatter.encode(CLIResponse{Status: "ok", Data: result, RunID: runID})
	}
	writeTraceText(formatter, result)
	return nil
}

// filterEvents keeps the events of one candidate; an empty unit keeps all.
func filterEvents(events []selector.InitEvent, unitName string) []selector.InitEvent {
	if unitName == "" {
		return events
	}
	out := []selector.InitEvent{}
	for _, ev := range events {
		if ev.Unit == unitName {
			out = append(out, ev)
		}
	}
	return out
}

// traceStats counts the steps of a whole run, ignoring any filter.
func traceStats(events []selector.InitEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(events)}
	for _, ev := range events {
		switch ev.Step {
		case selector.StepPropagate:
			stats.Propagated++
		case selector.StepInitialize:
			stats.Initialized++
		case selector.StepOutlet:
			stats.Outlets++
		}
		if ev.Error != "" && !stats.Failed {
			stats.Failed = true
			stats.FailedUnit = ev.Unit
		}
	}
	return stats
}

func writeTraceText(formatter *OutputFormatter, result TraceResult) {
	b := result.Build
	formatter.Printf("Run:   %s\n", result.RunID)
	formatter.Printf("Build: %s (seq %d, selector %s)\n", b.BuildID, b.Seq, b.Selector)
	formatter.Printf("Fingerprint: %s\n", b.Fingerprint)
	for _, br := range b.Branches {
		formatter.Printf("  branch %d: %s (%d edges)\n", br.Index, br.Unit, len(br.Edges))
	}
	formatter.Printf("\nEvents:\n")
	if len(result.Events) == 0 {
		formatter.Printf("  (none)\n")
	}
	for _, ev := range result.Events {
		writeEventText(formatter, ev)
	}

	s := result.Stats
	formatter.Printf("\n%d event(s): %d propagate, %d initialize, %d outlet\n",
		s.TotalEvents, s.Propagated, s.Initialized, s.Outlets)
	if s.Failed {
		formatter.Printf("✗ Failed at %s\n", s.FailedUnit)
	} else {
		formatter.Printf("✓ Complete\n")
	}
}

func listRuns(ctx context.Context, formatter *OutputFormatter, st *store.Store) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	if formatter.IsJSON() {
		return formatter.Success(runs)
	}
	if len(runs) == 0 {
		formatter.Printf("No runs recorded.\n")
		return nil
	}
	for _, r := range runs {
		status := "ok"
		if r.Failed {
			status = "failed"
		}
		formatter.Printf("%s  build %s  %s  %d event(s)  %s\n", r.RunID, r.BuildID, r.Selector, r.Events, status)
	}
	return nil
}
