package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/unitsel/internal/model"
	"github.com/roach88/unitsel/internal/selector"
	"github.com/roach88/unitsel/internal/unit"
)

// InitOptions holds flags for the init command.
type InitOptions struct {
	*RootOptions
	Flowsheet string
	GuessFile string
	Database  string
	Options   map[string]string
}

// InitResult is the JSON payload of the init command.
type InitResult struct {
	Flowsheet string                `json:"flowsheet"`
	BuildID   string                `json:"build_id"`
	RunID     string                `json:"run_id"`
	Seeded    int                   `json:"seeded"`
	Database  string                `json:"database,omitempty"`
	Events    []selector.InitEvent  `json:"events"`
	Streams   []selector.StreamRow  `json:"streams"`
	Failure   *SelectorErrorDetails `json:"failure,omitempty"`
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "init <specs-dir>",
		Short: "Build and initialize a unit selector",
		Long: `Build the selector, seed port guesses and initialize every candidate in
branch order: inlet states are propagated into the candidate, the
candidate initializes itself, then its outlet edges are located.

The first failing candidate stops initialization. The per-port stream
table is printed either way.

Guess files are JSONC, keyed by connector name:

  {
    // feed
    "inlet_1": {"flow_mol": 100, "temperature": 350},
  }

With --db (default $` + EnvDatabase + `) the build and every step are
recorded and can be read back with "unitsel trace".

Examples:
  unitsel init ./specs --guess feed.jsonc
  unitsel init ./specs --flowsheet fan_out --db ./unitsel.db
  unitsel init ./specs --option outlvl=2 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Flowsheet, "flowsheet", "f", "", "flowsheet to initialize (required when the specs define several)")
	cmd.Flags().StringVar(&opts.GuessFile, "guess", "", "JSONC file of port guesses")
	cmd.Flags().StringVar(&opts.Database, "db", defaultDatabase(), "record into this SQLite database")
	cmd.Flags().StringToStringVar(&opts.Options, "option", nil, "initialization option forwarded to every candidate (key=value)")

	return cmd
}

func runInit(opts *InitOptions, specsDir string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var guesses model.Guesses
	if opts.GuessFile != "" {
		g, err := model.LoadGuesses(opts.GuessFile)
		if err != nil {
			_ = formatter.Error(ErrCodeGuessFile, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load guesses", err)
		}
		guesses = g
	}

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

	result := InitResult{
		Flowsheet: m.Spec.Name,
		BuildID:   rec.BuildID,
		Database:  opts.Database,
	}
	if len(guesses) > 0 {
		n, err := model.SeedGuesses(s.sel, guesses)
		if err != nil {
			return outputSelectorError(formatter, "guess", err)
		}
		result.Seeded = n
		formatter.VerboseLog("Seeded %d guess value(s)", n)
	}

	initErr := s.sel.Initialize(ctx, parseInitOptions(opts.Options))
	result.RunID = s.sel.RunID()
	result.Streams = s.sel.Report()
	if result.Events, err = s.trace(ctx); err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}
	if initErr != nil {
		details := selectorErrorDetails("init", initErr)
		result.Failure = &details
	}

	if err := outputInit(formatter, result, initErr); err != nil {
		return err
	}
	if err := s.sel.RecordErr(); err != nil {
		return WrapExitError(ExitCommandError, "recording failed", err)
	}
	return nil
}

// parseInitOptions converts --option values to ints or bools where they
// parse as such.
func parseInitOptions(raw map[string]string) unit.Options {
	if len(raw) == 0 {
		return nil
	}
	out := make(unit.Options, len(raw))
	for k, v := range raw {
		if n, err := strconv.Atoi(v); err == nil {
			out[k] = n
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			out[k] = b
			continue
		}
		out[k] = v
	}
	return out
}

func outputInit(formatter *OutputFormatter, result InitResult, initErr error) error {
	if formatter.IsJSON() {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if initErr != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: selectorErrorCode(initErr), Message: initErr.Error()}
		}
		if err := formatter.encode(resp); err != nil {
			return err
		}
	} else {
		writeInitText(formatter, result, initErr)
	}

	if initErr != nil {
		return WrapExitError(ExitFailure, "initialization failed", initErr)
	}
	return nil
}

func writeInitText(formatter *OutputFormatter, result InitResult, initErr error) {
	formatter.Printf("Flowsheet: %s\n", result.Flowsheet)
	formatter.Printf("Build: %s  Run: %s\n", result.BuildID, result.RunID)
	if result.Seeded > 0 {
		formatter.Printf("Seeded: %d value(s)\n", result.Seeded)
	}
	formatter.Printf("\n")

	for _, ev := range result.Events {
		writeEventText(formatter, ev)
	}
	if len(result.Events) > 0 {
		formatter.Printf("\n")
	}

	writeStreamTable(formatter, result.Streams)

	if initErr != nil {
		formatter.Printf("\n✗ Initialization failed: %v\n", initErr)
		return
	}
	if result.Database != "" {
		formatter.Printf("\n✓ Initialized; recorded to %s\n", result.Database)
		return
	}
	formatter.Printf("\n✓ Initialized\n")
}

// writeEventText prints one init event on a single line.
func writeEventText(formatter *OutputFormatter, ev selector.InitEvent) {
	var b strings.Builder
	fmt.Fprintf(&b, "  [%d] branch %d %-10s %s", ev.Seq, ev.Branch, ev.Step, ev.Unit)
	if ev.Edge != "" {
		fmt.Fprintf(&b, " via %s", ev.Edge)
	}
	if ev.Copied > 0 {
		fmt.Fprintf(&b, " (%d vars)", ev.Copied)
	}
	if ev.Error != "" {
		fmt.Fprintf(&b, " FAILED: %s", ev.Error)
	}
	formatter.Printf("%s\n", b.String())
}

// writeStreamTable prints one block per port with its variables.
func writeStreamTable(formatter *OutputFormatter, rows []selector.StreamRow) {
	formatter.Printf("Streams:\n")
	for _, row := range rows {
		marker := ""
		if !row.Exposed {
			marker = " (internal)"
		}
		formatter.Printf("  %s%s\n", row.Port, marker)

		for _, v := range row.Vars {
			fixed := ""
			if v.Fixed {
				fixed = " (fixed)"
			}
			formatter.Printf("    %-24s %s%s\n", v.Name, strconv.FormatFloat(v.Value, 'g', -1, 64), fixed)
		}
	}
}
