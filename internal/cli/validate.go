package cli

import (
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/unitsel/internal/compiler"
	"github.com/roach88/unitsel/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Flowsheets []string                   `json:"flowsheets"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate flowsheet specs",
		Long: `Compile every flowsheet in a CUE specs directory and check it against the
schema rules: property package, units, and selector mappings.

Nothing is built. All errors are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		return outputLoadError(formatter, loadErrors[0])
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, loadValidationError(err))
	}

	names := make([]string, 0, len(loadResult.Flowsheets))
	for _, spec := range loadResult.Flowsheets {
		formatter.VerboseLog("Validating flowsheet: %s", spec.Name)
		names = append(names, spec.Name)
		validationErrors = append(validationErrors, validateFlowsheet(spec)...)
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	if formatter.IsJSON() {
		return formatter.Success(ValidationResult{Valid: true, Flowsheets: names})
	}
	fmt.Fprintf(formatter.Writer, "✓ All specs valid (%d flowsheet(s))\n", len(names))
	return nil
}

// validateFlowsheet runs schema validation and qualifies each field with the
// flowsheet name.
func validateFlowsheet(spec *ir.FlowsheetSpec) []compiler.ValidationError {
	errs := compiler.Validate(spec)
	for i := range errs {
		errs[i].Field = "flowsheet." + spec.Name + "." + errs[i].Field
	}
	return errs
}

// loadValidationError turns a loader error into a validation error.
func loadValidationError(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return compiler.ValidationError{
			Field:   "load",
			Message: loadErr.Message,
			Code:    loadErr.Code,
			Line:    lineOf(loadErr.Pos),
		}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// lineOf extracts the line number from a CUE position.
func lineOf(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputLoadError reports a loader error that prevented any compilation.
// These are command errors (exit code 2).
func outputLoadError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	message := err.Error()
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
		message = loadErr.Message
	}
	_ = formatter.Error(code, message, nil)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
// Validation failures are exit code 1.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.IsJSON() {
		err := formatter.encode(CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		})
		if err != nil {
			return err
		}
		return exitErr
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	return exitErr
}

// ValidateSpecsDir validates all flowsheets in a directory.
// This is a helper function for external callers.
func ValidateSpecsDir(specsDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil {
		return nil, loadErrors[0]
	}

	var errs []compiler.ValidationError
	for _, err := range loadErrors {
		errs = append(errs, loadValidationError(err))
	}
	for _, spec := range loadResult.Flowsheets {
		errs = append(errs, validateFlowsheet(spec)...)
	}
	return errs, nil
}
