package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/unitsel/internal/compiler"
	"github.com/roach88/unitsel/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the flowsheets loaded from a directory.
type LoadResult struct {
	Flowsheets []*ir.FlowsheetSpec // in declaration order
	CUEValue   cue.Value           // The raw CUE value for additional processing
	FileCount  int                 // Number of CUE files found
}

// Flowsheet returns the named flowsheet. An empty name selects the only
// flowsheet and is an error when there are several.
func (r *LoadResult) Flowsheet(name string) (*ir.FlowsheetSpec, error) {
	if name == "" {
		if len(r.Flowsheets) == 1 {
			return r.Flowsheets[0], nil
		}
		names := make([]string, len(r.Flowsheets))
		for i, fs := range r.Flowsheets {
			names[i] = fs.Name
		}
		return nil, &LoadError{
			Code:    ErrCodeAmbiguous,
			Message: fmt.Sprintf("specs define %d flowsheets (%s); pick one with --flowsheet", len(names), strings.Join(names, ", ")),
		}
	}
	for _, fs := range r.Flowsheets {
		if fs.Name == name {
			return fs, nil
		}
	}
	return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("flowsheet %q not found", name)}
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads CUE files from a directory and compiles every
// flowsheet.<name> in it.
// If mode is LoadModeFailFast, returns on first error.
// If mode is LoadModeCollectAll, collects all errors.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	var errs []error

	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	ctx := cuecontext.New()
	cfg := &load.Config{Dir: dir}
	instances := load.Instances([]string{"."}, cfg)
	if len(instances) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}}
	}

	inst := instances[0]
	if inst.Err != nil {
		return nil, []error{&LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, []error{&LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}}
	}

	result := &LoadResult{
		CUEValue:  value,
		FileCount: len(cueFiles),
	}

	fsVal := value.LookupPath(cue.ParsePath("flowsheet"))
	if fsVal.Exists() {
		iter, iterErr := fsVal.Fields()
		if iterErr != nil {
			errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("iterating flowsheets: %v", iterErr)})
			if mode == LoadModeFailFast {
				return result, errs
			}
		} else {
			for iter.Next() {
				spec, compileErr := compiler.CompileFlowsheet(iter.Value())
				if compileErr != nil {
					errs = append(errs, convertCompileError(compileErr, "flowsheet."+iter.Label()))
					if mode == LoadModeFailFast {
						return result, errs
					}
					continue
				}
				result.Flowsheets = append(result.Flowsheets, spec)
			}
		}
	}

	if len(result.Flowsheets) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no flowsheets found in specs"})
	}

	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s: %s", context, compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeScanError      = "E002" // Directory scan error
	ErrCodeNoFiles        = "E003" // No CUE files found
	ErrCodeLoadFailed     = "E004" // CUE load failed
	ErrCodeNotFound       = "E005" // Path or flowsheet not found
	ErrCodeBuildFailed    = "E006" // CUE build failed
	ErrCodeDatabase       = "E007" // Database open or query failed
	ErrCodeAmbiguous      = "E008" // Several flowsheets and none selected
	ErrCodeGuessFile      = "E009" // Guess file unreadable
	ErrCodeScenarioFailed = "E010" // One or more scenarios failed

	// Flowsheet shape errors
	ErrCodePackageShape  = "E101" // property_package malformed
	ErrCodeUnitShape     = "E102" // units malformed
	ErrCodeSelectorShape = "E103" // selector malformed
	ErrCodeCUE           = "E104" // CUE evaluation error inside a flowsheet
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	root, _, _ := strings.Cut(field, ".")
	switch root {
	case "property_package":
		return ErrCodePackageShape
	case "units":
		return ErrCodeUnitShape
	case "selector", "unit_disjunct_inlet", "unit_disjunct_outlet":
		return ErrCodeSelectorShape
	case "cue":
		return ErrCodeCUE
	default:
		return ErrCodeGeneric
	}
}
