package compiler

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/unitsel/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedIRType = "E200" // unsupported IR type for validation

	// Property package errors (E201-E204)
	ErrPackageUnknown      = "E201" // only the generic package is built in
	ErrPackageNoComponents = "E202" // at least one component required
	ErrDuplicateComponent  = "E203" // duplicate component or phase

	// Unit errors (E205-E209)
	ErrInvalidUnitName = "E205" // unit name is not an identifier
	ErrUnknownUnitKind = "E206" // kind not buildable
	ErrUnitNoPoints    = "E207" // unit needs at least one inlet and one outlet
	ErrDuplicatePoint  = "E208" // duplicate point name on a unit

	// Selector errors (E210-E229)
	ErrNoCandidates       = "E210" // unit_disjunct is empty
	ErrUnknownUnit        = "E211" // reference to an undeclared unit
	ErrDuplicateCandidate = "E212" // unit listed twice in unit_disjunct
	ErrPortIndex          = "E213" // port indices not contiguous from 1
	ErrMappingLength      = "E214" // fan-out list neither 1 nor N long
	ErrBranchOutOfRange   = "E215" // single-element list at index > N
	ErrUnknownPoint       = "E216" // point missing or on the wrong side
	ErrForeignPoint       = "E217" // point does not belong to the branch's unit
	ErrUnmappedBranch     = "E218" // candidate with no inlet or outlet edge
	ErrUnsupportedFlag    = "E219" // dynamic or has_holdup set
	ErrMixedStateRef      = "E220" // mixed_state_block does not name a point
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates a compiled flowsheet against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.FlowsheetSpec:
		return validateFlowsheet(spec)
	case ir.FlowsheetSpec:
		return validateFlowsheet(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// unitNamePattern matches identifiers; dots would make point references
// ambiguous.
var unitNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_\-]*$`)

func validateFlowsheet(spec *ir.FlowsheetSpec) []ValidationError {
	var errs []ValidationError
	errs = append(errs, validatePackage(&spec.PropertyPackage)...)

	units := make(map[string]*ir.UnitSpec, len(spec.Units))
	for i := range spec.Units {
		u := &spec.Units[i]
		units[u.Name] = u
		errs = append(errs, validateUnit(u)...)
	}

	errs = append(errs, validateSelector(&spec.Selector, units)...)
	return errs
}

func validatePackage(pkg *ir.PackageSpec) []ValidationError {
	var errs []ValidationError

	// E201: only the generic package can be built
	if pkg.Name != "generic" {
		errs = append(errs, ValidationError{
			Field:   "property_package.name",
			Message: fmt.Sprintf("unknown property package %q, only \"generic\" is available", pkg.Name),
			Code:    ErrPackageUnknown,
		})
	}

	// E202: at least one component
	if len(pkg.Components) == 0 {
		errs = append(errs, ValidationError{
			Field:   "property_package.components",
			Message: "at least one component is required",
			Code:    ErrPackageNoComponents,
		})
	}

	// E203: duplicates
	errs = append(errs, duplicates("property_package.components", "component", pkg.Components, ErrDuplicateComponent)...)
	errs = append(errs, duplicates("property_package.phases", "phase", pkg.Phases, ErrDuplicateComponent)...)
	return errs
}

func validateUnit(u *ir.UnitSpec) []ValidationError {
	var errs []ValidationError
	field := "units." + u.Name

	// E205: unit name must be an identifier
	if !unitNamePattern.MatchString(u.Name) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("invalid unit name %q", u.Name),
			Code:    ErrInvalidUnitName,
		})
	}

	// E206: kind must be buildable
	if !ir.ValidUnitKinds[u.Kind] {
		errs = append(errs, ValidationError{
			Field:   field + ".kind",
			Message: fmt.Sprintf("unknown unit kind %q", u.Kind),
			Code:    ErrUnknownUnitKind,
		})
	}

	// E207: at least one inlet and one outlet
	if len(u.Inlets) == 0 || len(u.Outlets) == 0 {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "at least one inlet and one outlet are required",
			Code:    ErrUnitNoPoints,
		})
	}

	// E208: point names unique across both sides
	errs = append(errs, duplicates(field, "point", slices.Concat(u.Inlets, u.Outlets), ErrDuplicatePoint)...)
	return errs
}

func validateSelector(sel *ir.SelectorSpec, units map[string]*ir.UnitSpec) []ValidationError {
	var errs []ValidationError

	// E219: steady-state only
	if sel.Dynamic {
		errs = append(errs, ValidationError{
			Field:   "selector.dynamic",
			Message: "dynamic selectors are not supported",
			Code:    ErrUnsupportedFlag,
		})
	}
	if sel.HasHoldup {
		errs = append(errs, ValidationError{
			Field:   "selector.has_holdup",
			Message: "holdup is not supported",
			Code:    ErrUnsupportedFlag,
		})
	}

	// E210: at least one candidate
	if len(sel.Units) == 0 {
		errs = append(errs, ValidationError{
			Field:   "selector.unit_disjunct",
			Message: "at least one candidate unit is required",
			Code:    ErrNoCandidates,
		})
	}

	// E211/E212: candidates must exist and be unique
	branchOf := make(map[string]int, len(sel.Units))
	for i, name := range sel.Units {
		field := fmt.Sprintf("selector.unit_disjunct[%d]", i)
		if _, ok := units[name]; !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown unit %q", name),
				Code:    ErrUnknownUnit,
			})
		}
		if _, dup := branchOf[name]; dup {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unit %q is listed more than once", name),
				Code:    ErrDuplicateCandidate,
			})
			continue
		}
		branchOf[name] = i + 1
	}

	for _, ref := range []struct{ field, name string }{
		{"selector.unit_source", sel.Source},
		{"selector.unit_sink", sel.Sink},
	} {
		if _, ok := units[ref.name]; !ok {
			errs = append(errs, ValidationError{
				Field:   ref.field,
				Message: fmt.Sprintf("unknown unit %q", ref.name),
				Code:    ErrUnknownUnit,
			})
		}
	}

	errs = append(errs, validatePortMap("selector.unit_disjunct_inlet", ir.Inlet, sel.Inlets, sel.Units, units)...)
	errs = append(errs, validatePortMap("selector.unit_disjunct_outlet", ir.Outlet, sel.Outlets, sel.Units, units)...)

	// E220: mixed_state_block must reference a declared point
	if sel.MixedState != "" {
		if err := checkMixedState(sel.MixedState, units); err != "" {
			errs = append(errs, ValidationError{
				Field:   "selector.mixed_state_block",
				Message: err,
				Code:    ErrMixedStateRef,
			})
		}
	}
	return errs
}

func validatePortMap(field string, dir ir.Direction, m map[int][]ir.PointRef, candidates []string, units map[string]*ir.UnitSpec) []ValidationError {
	var errs []ValidationError
	n := len(candidates)

	indices := make([]int, 0, len(m))
	for k := range m {
		indices = append(indices, k)
	}
	slices.Sort(indices)

	// E213: contiguous from 1
	for i, k := range indices {
		if k != i+1 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("port indices must be contiguous starting at 1, got %v", indices),
				Code:    ErrPortIndex,
			})
			break
		}
	}

	covered := make(map[int]bool, n)
	for _, k := range indices {
		list := m[k]
		pfield := fmt.Sprintf("%s.%d", field, k)

		var targets []int
		switch {
		case len(list) == 1:
			// E215: single element targets branch k
			if k > n {
				errs = append(errs, ValidationError{
					Field:   pfield,
					Message: fmt.Sprintf("single-element list targets branch %d but there are only %d candidates", k, n),
					Code:    ErrBranchOutOfRange,
				})
				continue
			}
			targets = []int{k}
		case len(list) == n:
			for i := range list {
				targets = append(targets, i+1)
			}
		default:
			// E214
			errs = append(errs, ValidationError{
				Field:   pfield,
				Message: fmt.Sprintf("list has %d points; want 1 or %d", len(list), n),
				Code:    ErrMappingLength,
			})
			continue
		}

		for i, ref := range list {
			branch := targets[i]
			covered[branch] = true
			efield := fmt.Sprintf("%s[%d]", pfield, i)

			// E216: point must exist on the right side of its unit
			u, ok := units[ref.Unit]
			if !ok || !slices.Contains(pointsOf(u, dir), ref.Point) {
				errs = append(errs, ValidationError{
					Field:   efield,
					Message: fmt.Sprintf("%s is not a declared %s", ref, dir),
					Code:    ErrUnknownPoint,
				})
				continue
			}
			// E217: and belong to the branch's candidate
			if want := candidates[branch-1]; ref.Unit != want {
				errs = append(errs, ValidationError{
					Field:   efield,
					Message: fmt.Sprintf("%s is wired into branch %d, which holds %s", ref, branch, want),
					Code:    ErrForeignPoint,
				})
			}
		}
	}

	// E218: every branch needs an edge in this direction
	for b := 1; b <= n; b++ {
		if !covered[b] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("no %s mapping reaches candidate %s (branch %d)", dir, candidates[b-1], b),
				Code:    ErrUnmappedBranch,
			})
		}
	}
	return errs
}

func pointsOf(u *ir.UnitSpec, dir ir.Direction) []string {
	if dir == ir.Outlet {
		return u.Outlets
	}
	return u.Inlets
}

func checkMixedState(s string, units map[string]*ir.UnitSpec) string {
	ref, err := ir.ParsePointRef(s)
	if err != nil {
		return err.Error()
	}
	u, ok := units[ref.Unit]
	if !ok {
		return fmt.Sprintf("unknown unit %q", ref.Unit)
	}
	if !slices.Contains(u.Inlets, ref.Point) && !slices.Contains(u.Outlets, ref.Point) {
		return fmt.Sprintf("unit %s has no point %q", ref.Unit, ref.Point)
	}
	return ""
}

func duplicates(field, what string, names []string, code string) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		key := strings.TrimSpace(n)
		if seen[key] {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("duplicate %s %q", what, n),
				Code:    code,
			})
		}
		seen[key] = true
	}
	return errs
}
