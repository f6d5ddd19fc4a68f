package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/unitsel/internal/ir"
)

// CompileFlowsheet parses a CUE value into a FlowsheetSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the flowsheet struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`flowsheet: fs1: { ... }`)
//	spec, err := CompileFlowsheet(v.LookupPath(cue.ParsePath("flowsheet.fs1")))
func CompileFlowsheet(v cue.Value) (*ir.FlowsheetSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.FlowsheetSpec{}
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	pkgVal := v.LookupPath(cue.ParsePath("property_package"))
	if !pkgVal.Exists() {
		return nil, &CompileError{Field: "property_package", Message: "property_package is required", Pos: v.Pos()}
	}
	pkg, err := parsePackage(pkgVal)
	if err != nil {
		return nil, err
	}
	spec.PropertyPackage = pkg

	spec.Units, err = parseUnits(v)
	if err != nil {
		return nil, err
	}

	selVal := v.LookupPath(cue.ParsePath("selector"))
	if !selVal.Exists() {
		return nil, &CompileError{Field: "selector", Message: "selector is required", Pos: v.Pos()}
	}
	spec.Selector, err = parseSelector(selVal)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

func parsePackage(v cue.Value) (ir.PackageSpec, error) {
	var pkg ir.PackageSpec
	var err error
	if pkg.Name, err = optionalString(v, "name", "generic"); err != nil {
		return pkg, err
	}
	if pkg.Components, err = stringList(v, "components"); err != nil {
		return pkg, err
	}
	if pkg.Phases, err = stringList(v, "phases"); err != nil {
		return pkg, err
	}
	return pkg, nil
}

// parseUnits reads units in declaration order.
func parseUnits(v cue.Value) ([]ir.UnitSpec, error) {
	unitsVal := v.LookupPath(cue.ParsePath("units"))
	if !unitsVal.Exists() {
		return nil, nil
	}
	iter, err := unitsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var units []ir.UnitSpec
	for iter.Next() {
		uv := iter.Value()
		u := ir.UnitSpec{Name: iter.Label()}

		kindVal := uv.LookupPath(cue.ParsePath("kind"))
		if !kindVal.Exists() {
			return nil, &CompileError{
				Field:   fmt.Sprintf("units.%s.kind", u.Name),
				Message: "kind is required",
				Pos:     uv.Pos(),
			}
		}
		if u.Kind, err = kindVal.String(); err != nil {
			return nil, formatCUEError(err)
		}
		if u.Inlets, err = stringList(uv, "inlets"); err != nil {
			return nil, err
		}
		if u.Outlets, err = stringList(uv, "outlets"); err != nil {
			return nil, err
		}
		if u.Fail, err = optionalBool(uv, "fail", false); err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func parseSelector(v cue.Value) (ir.SelectorSpec, error) {
	var sel ir.SelectorSpec
	var err error

	if sel.Units, err = stringList(v, "unit_disjunct"); err != nil {
		return sel, err
	}
	if sel.Source, err = optionalString(v, "unit_source", ""); err != nil {
		return sel, err
	}
	if sel.Sink, err = optionalString(v, "unit_sink", ""); err != nil {
		return sel, err
	}
	if sel.Inlets, err = parsePortMap(v, "unit_disjunct_inlet"); err != nil {
		return sel, err
	}
	if sel.Outlets, err = parsePortMap(v, "unit_disjunct_outlet"); err != nil {
		return sel, err
	}
	if sel.ConstructPorts, err = optionalBool(v, "construct_ports", true); err != nil {
		return sel, err
	}
	if sel.MixedState, err = optionalString(v, "mixed_state_block", ""); err != nil {
		return sel, err
	}
	if sel.Dynamic, err = optionalBool(v, "dynamic", false); err != nil {
		return sel, err
	}
	if sel.HasHoldup, err = optionalBool(v, "has_holdup", false); err != nil {
		return sel, err
	}
	return sel, nil
}

// parsePortMap reads {"1": ["hx1.inlet", ...], ...}.
func parsePortMap(v cue.Value, field string) (map[int][]ir.PointRef, error) {
	mv := v.LookupPath(cue.ParsePath(field))
	if !mv.Exists() {
		return nil, nil
	}
	iter, err := mv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	out := make(map[int][]ir.PointRef)
	for iter.Next() {
		label := iter.Label()
		k, err := strconv.Atoi(label)
		if err != nil || k < 1 {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.%s", field, label),
				Message: "port index must be a positive integer",
				Pos:     iter.Value().Pos(),
			}
		}
		if _, dup := out[k]; dup {
			return nil, &CompileError{
				Field:   fmt.Sprintf("%s.%s", field, label),
				Message: fmt.Sprintf("port index %d declared more than once", k),
				Pos:     iter.Value().Pos(),
			}
		}
		list, err := iter.Value().List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		refs := []ir.PointRef{}
		for list.Next() {
			s, err := list.Value().String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			ref, err := ir.ParsePointRef(s)
			if err != nil {
				return nil, &CompileError{
					Field:   fmt.Sprintf("%s.%s", field, label),
					Message: err.Error(),
					Pos:     list.Value().Pos(),
				}
			}
			refs = append(refs, ref)
		}
		out[k] = refs
	}
	return out, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	lv := v.LookupPath(cue.ParsePath(field))
	if !lv.Exists() {
		return nil, nil
	}
	iter, err := lv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

func optionalString(v cue.Value, field, def string) (string, error) {
	sv := v.LookupPath(cue.ParsePath(field))
	if !sv.Exists() {
		return def, nil
	}
	s, err := sv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, field string, def bool) (bool, error) {
	bv := v.LookupPath(cue.ParsePath(field))
	if !bv.Exists() {
		return def, nil
	}
	b, err := bv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
