package harness

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/roach88/unitsel/internal/selector"
)

// valueTolerance is the absolute tolerance of point_value comparisons.
const valueTolerance = 1e-9

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string               // Assertion type for categorization
	Expected string               // Human-readable expected outcome
	Actual   string               // Human-readable actual outcome
	Trace    []selector.InitEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] branch %d %s %s", ev.Seq, ev.Branch, ev.Unit, ev.Step)
			if ev.Edge != "" {
				fmt.Fprintf(&buf, " %s", ev.Edge)
			}
			if ev.Error != "" {
				fmt.Fprintf(&buf, " error=%q", ev.Error)
			}
			buf.WriteString("\n")
		}
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %s", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion) error {
	switch a.Type {
	case AssertInitOrder:
		return assertInitOrder(result, a)
	case AssertConnectors:
		return assertConnectors(result, a)
	case AssertEdgeCount:
		return assertEdgeCount(result, a)
	case AssertTraceContains:
		return assertTraceContains(result.Trace, a)
	case AssertTraceCount:
		return assertTraceCount(result.Trace, a)
	case AssertPointValue:
		return assertPointValue(result, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertInitOrder checks that candidates were initialized exactly in the
// given order.
func assertInitOrder(result *Result, a Assertion) error {
	got := result.InitOrder()
	if slices.Equal(got, a.Units) {
		return nil
	}
	return &AssertionError{
		Type:     AssertInitOrder,
		Expected: fmt.Sprintf("%v", a.Units),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    result.Trace,
	}
}

func assertConnectors(result *Result, a Assertion) error {
	var got []string
	if result.Build != nil {
		got = result.Build.Connectors
	}
	if len(got) == 0 && len(a.Names) == 0 {
		return nil
	}
	if slices.Equal(got, a.Names) {
		return nil
	}
	return &AssertionError{
		Type:     AssertConnectors,
		Expected: fmt.Sprintf("%v", a.Names),
		Actual:   fmt.Sprintf("%v", got),
	}
}

func assertEdgeCount(result *Result, a Assertion) error {
	if n := result.EdgeCount(); n != a.Count {
		return &AssertionError{
			Type:     AssertEdgeCount,
			Expected: fmt.Sprintf("%d edges", a.Count),
			Actual:   fmt.Sprintf("%d edges", n),
		}
	}
	return nil
}

// matchEvent reports whether ev matches the non-empty filters of a.
func matchEvent(ev selector.InitEvent, a Assertion) bool {
	if string(ev.Step) != a.Step {
		return false
	}
	if a.Unit != "" && ev.Unit != a.Unit {
		return false
	}
	if a.Edge != "" && ev.Edge != a.Edge {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	parts := []string{"step=" + a.Step}
	if a.Unit != "" {
		parts = append(parts, "unit="+a.Unit)
	}
	if a.Edge != "" {
		parts = append(parts, "edge="+a.Edge)
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that at least one event matches.
func assertTraceContains(trace []selector.InitEvent, a Assertion) error {
	for _, ev := range trace {
		if matchEvent(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describeFilter(a),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceCount checks the exact number of matching events.
func assertTraceCount(trace []selector.InitEvent, a Assertion) error {
	n := 0
	for _, ev := range trace {
		if matchEvent(ev, a) {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d events with %s", a.Count, describeFilter(a)),
		Actual:   fmt.Sprintf("%d events", n),
		Trace:    trace,
	}
}

// assertPointValue checks one variable of a unit point or port.
func assertPointValue(result *Result, a Assertion) error {
	vals, ok := result.Points[a.Point]
	if !ok {
		return &AssertionError{
			Type:     AssertPointValue,
			Expected: fmt.Sprintf("point %s", a.Point),
			Actual:   "no such point",
		}
	}
	got, ok := vals[a.Var]
	if !ok {
		return &AssertionError{
			Type:     AssertPointValue,
			Expected: fmt.Sprintf("%s.%s", a.Point, a.Var),
			Actual:   "no such variable",
		}
	}
	if math.Abs(got-a.Value) > valueTolerance {
		return &AssertionError{
			Type:     AssertPointValue,
			Expected: fmt.Sprintf("%s %s = %g", a.Point, a.Var, a.Value),
			Actual:   fmt.Sprintf("%g", got),
		}
	}
	return nil
}
