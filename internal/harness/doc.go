// Package harness runs declarative selector scenarios.
//
// A scenario names a CUE flowsheet, optional port guesses and init options,
// the expected outcome and assertions over the recorded trace. Each run uses
// a fresh in-memory store, fixed build and run IDs and a logical clock
// starting at zero, so the same scenario always produces the same trace.
//
// # Scenario Format
//
//	name: fan_out_two_exchangers
//	description: "Both exchangers share one feed port"
//	spec: testdata/flowsheets/exchangers.cue
//	flowsheet: fan_out
//	guesses:
//	  inlet_1: { flow_mol: 100, temperature: 350 }
//	options: { outlvl: 0 }
//	expect:            # omit when the run must succeed
//	  stage: init
//	  code: E330
//	assertions:
//	  - type: init_order
//	    units: [hx1, hx2]
//	  - type: trace_contains
//	    step: propagate
//	    edge: inlet_to_unit_arc_1
//	  - type: point_value
//	    point: hx1.outlet
//	    var: flow_mol
//	    value: 100
//
// # Assertion Types
//
//   - init_order: candidates whose Initialize was called, in order
//   - connectors: exposed connector names, inlets first
//   - edge_count: total edges in the recorded build
//   - trace_contains: at least one event matches step (and unit, edge)
//   - trace_count: exact number of matching events
//   - point_value: one variable of a unit point or port after the run
//
// # Golden Files
//
// RunWithGolden compares the build and trace in canonical JSON against
// testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
