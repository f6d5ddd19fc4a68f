// Package selector builds and initializes an exactly-one unit selector.
//
// A UnitSelector places N candidate units into N alternative branches, joins
// the branches in a Disjunction whose only invariant is that exactly one
// branch is active, builds one state-backed Port per declared inlet and
// outlet index, and wires each port to the candidates through branch-scoped
// Edges.
//
// LIFECYCLE:
//
// Build runs once. Every configuration check runs before anything is
// mutated, so a configuration error leaves the candidates where they were.
// Build then, in order:
//  1. moves each candidate into its branch (unit.Transfer)
//  2. builds inlet ports from the source template, outlet ports from the sink
//  3. wires inlet edges, then outlet edges
//  4. hands all edges to the Expander once, which turns them into equalities
//
// Initialize walks branches 1..N in order. For each branch it seeds the
// candidate's inlets from the ports (a value copy, not a constraint), calls the
// candidate's own Initialize with the caller's options, and locates the outlet
// edges for diagnostics. The first failure stops the walk.
//
// Port states are never written by Initialize.
//
// Everything runs on the caller's goroutine. There is no locking: each branch
// exclusively owns its candidate and edges, and ports are only read.
package selector
