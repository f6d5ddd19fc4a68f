// Package state provides the state containers that connection points expose.
//
// A Block is an ordered bundle of named state variables built by a property
// Package. A Point is a named attachment of a Block to its owner (a unit or a
// selector port). Propagate copies initial-guess values between points; it
// never creates a constraint.
//
// Blocks are not safe for concurrent mutation. The selector only mutates them
// from its single owning goroutine.
package state
