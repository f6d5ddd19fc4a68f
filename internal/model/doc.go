// Package model turns a compiled flowsheet into runtime objects: the
// property package, the candidate units owned by a flowsheet, and the
// selector configuration that references their connection points.
//
// It also seeds selector port states with initial guesses read from a JSONC
// document before initialization.
package model
