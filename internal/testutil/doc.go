// Package testutil provides deterministic helpers for tests: a call log
// shared by fake candidates and a sequential ID generator.
//
// Nothing here imports the selector package, so selector tests can use it.
package testutil
