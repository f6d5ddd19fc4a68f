// Package unit defines candidate processing units and who owns them.
//
// A Candidate is opaque to the selector: it has a stable name, named inlet and
// outlet connection points, and its own Initialize routine. An Owner holds
// candidates by name. Transfer moves a candidate from one owner to another so
// that it is never held by both.
package unit
