// Package ir provides the declarative representation of a flowsheet and its
// unit selector, plus the structural identity types shared by every other
// package.
//
// This package contains plain data types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Branch and port indices are 1-based everywhere
//   - Structural identity (EdgeID) is carried in data, never rebuilt from names
//   - Canonical JSON (RFC 8785 key order, NFC strings) is the only encoding
//     used for fingerprints
package ir
