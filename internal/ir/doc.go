// Package ir provides the compiled intermediate representation for chord
// programs.
//
// This package contains value and document types only. All other internal
// packages import ir; ir imports nothing internal. This keeps the IR the
// foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Values form a sealed set (Null, String, Int, Float, Bool, Array, Object)
//   - Documents round-trip through JSON without loss
//   - All JSON tags use snake_case
//   - Hashes use RFC 8785 canonical JSON with domain separation
package ir
