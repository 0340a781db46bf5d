// Copyright 2026, the declstack authors. All rights reserved.

// Package contract provides small invariant-checking helpers used throughout
// declstack. It exists so internal invariants (never user input) fail loudly
// instead of propagating corrupted state.
package contract

import "fmt"

// Assertf panics with a formatted message if cond is false. It is reserved
// for invariants that indicate a bug in this module, never for validating
// user-supplied templates.
func Assertf(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(fmt.Sprintf("contract violation: "+format, args...))
	}
}

// Failf unconditionally panics with a formatted message.
func Failf(format string, args ...interface{}) {
	panic(fmt.Sprintf("contract violation: "+format, args...))
}

// IgnoreError is used to document that an error return is intentionally
// dropped, so the intent survives a linter pass.
func IgnoreError(_ error) {}
