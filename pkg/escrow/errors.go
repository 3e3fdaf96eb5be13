// Copyright 2025 Certen Protocol
//
// Package escrow errors.

package escrow

import "errors"

// Sentinel errors for escrow operations, grouped by taxonomy category.
var (
	// Authentication
	ErrImmutablesMismatch = errors.New("escrow: immutables mismatch")
	ErrCallerNotTaker     = errors.New("escrow: caller is not the taker")

	// State
	ErrNotActive = errors.New("escrow: not active")

	// Temporal errors are timelock.ErrTimeWindowNotOpen / ErrTimeWindowClosed, re-exported
	// by the caller as-is so the taxonomy stays in one place (pkg/timelock).

	// Cryptographic
	ErrBadSecret = errors.New("escrow: secret does not match hashlock")

	// Accounting / arithmetic
	ErrOverflow = errors.New("escrow: arithmetic overflow")

	// Rescue
	ErrRescueNotYetAvailable = errors.New("escrow: rescue delay has not elapsed")
)
