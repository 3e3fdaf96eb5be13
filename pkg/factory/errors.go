// Copyright 2025 Certen Protocol

package factory

import "errors"

// Sentinel errors for factory operations.
var (
	ErrAddressMismatch     = errors.New("factory: tokens not found at expected escrow address")
	ErrAlreadyInitialized  = errors.New("factory: escrow already exists at this address")
	ErrDstTooLate          = errors.New("factory: destination cancellation window is not safely ahead of source")
	ErrInsufficientDeposit = errors.New("factory: caller could not fund amount + safety deposit")
)
