// Copyright 2025 Certen Protocol
//
// Package assets defines the abstract fungible-asset capability the escrow
// core transfers value through. No specific
// token-standard detail (ERC-20 calldata, decimals, allowances, ...) leaks
// into the core — callers get exactly transfer and balance_of.
package assets

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/immutables"
)

// ErrInsufficientBalance is returned by a Ledger implementation when a
// transfer would overdraw the source address.
var ErrInsufficientBalance = errors.New("assets: insufficient balance")

// NativeGas is the reserved TokenID identifying the host chain's native gas
// asset, used for safety deposits.
var NativeGas = immutables.TokenID{0xff}

// Ledger is the fungible-asset capability the escrow core depends on. It
// covers both arbitrary tokens (token_id) and the native gas asset
// (NativeGas) through the same interface.
type Ledger interface {
	Transfer(ctx context.Context, from, to common.Address, token immutables.TokenID, amount uint64) error
	BalanceOf(ctx context.Context, addr common.Address, token immutables.TokenID) (uint64, error)
}
