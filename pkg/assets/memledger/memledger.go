// Copyright 2025 Certen Protocol
//
// Package memledger is an in-memory assets.Ledger used by tests and the
// reference cmd/escrowd demo. Production deployments back pkg/assets.Ledger
// with the host chain's real token/gas primitives instead.
package memledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/assets"
	"github.com/certen/escrow-core/pkg/immutables"
)

type balanceKey struct {
	addr  common.Address
	token immutables.TokenID
}

// Ledger is a simple in-memory fungible-asset ledger.
type Ledger struct {
	mu       sync.Mutex
	balances map[balanceKey]uint64
}

// New returns an empty ledger.
func New() *Ledger {
	return &Ledger{balances: make(map[balanceKey]uint64)}
}

var _ assets.Ledger = (*Ledger)(nil)

// Credit directly mints amount of token to addr — a test/demo fixture
// helper, not part of the assets.Ledger contract.
func (l *Ledger) Credit(addr common.Address, token immutables.TokenID, amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey{addr, token}] += amount
}

// Transfer moves amount of token from from to to.
func (l *Ledger) Transfer(_ context.Context, from, to common.Address, token immutables.TokenID, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := balanceKey{from, token}
	if l.balances[key] < amount {
		return fmt.Errorf("%w: %s has %d, needs %d", assets.ErrInsufficientBalance, from.Hex(), l.balances[key], amount)
	}
	l.balances[key] -= amount
	l.balances[balanceKey{to, token}] += amount
	return nil
}

// BalanceOf returns addr's balance of token.
func (l *Ledger) BalanceOf(_ context.Context, addr common.Address, token immutables.TokenID) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[balanceKey{addr, token}], nil
}
