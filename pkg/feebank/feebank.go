// Copyright 2025 Certen Protocol
//
// Package feebank is the resolver credit ledger and access-token gate that
// admits resolvers into a swap's public windows. It is the one piece of
// state shared across every escrow on a chain; everything else is owned by
// individual escrow instances.
package feebank

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/assets"
	"github.com/certen/escrow-core/pkg/immutables"
)

// Sentinel errors.
var (
	ErrInsufficientCredit = errors.New("feebank: insufficient credit")
	ErrAccessDenied       = errors.New("feebank: access denied")
)

// AccessTokenConfig names one fungible asset and a minimum holding
// threshold; a resolver is permissioned iff its balance of that asset is at
// least MinBalance.
type AccessTokenConfig struct {
	Token      immutables.TokenID
	MinBalance uint64
}

// FeeConfig names the flat per-fill fee charged to the taker on a
// successful post-interaction.
type FeeConfig struct {
	PerFillFee uint64
}

// FeeBank is the resolver → credit-balance ledger.
type FeeBank struct {
	mu      sync.Mutex
	ledger  assets.Ledger
	credits map[common.Address]uint64
	logger  *log.Logger
}

// Config configures a FeeBank instance.
type Config struct {
	Logger *log.Logger
}

// DefaultConfig returns sane defaults, mirroring the teacher's
// Default*Config helpers.
func DefaultConfig() *Config {
	return &Config{Logger: log.New(log.Writer(), "[FeeBank] ", log.LstdFlags)}
}

// New constructs a FeeBank. ledger is used only by callers that also need
// to check on-chain access-token balances in ValidateAccess; FeeBank's own
// credit accounting is purely internal bookkeeping.
func New(ledger assets.Ledger, cfg *Config) (*FeeBank, error) {
	if ledger == nil {
		return nil, fmt.Errorf("feebank: ledger cannot be nil")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(log.Writer(), "[FeeBank] ", log.LstdFlags)
	}
	return &FeeBank{
		ledger:  ledger,
		credits: make(map[common.Address]uint64),
		logger:  cfg.Logger,
	}, nil
}

// Deposit credits resolver's balance by amount.
func (fb *FeeBank) Deposit(resolver common.Address, amount uint64) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.credits[resolver] += amount
}

// Withdraw debits resolver's balance by amount, failing if insufficient.
func (fb *FeeBank) Withdraw(resolver common.Address, amount uint64) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	if fb.credits[resolver] < amount {
		return ErrInsufficientCredit
	}
	fb.credits[resolver] -= amount
	return nil
}

// Balance returns resolver's current credit balance.
func (fb *FeeBank) Balance(resolver common.Address) uint64 {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.credits[resolver]
}

// Charge atomically debits amount from resolver, called by Order
// Integration during post-interaction. Unlike Withdraw it is named for
// that caller but has identical debit semantics.
func (fb *FeeBank) Charge(resolver common.Address, amount uint64) error {
	if err := fb.Withdraw(resolver, amount); err != nil {
		return fmt.Errorf("charge: %w", err)
	}
	return nil
}

// ValidateAccess succeeds iff taker is in whitelist, or taker holds at
// least accessCfg.MinBalance of the named asset. On success it charges
// feeCfg.PerFillFee. Public-withdrawal phases stay open to any
// permissioned party via this same check, not just the escrow's original
// taker, which is what gives the protocol liveness without opening the
// door to arbitrary griefing.
func (fb *FeeBank) ValidateAccess(ctx context.Context, whitelist map[common.Address]bool, taker common.Address,
	accessCfg AccessTokenConfig, feeCfg FeeConfig) error {
	permissioned := whitelist[taker]
	if !permissioned {
		balance, err := fb.ledger.BalanceOf(ctx, taker, accessCfg.Token)
		if err != nil {
			return fmt.Errorf("feebank: access token balance check: %w", err)
		}
		permissioned = balance >= accessCfg.MinBalance
	}
	if !permissioned {
		return ErrAccessDenied
	}
	if err := fb.Charge(taker, feeCfg.PerFillFee); err != nil {
		return err
	}
	return nil
}
