// Copyright 2025 Certen Protocol
//
// Package store defines the persistence seam for escrow and partial-fill
// records: the escrow core's state (address, immutables hash, status,
// balances) plus the Merkle validator's monotonic fill index, keyed by the
// order hash so a resolver or relayer restart can rehydrate in-flight swaps.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNotFound is returned when a lookup key has no record.
var ErrNotFound = errors.New("store: not found")

// EscrowRecord is the durable snapshot of one escrow instance.
type EscrowRecord struct {
	Address              common.Address
	ImmutablesHash        common.Hash
	Status                uint8
	LockedTokens          uint64
	SafetyDepositBalance  uint64
	DeployedAt            int64
	UpdatedAt             time.Time
}

// FillRecord is the durable snapshot of one order's partial-fill state.
type FillRecord struct {
	OrderHash        common.Hash
	MerkleRoot        common.Hash
	PartsCount        uint16
	ValidatedIndex    uint16
	RemainingAmount   uint64
	UpdatedAt         time.Time
}

// EscrowStore persists escrow and fill state across process restarts.
//
// CONCURRENCY: implementations are expected to be called from a single
// writer per escrow address / order hash — typically the goroutine handling
// that swap's callbacks — and to serialize internally if shared across
// more than one.
type EscrowStore interface {
	SaveEscrow(ctx context.Context, rec EscrowRecord) error
	GetEscrow(ctx context.Context, address common.Address) (EscrowRecord, error)

	SaveFill(ctx context.Context, rec FillRecord) error
	GetFill(ctx context.Context, orderHash common.Hash) (FillRecord, error)
}
