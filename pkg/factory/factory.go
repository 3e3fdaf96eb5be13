// Copyright 2025 Certen Protocol
//
// Package factory deploys source and destination escrow instances at their
// deterministic addresses and enforces the cross-chain timing invariant
// that keeps a taker from being paid on one side while the maker is
// refunded on the other.
package factory

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/certen/escrow-core/pkg/assets"
	"github.com/certen/escrow-core/pkg/escrow"
	"github.com/certen/escrow-core/pkg/events"
	"github.com/certen/escrow-core/pkg/immutables"
	"github.com/certen/escrow-core/pkg/timelock"
)

// Registry resolves an escrow address to its live instance. Factory,
// Escrow, and FeeBank reference each other only through addresses — the
// Registry is the one place that holds the owning pointers, so those
// cross-references never become ownership cycles.
type Registry struct {
	mu      sync.RWMutex
	escrows map[common.Address]*escrow.Escrow
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{escrows: make(map[common.Address]*escrow.Escrow)}
}

// Lookup resolves address to its live escrow instance, if any.
func (r *Registry) Lookup(address common.Address) (*escrow.Escrow, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.escrows[address]
	return e, ok
}

func (r *Registry) register(address common.Address, e *escrow.Escrow) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.escrows[address]; exists {
		return false
	}
	r.escrows[address] = e
	return true
}

// Config configures a Factory's deployment-wide parameters.
type Config struct {
	ID common.Address // the factory's own address, fed into DeriveAddress

	SrcRescueDelay uint32
	DstRescueDelay uint32

	// SafetyMargin is the minimum gap CreateDstEscrow enforces between the
	// destination escrow's cancellation boundary and the source order's
	// cancellation timestamp.
	SafetyMargin uint32

	Logger *log.Logger
}

// DefaultConfig returns sane non-production defaults.
func DefaultConfig(id common.Address) *Config {
	return &Config{
		ID:             id,
		SrcRescueDelay: 7 * 24 * 3600,
		DstRescueDelay: 7 * 24 * 3600,
		SafetyMargin:   600,
		Logger:         log.New(log.Writer(), "[Factory] ", log.LstdFlags),
	}
}

// Factory deploys escrow instances and publishes them into a Registry.
type Factory struct {
	cfg      *Config
	registry *Registry
	ledger   assets.Ledger
	emitter  events.Emitter
	logger   *log.Logger
}

// New constructs a Factory. ledger is the fungible-asset capability used to
// pull tokens/safety deposit into a newly created escrow's address.
func New(cfg *Config, registry *Registry, ledger assets.Ledger, emitter events.Emitter) (*Factory, error) {
	if cfg == nil {
		return nil, fmt.Errorf("factory: config cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("factory: registry cannot be nil")
	}
	if ledger == nil {
		return nil, fmt.Errorf("factory: ledger cannot be nil")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(log.Writer(), "[Factory] ", log.LstdFlags)
	}
	return &Factory{cfg: cfg, registry: registry, ledger: ledger, emitter: emitter, logger: logger}, nil
}

// CreateSrcEscrow binds the maker tokens the host limit-order protocol
// already moved to the deterministic source address into a fresh Active
// escrow, and publishes it into the Registry. Order Integration is the only
// intended caller.
func (f *Factory) CreateSrcEscrow(ctx context.Context, now int64, im immutables.EscrowImmutables,
	dstComplement events.DstImmutablesComplement) (*escrow.Escrow, error) {
	address := immutables.DeriveAddress(f.cfg.ID, im.Hash(), immutables.Src)

	balance, err := f.ledger.BalanceOf(ctx, address, im.TokenID)
	if err != nil {
		return nil, fmt.Errorf("factory: balance check: %w", err)
	}
	if balance < im.Amount {
		return nil, ErrAddressMismatch
	}
	depositBalance, err := f.ledger.BalanceOf(ctx, address, assets.NativeGas)
	if err != nil {
		return nil, fmt.Errorf("factory: deposit balance check: %w", err)
	}
	if depositBalance < im.SafetyDeposit {
		return nil, ErrAddressMismatch
	}

	deployed, err := im.Timelocks.Deploy(now)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	im.Timelocks = deployed

	e := escrow.New(address, im.Hash(), im.Amount, im.SafetyDeposit, f.ledger, f.emitter, nil)
	if !f.registry.register(address, e) {
		return nil, ErrAlreadyInitialized
	}

	f.logger.Printf("src escrow created address=%s immutables_hash=%s", address, im.Hash())
	if f.emitter != nil {
		f.emitter.EmitSrcEscrowCreated(events.SrcEscrowCreated{
			CorrelationID: uuid.New(),
			Immutables:    im,
			DstComplement: dstComplement,
		})
	}
	return e, nil
}

// CreateDstEscrow pulls amount destination tokens and the safety deposit
// from caller, enforces the cross-chain timing invariant against
// srcCancellationTimestamp, and instantiates the destination escrow.
func (f *Factory) CreateDstEscrow(ctx context.Context, now int64, im immutables.EscrowImmutables,
	caller common.Address, srcCancellationTimestamp int64) (*escrow.Escrow, error) {
	dstCancelAt := now + int64(im.Timelocks.Offset(timelock.DstCancellation))
	if dstCancelAt > srcCancellationTimestamp-int64(f.cfg.SafetyMargin) {
		return nil, ErrDstTooLate
	}

	address := immutables.DeriveAddress(f.cfg.ID, im.Hash(), immutables.Dst)

	if err := f.ledger.Transfer(ctx, caller, address, im.TokenID, im.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientDeposit, err)
	}
	if err := f.ledger.Transfer(ctx, caller, address, assets.NativeGas, im.SafetyDeposit); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientDeposit, err)
	}

	deployed, err := im.Timelocks.Deploy(now)
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	im.Timelocks = deployed

	e := escrow.New(address, im.Hash(), im.Amount, im.SafetyDeposit, f.ledger, f.emitter, nil)
	if !f.registry.register(address, e) {
		return nil, ErrAlreadyInitialized
	}

	f.logger.Printf("dst escrow created address=%s immutables_hash=%s taker=%s", address, im.Hash(), caller)
	if f.emitter != nil {
		f.emitter.EmitDstEscrowCreated(events.DstEscrowCreated{
			CorrelationID:  uuid.New(),
			ImmutablesHash: im.Hash(),
			Taker:          caller,
		})
	}
	return e, nil
}
