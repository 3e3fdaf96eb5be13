// Copyright 2025 Certen Protocol
//
// Package orderintegration implements the two callbacks the host
// limit-order protocol invokes around a fill: pre-interaction prices the
// current Dutch-auction point, post-interaction charges the resolver and
// hands the maker's tokens off to the Factory.
package orderintegration

import (
	"context"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/codec"
	"github.com/certen/escrow-core/pkg/events"
	"github.com/certen/escrow-core/pkg/factory"
	"github.com/certen/escrow-core/pkg/feebank"
	"github.com/certen/escrow-core/pkg/immutables"
)

// Integration wires the host LOP's callbacks to FeeBank and Factory.
type Integration struct {
	factory   *factory.Factory
	feeBank   *feebank.FeeBank
	whitelist map[common.Address]bool
	accessCfg feebank.AccessTokenConfig
	feeCfg    feebank.FeeConfig
	logger    *log.Logger
}

// New constructs an Integration. whitelist is consulted before the
// access-token balance check in every FeeBank.ValidateAccess call.
func New(f *factory.Factory, fb *feebank.FeeBank, whitelist map[common.Address]bool,
	accessCfg feebank.AccessTokenConfig, feeCfg feebank.FeeConfig, logger *log.Logger) *Integration {
	if logger == nil {
		logger = log.New(log.Writer(), "[OrderIntegration] ", log.LstdFlags)
	}
	if whitelist == nil {
		whitelist = make(map[common.Address]bool)
	}
	return &Integration{
		factory:   f,
		feeBank:   fb,
		whitelist: whitelist,
		accessCfg: accessCfg,
		feeCfg:    feeCfg,
		logger:    logger,
	}
}

// PreInteraction decodes the Dutch-auction curve from extraData and returns
// the effective taking amount LOP should charge the taker at now.
func (in *Integration) PreInteraction(now int64, orderHash common.Hash, makingAmount uint64,
	extraData []byte, orderCreatedAt int64) (uint64, error) {
	ed, err := codec.Decode(extraData, orderCreatedAt)
	if err != nil {
		return 0, fmt.Errorf("orderintegration: decode extraData: %w", err)
	}
	if ed.OrderHash != orderHash {
		return 0, ErrOrderHashMismatch
	}
	return ed.Auction.TakingAmount(now, makingAmount), nil
}

// PostInteraction decodes the same extraData, charges the taker through
// FeeBank, and creates the source escrow through Factory. If any step
// fails the whole call fails and nothing is committed — the caller's host
// transaction reverts.
func (in *Integration) PostInteraction(ctx context.Context, now int64, orderHash common.Hash,
	taker common.Address, extraData []byte, orderCreatedAt int64) (*events.SrcEscrowCreated, error) {
	ed, err := codec.Decode(extraData, orderCreatedAt)
	if err != nil {
		return nil, fmt.Errorf("orderintegration: decode extraData: %w", err)
	}
	if ed.OrderHash != orderHash {
		return nil, ErrOrderHashMismatch
	}

	if err := in.feeBank.ValidateAccess(ctx, in.whitelist, taker, in.accessCfg, in.feeCfg); err != nil {
		return nil, fmt.Errorf("orderintegration: %w", err)
	}

	im := immutables.EscrowImmutables{
		OrderHash:     ed.OrderHash,
		Hashlock:      ed.Hashlock,
		Maker:         ed.Maker,
		Taker:         taker,
		TokenID:       ed.TokenID,
		Amount:        ed.Amount,
		SafetyDeposit: ed.SafetyDeposit,
		Timelocks:     ed.Timelocks,
	}
	dstComplement := events.DstImmutablesComplement{
		Maker:         ed.Maker,
		Amount:        ed.Dst.Amount,
		TokenID:       ed.Dst.TokenID,
		SafetyDeposit: ed.Dst.SafetyDeposit,
		ChainID:       ed.Dst.ChainID,
	}

	e, err := in.factory.CreateSrcEscrow(ctx, now, im, dstComplement)
	if err != nil {
		// ValidateAccess has already charged the fill fee; credit it back so
		// a failed fill leaves the taker's fee-bank balance unchanged.
		in.feeBank.Deposit(taker, in.feeCfg.PerFillFee)
		return nil, fmt.Errorf("orderintegration: create src escrow: %w", err)
	}

	in.logger.Printf("post-interaction settled order_hash=%s escrow=%s", orderHash, e.Address)
	return &events.SrcEscrowCreated{Immutables: im, DstComplement: dstComplement}, nil
}
