// Copyright 2025 Certen Protocol
//
// Package escrow implements the per-instance HTLC state machine:
// locked tokens and safety deposit, owned exclusively by the escrow until a
// one-shot terminal transition hands them to the recipient the transition
// rule dictates.
package escrow

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/certen/escrow-core/pkg/assets"
	"github.com/certen/escrow-core/pkg/events"
	"github.com/certen/escrow-core/pkg/feebank"
	"github.com/certen/escrow-core/pkg/immutables"
	"github.com/certen/escrow-core/pkg/timelock"
)

// Status is the escrow's lifecycle state.
type Status uint8

const (
	Active Status = iota
	Withdrawn
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Active:
		return "active"
	case Withdrawn:
		return "withdrawn"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Escrow is one deployed HTLC instance. Its own address (from
// immutables.DeriveAddress) is where the ledger holds LockedTokens and
// SafetyDepositBalance until a terminal transition.
type Escrow struct {
	Address              common.Address
	ImmutablesHash       common.Hash
	LockedTokens         uint64
	SafetyDepositBalance uint64
	Status               Status

	ledger  assets.Ledger
	emitter events.Emitter
	logger  *log.Logger
}

// New constructs an Active escrow instance bound to address, backed by
// immutablesHash, holding lockedTokens and safetyDeposit. Factory is the
// only caller expected to construct these.
func New(address common.Address, immutablesHash common.Hash, lockedTokens, safetyDeposit uint64,
	ledger assets.Ledger, emitter events.Emitter, logger *log.Logger) *Escrow {
	if logger == nil {
		logger = log.New(log.Writer(), "[Escrow] ", log.LstdFlags)
	}
	return &Escrow{
		Address:              address,
		ImmutablesHash:       immutablesHash,
		LockedTokens:         lockedTokens,
		SafetyDepositBalance: safetyDeposit,
		Status:               Active,
		ledger:               ledger,
		emitter:              emitter,
		logger:               logger,
	}
}

// authenticate re-verifies hash(passed) == stored immutables_hash.
func (e *Escrow) authenticate(im immutables.EscrowImmutables) error {
	if im.Hash() != e.ImmutablesHash {
		return ErrImmutablesMismatch
	}
	return nil
}

func (e *Escrow) assertActive() error {
	if e.Status != Active {
		return ErrNotActive
	}
	return nil
}

func checkSecret(secret [32]byte, hashlock common.Hash) error {
	got := immutables.HashSecret(secret)
	if subtle.ConstantTimeCompare(got[:], hashlock[:]) != 1 {
		return ErrBadSecret
	}
	return nil
}

// settle moves LockedTokens to tokenRecipient and SafetyDepositBalance to
// depositRecipient, then marks the escrow terminal. The escrow's own fields
// change only after both transfers succeed. If the safety-deposit transfer
// fails after the token transfer succeeded, settle returns the error with
// the escrow still Active and does not reverse the token transfer.
func (e *Escrow) settle(ctx context.Context, im immutables.EscrowImmutables, final Status,
	tokenRecipient, depositRecipient common.Address) error {
	if e.LockedTokens > 0 {
		if err := e.ledger.Transfer(ctx, e.Address, tokenRecipient, im.TokenID, e.LockedTokens); err != nil {
			return fmt.Errorf("escrow: token transfer: %w", err)
		}
	}
	if e.SafetyDepositBalance > 0 {
		if err := e.ledger.Transfer(ctx, e.Address, depositRecipient, assets.NativeGas, e.SafetyDepositBalance); err != nil {
			return fmt.Errorf("escrow: safety deposit transfer: %w", err)
		}
	}
	e.LockedTokens = 0
	e.SafetyDepositBalance = 0
	e.Status = final
	return nil
}

func (e *Escrow) validateAccess(ctx context.Context, fb *feebank.FeeBank, whitelist map[common.Address]bool,
	caller common.Address, accessCfg feebank.AccessTokenConfig, feeCfg feebank.FeeConfig) error {
	return fb.ValidateAccess(ctx, whitelist, caller, accessCfg, feeCfg)
}

// --- Source-chain operations -------------------------------------------------

// WithdrawSrcPrivate: taker withdraws maker's locked tokens to themself
// during [src_withdrawal, src_cancellation), presenting the secret.
func (e *Escrow) WithdrawSrcPrivate(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address, secret [32]byte) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if err := e.assertActive(); err != nil {
		return err
	}
	if caller != im.Taker {
		return ErrCallerNotTaker
	}
	if err := im.Timelocks.AssertInWindow(now, timelock.SrcWithdrawal, timelock.SrcCancellation); err != nil {
		return err
	}
	if err := checkSecret(secret, im.Hashlock); err != nil {
		return err
	}
	if err := e.settle(ctx, im, Withdrawn, im.Taker, caller); err != nil {
		return err
	}
	e.emitWithdrawn(secret, im.Taker)
	return nil
}

// WithdrawSrcPublic: any permissioned party may trigger the same transfer
// during [src_public_withdrawal, src_cancellation); the caller, not the
// original taker, collects the safety deposit.
func (e *Escrow) WithdrawSrcPublic(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address, secret [32]byte,
	fb *feebank.FeeBank, whitelist map[common.Address]bool, accessCfg feebank.AccessTokenConfig, feeCfg feebank.FeeConfig) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if err := e.assertActive(); err != nil {
		return err
	}
	if err := im.Timelocks.AssertInWindow(now, timelock.SrcPublicWithdrawal, timelock.SrcCancellation); err != nil {
		return err
	}
	if err := checkSecret(secret, im.Hashlock); err != nil {
		return err
	}
	if err := e.validateAccess(ctx, fb, whitelist, caller, accessCfg, feeCfg); err != nil {
		return err
	}
	if err := e.settle(ctx, im, Withdrawn, im.Taker, caller); err != nil {
		return err
	}
	e.emitWithdrawn(secret, im.Taker)
	return nil
}

// CancelSrcPrivate: taker returns maker's tokens during
// [src_cancellation, src_public_cancellation).
func (e *Escrow) CancelSrcPrivate(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if err := e.assertActive(); err != nil {
		return err
	}
	if caller != im.Taker {
		return ErrCallerNotTaker
	}
	if err := im.Timelocks.AssertInWindow(now, timelock.SrcCancellation, timelock.SrcPublicCancellation); err != nil {
		return err
	}
	if err := e.settle(ctx, im, Cancelled, im.Maker, caller); err != nil {
		return err
	}
	e.emitCancelled(im.Maker)
	return nil
}

// CancelSrcPublic: any permissioned party may return maker's tokens from
// src_public_cancellation onward (liveness backstop).
func (e *Escrow) CancelSrcPublic(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address,
	fb *feebank.FeeBank, whitelist map[common.Address]bool, accessCfg feebank.AccessTokenConfig, feeCfg feebank.FeeConfig) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if err := e.assertActive(); err != nil {
		return err
	}
	if err := im.Timelocks.AssertAfterStage(now, timelock.SrcPublicCancellation); err != nil {
		return err
	}
	if err := e.validateAccess(ctx, fb, whitelist, caller, accessCfg, feeCfg); err != nil {
		return err
	}
	if err := e.settle(ctx, im, Cancelled, im.Maker, caller); err != nil {
		return err
	}
	e.emitCancelled(im.Maker)
	return nil
}

// --- Destination-chain operations -------------------------------------------

// WithdrawDstPrivate: taker releases their own locked tokens to the maker
// during [dst_withdrawal, dst_cancellation), presenting the secret. This is
// the leg that makes the secret observable on-chain for the source side.
func (e *Escrow) WithdrawDstPrivate(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address, secret [32]byte) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if err := e.assertActive(); err != nil {
		return err
	}
	if caller != im.Taker {
		return ErrCallerNotTaker
	}
	if err := im.Timelocks.AssertInWindow(now, timelock.DstWithdrawal, timelock.DstCancellation); err != nil {
		return err
	}
	if err := checkSecret(secret, im.Hashlock); err != nil {
		return err
	}
	if err := e.settle(ctx, im, Withdrawn, im.Maker, caller); err != nil {
		return err
	}
	e.emitWithdrawn(secret, im.Maker)
	return nil
}

// WithdrawDstPublic: any permissioned party may trigger the maker's payout
// during [dst_public_withdrawal, dst_cancellation); they, not the taker,
// collect the safety deposit.
func (e *Escrow) WithdrawDstPublic(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address, secret [32]byte,
	fb *feebank.FeeBank, whitelist map[common.Address]bool, accessCfg feebank.AccessTokenConfig, feeCfg feebank.FeeConfig) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if err := e.assertActive(); err != nil {
		return err
	}
	if err := im.Timelocks.AssertInWindow(now, timelock.DstPublicWithdrawal, timelock.DstCancellation); err != nil {
		return err
	}
	if err := checkSecret(secret, im.Hashlock); err != nil {
		return err
	}
	if err := e.validateAccess(ctx, fb, whitelist, caller, accessCfg, feeCfg); err != nil {
		return err
	}
	if err := e.settle(ctx, im, Withdrawn, im.Maker, caller); err != nil {
		return err
	}
	e.emitWithdrawn(secret, im.Maker)
	return nil
}

// CancelDst: refunds the taker's own locked tokens to themself from
// dst_cancellation onward. The taker may call it directly; any other
// permissioned party may also call it (the window has no further private
// sub-stage), giving the same liveness guarantee as the
// src-side public cancel.
func (e *Escrow) CancelDst(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address,
	fb *feebank.FeeBank, whitelist map[common.Address]bool, accessCfg feebank.AccessTokenConfig, feeCfg feebank.FeeConfig) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if err := e.assertActive(); err != nil {
		return err
	}
	if err := im.Timelocks.AssertAfterStage(now, timelock.DstCancellation); err != nil {
		return err
	}
	if caller != im.Taker {
		if err := e.validateAccess(ctx, fb, whitelist, caller, accessCfg, feeCfg); err != nil {
			return err
		}
	}
	if err := e.settle(ctx, im, Cancelled, im.Taker, caller); err != nil {
		return err
	}
	e.emitCancelled(im.Taker)
	return nil
}

// --- Rescue ------------------------------------------------------------------

// Rescue lets the taker sweep a residual balance of any token (e.g. stuck
// dust, or a wrong-asset transfer) held by the escrow address to
// themselves, once deployed_at + rescueDelay has elapsed. It is the only
// action permitted after a terminal transition, and never touches
// LockedTokens/SafetyDepositBalance accounting — those are zeroed by
// settle already. Rescue never reaches into arbitrary contract state, only
// balances the escrow address itself holds.
func (e *Escrow) Rescue(ctx context.Context, now int64, im immutables.EscrowImmutables, caller common.Address,
	rescueDelay uint32, token immutables.TokenID, amount uint64) error {
	if err := e.authenticate(im); err != nil {
		return err
	}
	if caller != im.Taker {
		return ErrCallerNotTaker
	}
	if now < im.Timelocks.Deployed+int64(rescueDelay) {
		return ErrRescueNotYetAvailable
	}
	if err := e.ledger.Transfer(ctx, e.Address, caller, token, amount); err != nil {
		return fmt.Errorf("escrow: rescue transfer: %w", err)
	}
	if e.emitter != nil {
		e.emitter.EmitFundsRescued(events.FundsRescued{
			CorrelationID:  uuid.New(),
			ImmutablesHash: e.ImmutablesHash,
			Amount:         amount,
			TokenID:        token,
		})
	}
	return nil
}

func (e *Escrow) emitWithdrawn(secret [32]byte, recipient common.Address) {
	if e.emitter == nil {
		return
	}
	e.emitter.EmitEscrowWithdrawn(events.EscrowWithdrawn{
		CorrelationID:  uuid.New(),
		ImmutablesHash: e.ImmutablesHash,
		Secret:         secret,
		Recipient:      recipient,
	})
}

func (e *Escrow) emitCancelled(recipient common.Address) {
	if e.emitter == nil {
		return
	}
	e.emitter.EmitEscrowCancelled(events.EscrowCancelled{
		CorrelationID:  uuid.New(),
		ImmutablesHash: e.ImmutablesHash,
		Recipient:      recipient,
	})
}
