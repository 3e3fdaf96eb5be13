// Copyright 2025 Certen Protocol

package escrow

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/assets"
	"github.com/certen/escrow-core/pkg/assets/memledger"
	"github.com/certen/escrow-core/pkg/events"
	"github.com/certen/escrow-core/pkg/feebank"
	"github.com/certen/escrow-core/pkg/immutables"
	"github.com/certen/escrow-core/pkg/timelock"
)

var (
	maker   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	taker   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	outside = common.HexToAddress("0x3333333333333333333333333333333333333333")
	token   = immutables.TokenID{0x01}
)

const (
	srcWithdrawal         = 10
	srcPublicWithdrawal   = 20
	srcCancellation       = 30
	srcPublicCancellation = 40
	dstWithdrawal         = 5
	dstPublicWithdrawal   = 15
	dstCancellation       = 25
)

func newTestTimelocks(t *testing.T, deployedAt int64) timelock.Timelocks {
	t.Helper()
	tl, err := timelock.New(srcWithdrawal, srcPublicWithdrawal, srcCancellation, srcPublicCancellation,
		dstWithdrawal, dstPublicWithdrawal, dstCancellation)
	if err != nil {
		t.Fatalf("timelock.New: %v", err)
	}
	tl, err = tl.Deploy(deployedAt)
	if err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	return tl
}

func newTestImmutables(t *testing.T, deployedAt int64, secret [32]byte) immutables.EscrowImmutables {
	t.Helper()
	return immutables.EscrowImmutables{
		OrderHash:     common.HexToHash("0xaa"),
		Hashlock:      immutables.HashSecret(secret),
		Maker:         maker,
		Taker:         taker,
		TokenID:       token,
		Amount:        1000,
		SafetyDeposit: 10,
		Timelocks:     newTestTimelocks(t, deployedAt),
	}
}

func newTestEscrow(t *testing.T, im immutables.EscrowImmutables) (*Escrow, *memledger.Ledger, *events.ChannelEmitter) {
	t.Helper()
	ledger := memledger.New()
	addr := common.HexToAddress("0xdead")
	ledger.Credit(addr, im.TokenID, im.Amount)
	ledger.Credit(addr, assets.NativeGas, im.SafetyDeposit)
	emitter := events.NewChannelEmitter(4)
	e := New(addr, im.Hash(), im.Amount, im.SafetyDeposit, ledger, emitter, nil)
	return e, ledger, emitter
}

func TestWithdrawSrcPrivateHappyPath(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, emitter := newTestEscrow(t, im)

	if err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal, im, taker, secret); err != nil {
		t.Fatalf("WithdrawSrcPrivate: %v", err)
	}
	if e.Status != Withdrawn {
		t.Fatalf("status = %s, want withdrawn", e.Status)
	}
	bal, _ := ledger.BalanceOf(context.Background(), taker, im.TokenID)
	if bal != im.Amount {
		t.Fatalf("taker token balance = %d, want %d", bal, im.Amount)
	}
	dep, _ := ledger.BalanceOf(context.Background(), taker, assets.NativeGas)
	if dep != im.SafetyDeposit {
		t.Fatalf("taker safety deposit = %d, want %d", dep, im.SafetyDeposit)
	}
	select {
	case ev := <-emitter.WithdrawnCh:
		if ev.Recipient != taker {
			t.Fatalf("event recipient = %s, want taker", ev.Recipient)
		}
	default:
		t.Fatal("expected EscrowWithdrawn event")
	}
}

func TestWithdrawSrcPrivateRejectsBeforeWindow(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, _, _ := newTestEscrow(t, im)

	err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal-1, im, taker, secret)
	if err != timelock.ErrTimeWindowNotOpen {
		t.Fatalf("err = %v, want ErrTimeWindowNotOpen", err)
	}
}

func TestWithdrawSrcPrivateRejectsAfterWindow(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, _, _ := newTestEscrow(t, im)

	err := e.WithdrawSrcPrivate(context.Background(), 1000+srcCancellation, im, taker, secret)
	if err != timelock.ErrTimeWindowClosed {
		t.Fatalf("err = %v, want ErrTimeWindowClosed", err)
	}
}

func TestWithdrawSrcPrivateRejectsWrongCaller(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, _, _ := newTestEscrow(t, im)

	err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal, im, outside, secret)
	if err != ErrCallerNotTaker {
		t.Fatalf("err = %v, want ErrCallerNotTaker", err)
	}
}

func TestWithdrawSrcPrivateRejectsBadSecret(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, _, _ := newTestEscrow(t, im)

	wrong := [32]byte{0x99}
	err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal, im, taker, wrong)
	if err != ErrBadSecret {
		t.Fatalf("err = %v, want ErrBadSecret", err)
	}
}

func TestWithdrawSrcPrivateRejectsImmutablesMismatch(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, _, _ := newTestEscrow(t, im)

	tampered := im
	tampered.Amount = im.Amount + 1
	err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal, tampered, taker, secret)
	if err != ErrImmutablesMismatch {
		t.Fatalf("err = %v, want ErrImmutablesMismatch", err)
	}
}

func TestTerminalTransitionIsOneShot(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, _, _ := newTestEscrow(t, im)

	if err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal, im, taker, secret); err != nil {
		t.Fatalf("first withdraw: %v", err)
	}
	err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal, im, taker, secret)
	if err != ErrNotActive {
		t.Fatalf("replay err = %v, want ErrNotActive", err)
	}

	err = e.CancelSrcPrivate(context.Background(), 1000+srcCancellation, im, taker)
	if err != ErrNotActive {
		t.Fatalf("post-terminal cancel err = %v, want ErrNotActive", err)
	}
}

func TestCancelSrcPrivateHappyPath(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, emitter := newTestEscrow(t, im)

	if err := e.CancelSrcPrivate(context.Background(), 1000+srcCancellation, im, taker); err != nil {
		t.Fatalf("CancelSrcPrivate: %v", err)
	}
	bal, _ := ledger.BalanceOf(context.Background(), maker, im.TokenID)
	if bal != im.Amount {
		t.Fatalf("maker refund = %d, want %d", bal, im.Amount)
	}
	select {
	case ev := <-emitter.CancelledCh:
		if ev.Recipient != maker {
			t.Fatalf("recipient = %s, want maker", ev.Recipient)
		}
	default:
		t.Fatal("expected EscrowCancelled event")
	}
}

func TestCancelSrcPrivateRejectsNonTaker(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, _, _ := newTestEscrow(t, im)

	err := e.CancelSrcPrivate(context.Background(), 1000+srcCancellation, im, outside)
	if err != ErrCallerNotTaker {
		t.Fatalf("err = %v, want ErrCallerNotTaker", err)
	}
}

func newFeeBank(t *testing.T, ledger assets.Ledger) *feebank.FeeBank {
	t.Helper()
	fb, err := feebank.New(ledger, nil)
	if err != nil {
		t.Fatalf("feebank.New: %v", err)
	}
	return fb
}

func TestWithdrawSrcPublicPaysSafetyDepositToCaller(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	fb := newFeeBank(t, ledger)
	whitelist := map[common.Address]bool{outside: true}
	accessCfg := feebank.AccessTokenConfig{}
	feeCfg := feebank.FeeConfig{}

	err := e.WithdrawSrcPublic(context.Background(), 1000+srcPublicWithdrawal, im, outside, secret,
		fb, whitelist, accessCfg, feeCfg)
	if err != nil {
		t.Fatalf("WithdrawSrcPublic: %v", err)
	}
	tokBal, _ := ledger.BalanceOf(context.Background(), taker, im.TokenID)
	if tokBal != im.Amount {
		t.Fatalf("taker token balance = %d, want %d", tokBal, im.Amount)
	}
	depBal, _ := ledger.BalanceOf(context.Background(), outside, assets.NativeGas)
	if depBal != im.SafetyDeposit {
		t.Fatalf("caller safety deposit = %d, want %d", depBal, im.SafetyDeposit)
	}
}

func TestWithdrawSrcPublicRejectsUnpermissionedCaller(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	fb := newFeeBank(t, ledger)
	err := e.WithdrawSrcPublic(context.Background(), 1000+srcPublicWithdrawal, im, outside, secret,
		fb, map[common.Address]bool{}, feebank.AccessTokenConfig{Token: assets.NativeGas, MinBalance: 1}, feebank.FeeConfig{})
	if err != feebank.ErrAccessDenied {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestCancelSrcPublicRequiresAfterPublicCancellation(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	fb := newFeeBank(t, ledger)
	whitelist := map[common.Address]bool{outside: true}
	err := e.CancelSrcPublic(context.Background(), 1000+srcPublicCancellation-1, im, outside,
		fb, whitelist, feebank.AccessTokenConfig{}, feebank.FeeConfig{})
	if err != timelock.ErrTimeWindowNotOpen {
		t.Fatalf("err = %v, want ErrTimeWindowNotOpen", err)
	}

	if err := e.CancelSrcPublic(context.Background(), 1000+srcPublicCancellation, im, outside,
		fb, whitelist, feebank.AccessTokenConfig{}, feebank.FeeConfig{}); err != nil {
		t.Fatalf("CancelSrcPublic: %v", err)
	}
	bal, _ := ledger.BalanceOf(context.Background(), maker, im.TokenID)
	if bal != im.Amount {
		t.Fatalf("maker refund = %d, want %d", bal, im.Amount)
	}
}

func TestWithdrawDstPrivatePaysMaker(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	if err := e.WithdrawDstPrivate(context.Background(), 1000+dstWithdrawal, im, taker, secret); err != nil {
		t.Fatalf("WithdrawDstPrivate: %v", err)
	}
	bal, _ := ledger.BalanceOf(context.Background(), maker, im.TokenID)
	if bal != im.Amount {
		t.Fatalf("maker balance = %d, want %d", bal, im.Amount)
	}
	dep, _ := ledger.BalanceOf(context.Background(), taker, assets.NativeGas)
	if dep != im.SafetyDeposit {
		t.Fatalf("taker safety deposit = %d, want %d", dep, im.SafetyDeposit)
	}
}

func TestWithdrawDstPublicPaysSafetyDepositToCaller(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	fb := newFeeBank(t, ledger)
	whitelist := map[common.Address]bool{outside: true}
	if err := e.WithdrawDstPublic(context.Background(), 1000+dstPublicWithdrawal, im, outside, secret,
		fb, whitelist, feebank.AccessTokenConfig{}, feebank.FeeConfig{}); err != nil {
		t.Fatalf("WithdrawDstPublic: %v", err)
	}
	dep, _ := ledger.BalanceOf(context.Background(), outside, assets.NativeGas)
	if dep != im.SafetyDeposit {
		t.Fatalf("caller safety deposit = %d, want %d", dep, im.SafetyDeposit)
	}
}

func TestCancelDstAllowsTakerDirectly(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	fb := newFeeBank(t, ledger)
	if err := e.CancelDst(context.Background(), 1000+dstCancellation, im, taker,
		fb, nil, feebank.AccessTokenConfig{}, feebank.FeeConfig{}); err != nil {
		t.Fatalf("CancelDst: %v", err)
	}
	bal, _ := ledger.BalanceOf(context.Background(), taker, im.TokenID)
	if bal != im.Amount {
		t.Fatalf("taker refund = %d, want %d", bal, im.Amount)
	}
}

func TestCancelDstAllowsPermissionedNonTaker(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	fb := newFeeBank(t, ledger)
	whitelist := map[common.Address]bool{outside: true}
	if err := e.CancelDst(context.Background(), 1000+dstCancellation, im, outside,
		fb, whitelist, feebank.AccessTokenConfig{}, feebank.FeeConfig{}); err != nil {
		t.Fatalf("CancelDst: %v", err)
	}
	bal, _ := ledger.BalanceOf(context.Background(), taker, im.TokenID)
	if bal != im.Amount {
		t.Fatalf("taker refund = %d, want %d", bal, im.Amount)
	}
}

func TestCancelDstRejectsUnpermissionedNonTaker(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	fb := newFeeBank(t, ledger)
	err := e.CancelDst(context.Background(), 1000+dstCancellation, im, outside,
		fb, map[common.Address]bool{}, feebank.AccessTokenConfig{Token: assets.NativeGas, MinBalance: 1}, feebank.FeeConfig{})
	if err != feebank.ErrAccessDenied {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestRescueRequiresTakerAndDelayElapsed(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, emitter := newTestEscrow(t, im)

	ledger.Credit(e.Address, immutables.TokenID{0xee}, 50)

	const rescueDelay = 100
	err := e.Rescue(context.Background(), 1000+rescueDelay-1, im, taker, rescueDelay, immutables.TokenID{0xee}, 50)
	if err != ErrRescueNotYetAvailable {
		t.Fatalf("err = %v, want ErrRescueNotYetAvailable", err)
	}

	err = e.Rescue(context.Background(), 1000+rescueDelay, im, outside, rescueDelay, immutables.TokenID{0xee}, 50)
	if err != ErrCallerNotTaker {
		t.Fatalf("err = %v, want ErrCallerNotTaker", err)
	}

	if err := e.Rescue(context.Background(), 1000+rescueDelay, im, taker, rescueDelay, immutables.TokenID{0xee}, 50); err != nil {
		t.Fatalf("Rescue: %v", err)
	}
	bal, _ := ledger.BalanceOf(context.Background(), taker, immutables.TokenID{0xee})
	if bal != 50 {
		t.Fatalf("rescued balance = %d, want 50", bal)
	}
	select {
	case <-emitter.RescuedCh:
	default:
		t.Fatal("expected FundsRescued event")
	}
}

func TestRescueAllowedAfterTerminalTransition(t *testing.T) {
	secret := [32]byte{0x42}
	im := newTestImmutables(t, 1000, secret)
	e, ledger, _ := newTestEscrow(t, im)

	if err := e.WithdrawSrcPrivate(context.Background(), 1000+srcWithdrawal, im, taker, secret); err != nil {
		t.Fatalf("WithdrawSrcPrivate: %v", err)
	}

	ledger.Credit(e.Address, immutables.TokenID{0xee}, 7)
	const rescueDelay = 100
	if err := e.Rescue(context.Background(), 1000+rescueDelay, im, taker, rescueDelay, immutables.TokenID{0xee}, 7); err != nil {
		t.Fatalf("Rescue after terminal: %v", err)
	}
}
