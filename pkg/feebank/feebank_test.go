// Copyright 2025 Certen Protocol

package feebank

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/assets/memledger"
	"github.com/certen/escrow-core/pkg/immutables"
)

func TestDepositWithdrawRoundTrip(t *testing.T) {
	fb, err := New(memledger.New(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolver := common.HexToAddress("0x01")

	fb.Deposit(resolver, 100)
	if err := fb.Withdraw(resolver, 40); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := fb.Balance(resolver); got != 60 {
		t.Fatalf("balance = %d, want 60", got)
	}
}

func TestWithdrawRejectsInsufficientCredit(t *testing.T) {
	fb, err := New(memledger.New(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolver := common.HexToAddress("0x02")
	fb.Deposit(resolver, 10)
	if err := fb.Withdraw(resolver, 11); err != ErrInsufficientCredit {
		t.Fatalf("err = %v, want ErrInsufficientCredit", err)
	}
}

func TestValidateAccessWhitelistBypassesBalanceCheck(t *testing.T) {
	ledger := memledger.New()
	fb, err := New(ledger, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolver := common.HexToAddress("0x03")
	fb.Deposit(resolver, 5)
	whitelist := map[common.Address]bool{resolver: true}

	err = fb.ValidateAccess(context.Background(), whitelist, resolver,
		AccessTokenConfig{Token: immutables.TokenID{0x01}, MinBalance: 1000}, FeeConfig{PerFillFee: 5})
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if fb.Balance(resolver) != 0 {
		t.Fatalf("balance after charge = %d, want 0", fb.Balance(resolver))
	}
}

func TestValidateAccessRejectsBelowThresholdNonWhitelisted(t *testing.T) {
	ledger := memledger.New()
	fb, err := New(ledger, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolver := common.HexToAddress("0x04")
	token := immutables.TokenID{0x02}
	ledger.Credit(resolver, token, 5)

	err = fb.ValidateAccess(context.Background(), nil, resolver,
		AccessTokenConfig{Token: token, MinBalance: 10}, FeeConfig{})
	if err != ErrAccessDenied {
		t.Fatalf("err = %v, want ErrAccessDenied", err)
	}
}

func TestValidateAccessAdmitsViaAccessTokenBalance(t *testing.T) {
	ledger := memledger.New()
	fb, err := New(ledger, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	resolver := common.HexToAddress("0x05")
	token := immutables.TokenID{0x03}
	ledger.Credit(resolver, token, 10)
	fb.Deposit(resolver, 3)

	err = fb.ValidateAccess(context.Background(), nil, resolver,
		AccessTokenConfig{Token: token, MinBalance: 10}, FeeConfig{PerFillFee: 2})
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if fb.Balance(resolver) != 1 {
		t.Fatalf("balance after charge = %d, want 1", fb.Balance(resolver))
	}
}
