// Copyright 2025 Certen Protocol

package memledger

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/assets"
	"github.com/certen/escrow-core/pkg/immutables"
)

func TestTransferMovesBalance(t *testing.T) {
	l := New()
	from := common.HexToAddress("0x01")
	to := common.HexToAddress("0x02")
	token := immutables.TokenID{0x01}
	l.Credit(from, token, 100)

	if err := l.Transfer(context.Background(), from, to, token, 40); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	fromBal, _ := l.BalanceOf(context.Background(), from, token)
	toBal, _ := l.BalanceOf(context.Background(), to, token)
	if fromBal != 60 || toBal != 40 {
		t.Fatalf("from=%d to=%d, want 60/40", fromBal, toBal)
	}
}

func TestTransferRejectsOverdraft(t *testing.T) {
	l := New()
	from := common.HexToAddress("0x03")
	to := common.HexToAddress("0x04")
	token := immutables.TokenID{0x02}
	l.Credit(from, token, 10)

	err := l.Transfer(context.Background(), from, to, token, 11)
	if !errors.Is(err, assets.ErrInsufficientBalance) {
		t.Fatalf("err = %v, want wrapped ErrInsufficientBalance", err)
	}
}

func TestBalanceOfUnknownAddressIsZero(t *testing.T) {
	l := New()
	bal, err := l.BalanceOf(context.Background(), common.HexToAddress("0x05"), immutables.TokenID{0x03})
	if err != nil {
		t.Fatalf("BalanceOf: %v", err)
	}
	if bal != 0 {
		t.Fatalf("balance = %d, want 0", bal)
	}
}
