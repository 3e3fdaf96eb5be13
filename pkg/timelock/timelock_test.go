// Copyright 2025 Certen Protocol

package timelock

import (
	"errors"
	"testing"
)

func mustNew(t *testing.T) Timelocks {
	t.Helper()
	tl, err := New(10, 20, 30, 40, 5, 15, 25)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tl
}

func TestNewRejectsUnsortedOffsets(t *testing.T) {
	_, err := New(30, 20, 40, 50, 5, 15, 25)
	if !errors.Is(err, ErrOffsetsNotSorted) {
		t.Fatalf("got %v, want ErrOffsetsNotSorted", err)
	}
}

func TestDeployIsOneShot(t *testing.T) {
	tl := mustNew(t)
	tl, err := tl.Deploy(1000)
	if err != nil {
		t.Fatalf("first Deploy: %v", err)
	}
	if _, err := tl.Deploy(2000); !errors.Is(err, ErrAlreadyDeployed) {
		t.Fatalf("second Deploy: got %v, want ErrAlreadyDeployed", err)
	}
}

func TestAssertInWindowBoundaries(t *testing.T) {
	tl := mustNew(t)
	tl, _ = tl.Deploy(1000)

	// At exactly the open boundary, the window is open.
	if err := tl.AssertInWindow(tl.At(SrcWithdrawal), SrcWithdrawal, SrcCancellation); err != nil {
		t.Fatalf("at open boundary: %v", err)
	}
	// At exactly the close boundary, the window is closed.
	if err := tl.AssertInWindow(tl.At(SrcCancellation), SrcWithdrawal, SrcCancellation); !errors.Is(err, ErrTimeWindowClosed) {
		t.Fatalf("at close boundary: got %v, want ErrTimeWindowClosed", err)
	}
	// Before the open boundary, not yet open.
	if err := tl.AssertInWindow(tl.At(SrcWithdrawal)-1, SrcWithdrawal, SrcCancellation); !errors.Is(err, ErrTimeWindowNotOpen) {
		t.Fatalf("before open: got %v, want ErrTimeWindowNotOpen", err)
	}
}

func TestAssertAfterStage(t *testing.T) {
	tl := mustNew(t)
	tl, _ = tl.Deploy(1000)

	if err := tl.AssertAfterStage(tl.At(SrcPublicCancellation), SrcPublicCancellation); err != nil {
		t.Fatalf("at stage: %v", err)
	}
	if err := tl.AssertAfterStage(tl.At(SrcPublicCancellation)-1, SrcPublicCancellation); !errors.Is(err, ErrTimeWindowNotOpen) {
		t.Fatalf("before stage: got %v, want ErrTimeWindowNotOpen", err)
	}
}
