// Copyright 2025 Certen Protocol
//
// Package timelock packs the seven stage offsets that gate an escrow's
// entry operations into a single on-chain word, plus the deployment
// timestamp they are relative to.
package timelock

import (
	"errors"
	"fmt"
)

// Stage identifies one of the seven timelock boundaries. Offsets are seconds
// relative to Deployed, and must be non-decreasing within each chain's order:
// SrcWithdrawal <= SrcPublicWithdrawal <= SrcCancellation <= SrcPublicCancellation,
// DstWithdrawal <= DstPublicWithdrawal <= DstCancellation.
type Stage int

const (
	SrcWithdrawal Stage = iota
	SrcPublicWithdrawal
	SrcCancellation
	SrcPublicCancellation
	DstWithdrawal
	DstPublicWithdrawal
	DstCancellation
	stageCount
)

func (s Stage) String() string {
	switch s {
	case SrcWithdrawal:
		return "src_withdrawal"
	case SrcPublicWithdrawal:
		return "src_public_withdrawal"
	case SrcCancellation:
		return "src_cancellation"
	case SrcPublicCancellation:
		return "src_public_cancellation"
	case DstWithdrawal:
		return "dst_withdrawal"
	case DstPublicWithdrawal:
		return "dst_public_withdrawal"
	case DstCancellation:
		return "dst_cancellation"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Sentinel errors. All are transaction-reverting per the error taxonomy.
var (
	ErrTimeWindowNotOpen  = errors.New("timelock: time window not open")
	ErrTimeWindowClosed   = errors.New("timelock: time window closed")
	ErrOffsetsNotSorted   = errors.New("timelock: stage offsets must be non-decreasing per chain")
	ErrAlreadyDeployed    = errors.New("timelock: deployed_at already set")
)

// Timelocks is the packed value: one absolute deployment timestamp plus
// seven relative stage offsets, in seconds.
type Timelocks struct {
	Deployed int64 // Unix seconds; set exactly once, at escrow creation.
	offsets  [stageCount]uint32
}

// New builds a Timelocks from explicit offsets (seconds from deployment).
// Deployed is left zero; call Deploy exactly once before use.
func New(srcWithdrawal, srcPublicWithdrawal, srcCancellation, srcPublicCancellation,
	dstWithdrawal, dstPublicWithdrawal, dstCancellation uint32) (Timelocks, error) {
	t := Timelocks{offsets: [stageCount]uint32{
		srcWithdrawal, srcPublicWithdrawal, srcCancellation, srcPublicCancellation,
		dstWithdrawal, dstPublicWithdrawal, dstCancellation,
	}}
	if err := t.validateOrdering(); err != nil {
		return Timelocks{}, err
	}
	return t, nil
}

func (t Timelocks) validateOrdering() error {
	srcChain := []Stage{SrcWithdrawal, SrcPublicWithdrawal, SrcCancellation, SrcPublicCancellation}
	dstChain := []Stage{DstWithdrawal, DstPublicWithdrawal, DstCancellation}
	for _, chain := range [][]Stage{srcChain, dstChain} {
		for i := 1; i < len(chain); i++ {
			if t.offsets[chain[i-1]] > t.offsets[chain[i]] {
				return fmt.Errorf("%w: %s (%d) > %s (%d)", ErrOffsetsNotSorted,
					chain[i-1], t.offsets[chain[i-1]], chain[i], t.offsets[chain[i]])
			}
		}
	}
	return nil
}

// Offset returns the raw relative offset, in seconds, for a stage.
func (t Timelocks) Offset(s Stage) uint32 {
	return t.offsets[s]
}

// Deploy stamps the absolute deployment timestamp. Fails if already set,
// since deployed_at is set exactly once per the data-model invariant.
func (t Timelocks) Deploy(now int64) (Timelocks, error) {
	if t.Deployed != 0 {
		return Timelocks{}, ErrAlreadyDeployed
	}
	t.Deployed = now
	return t, nil
}

// At returns the absolute unix-second boundary for a stage.
func (t Timelocks) At(s Stage) int64 {
	return t.Deployed + int64(t.offsets[s])
}

// AssertInWindow succeeds iff now is in [At(open), At(close)).
func (t Timelocks) AssertInWindow(now int64, open, close Stage) error {
	if now < t.At(open) {
		return ErrTimeWindowNotOpen
	}
	if now >= t.At(close) {
		return ErrTimeWindowClosed
	}
	return nil
}

// AssertAfterStage succeeds iff now >= At(stage).
func (t Timelocks) AssertAfterStage(now int64, s Stage) error {
	if now < t.At(s) {
		return ErrTimeWindowNotOpen
	}
	return nil
}
