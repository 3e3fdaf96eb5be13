// Copyright 2025 Certen Protocol
//
// Package events defines the canonical event payloads emitted by the
// escrow core and the Emitter seam the off-chain relayer listens on.
// Structuring these as concrete Go types (rather than leaving them as the
// spec's prose) is what makes them independently testable and consumable.
package events

import (
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/certen/escrow-core/pkg/immutables"
)

// DstImmutablesComplement is emitted inside SrcEscrowCreated so the
// off-chain observer knows what the destination escrow must commit to.
type DstImmutablesComplement struct {
	Maker         common.Address
	Amount        uint64
	TokenID       immutables.TokenID
	SafetyDeposit uint64
	ChainID       uint16
}

// SrcEscrowCreated is emitted by Factory.CreateSrcEscrow.
type SrcEscrowCreated struct {
	CorrelationID uuid.UUID
	Immutables    immutables.EscrowImmutables
	DstComplement DstImmutablesComplement
	Timestamp     time.Time
}

// DstEscrowCreated is emitted by Factory.CreateDstEscrow.
type DstEscrowCreated struct {
	CorrelationID  uuid.UUID
	ImmutablesHash common.Hash
	Taker          common.Address
	Timestamp      time.Time
}

// EscrowWithdrawn is emitted by any successful withdraw_* transition.
type EscrowWithdrawn struct {
	CorrelationID  uuid.UUID
	ImmutablesHash common.Hash
	Secret         [32]byte
	Recipient      common.Address
}

// EscrowCancelled is emitted by any successful cancel_* transition.
type EscrowCancelled struct {
	CorrelationID  uuid.UUID
	ImmutablesHash common.Hash
	Recipient      common.Address
}

// FundsRescued is emitted by a successful rescue sweep.
type FundsRescued struct {
	CorrelationID  uuid.UUID
	ImmutablesHash common.Hash
	Amount         uint64
	TokenID        immutables.TokenID
}

// Emitter is the seam escrow/factory/feebank code emits events through.
// The off-chain relayer and secret-distribution service this core hands
// off to are treated as trusted external collaborators reached only
// through this interface.
type Emitter interface {
	EmitSrcEscrowCreated(SrcEscrowCreated)
	EmitDstEscrowCreated(DstEscrowCreated)
	EmitEscrowWithdrawn(EscrowWithdrawn)
	EmitEscrowCancelled(EscrowCancelled)
	EmitFundsRescued(FundsRescued)
}

// LogEmitter emits every event as a structured log line. It is the default
// Emitter for cmd/escrowd.
type LogEmitter struct {
	logger *log.Logger
}

// NewLogEmitter returns an Emitter that writes to logger, or a default
// bracketed-prefix logger if logger is nil.
func NewLogEmitter(logger *log.Logger) *LogEmitter {
	if logger == nil {
		logger = log.New(log.Writer(), "[Events] ", log.LstdFlags)
	}
	return &LogEmitter{logger: logger}
}

func (e *LogEmitter) EmitSrcEscrowCreated(ev SrcEscrowCreated) {
	e.logger.Printf("SrcEscrowCreated correlation=%s immutables_hash=%s maker=%s taker=%s",
		ev.CorrelationID, ev.Immutables.Hash(), ev.Immutables.Maker, ev.Immutables.Taker)
}

func (e *LogEmitter) EmitDstEscrowCreated(ev DstEscrowCreated) {
	e.logger.Printf("DstEscrowCreated correlation=%s immutables_hash=%s taker=%s", ev.CorrelationID, ev.ImmutablesHash, ev.Taker)
}

func (e *LogEmitter) EmitEscrowWithdrawn(ev EscrowWithdrawn) {
	e.logger.Printf("EscrowWithdrawn correlation=%s immutables_hash=%s recipient=%s", ev.CorrelationID, ev.ImmutablesHash, ev.Recipient)
}

func (e *LogEmitter) EmitEscrowCancelled(ev EscrowCancelled) {
	e.logger.Printf("EscrowCancelled correlation=%s immutables_hash=%s recipient=%s", ev.CorrelationID, ev.ImmutablesHash, ev.Recipient)
}

func (e *LogEmitter) EmitFundsRescued(ev FundsRescued) {
	e.logger.Printf("FundsRescued correlation=%s immutables_hash=%s amount=%d", ev.CorrelationID, ev.ImmutablesHash, ev.Amount)
}

var _ Emitter = (*LogEmitter)(nil)

// ChannelEmitter fans every event out onto buffered channels, for tests and
// for the off-chain relayer to consume directly in-process.
type ChannelEmitter struct {
	SrcEscrowCreatedCh chan SrcEscrowCreated
	DstEscrowCreatedCh chan DstEscrowCreated
	WithdrawnCh        chan EscrowWithdrawn
	CancelledCh        chan EscrowCancelled
	RescuedCh          chan FundsRescued
}

// NewChannelEmitter returns a ChannelEmitter with buffered channels of the
// given capacity.
func NewChannelEmitter(buffer int) *ChannelEmitter {
	return &ChannelEmitter{
		SrcEscrowCreatedCh: make(chan SrcEscrowCreated, buffer),
		DstEscrowCreatedCh: make(chan DstEscrowCreated, buffer),
		WithdrawnCh:        make(chan EscrowWithdrawn, buffer),
		CancelledCh:        make(chan EscrowCancelled, buffer),
		RescuedCh:          make(chan FundsRescued, buffer),
	}
}

func (e *ChannelEmitter) EmitSrcEscrowCreated(ev SrcEscrowCreated) { e.SrcEscrowCreatedCh <- ev }
func (e *ChannelEmitter) EmitDstEscrowCreated(ev DstEscrowCreated) { e.DstEscrowCreatedCh <- ev }
func (e *ChannelEmitter) EmitEscrowWithdrawn(ev EscrowWithdrawn)   { e.WithdrawnCh <- ev }
func (e *ChannelEmitter) EmitEscrowCancelled(ev EscrowCancelled)   { e.CancelledCh <- ev }
func (e *ChannelEmitter) EmitFundsRescued(ev FundsRescued)        { e.RescuedCh <- ev }

var _ Emitter = (*ChannelEmitter)(nil)
