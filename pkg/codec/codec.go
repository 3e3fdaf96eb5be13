// Copyright 2025 Certen Protocol
//
// Package codec decodes the limit-order extension's extraData tail into the
// swap parameters Order Integration needs, in one place with exhaustive
// tests, rather than ad hoc at each call site.
package codec

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/auction"
	"github.com/certen/escrow-core/pkg/immutables"
	"github.com/certen/escrow-core/pkg/timelock"
)

// ErrTruncated is returned when extraData ends before a fixed-width or
// length-prefixed field can be fully read.
var ErrTruncated = errors.New("codec: extraData truncated")

// DstParams is the destination-side half of the extraData tail: the
// complement the maker expects a resolver to instantiate on the
// destination chain.
type DstParams struct {
	ChainID       uint16
	TokenID       immutables.TokenID
	Amount        uint64
	SafetyDeposit uint64
}

// ExtraData is the fully decoded extension tail, per the wire layout:
// order_hash, hashlock, maker, token_id, amount, safety_deposit, timelocks,
// a destination-side complement, an optional partial-fill Merkle root, and
// the Dutch-auction curve.
type ExtraData struct {
	OrderHash     common.Hash
	Hashlock      common.Hash
	Maker         common.Address
	TokenID       immutables.TokenID
	Amount        uint64
	SafetyDeposit uint64
	Timelocks     timelock.Timelocks

	Dst DstParams

	PartsCount uint16 // 0 = single-fill
	MerkleRoot common.Hash // present iff PartsCount > 0

	Auction auction.Curve
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, error) {
	if r.off+n > len(r.buf) {
		return nil, ErrTruncated
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) u16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) u64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *reader) hash() (common.Hash, error) {
	b, err := r.take(32)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(b), nil
}

func (r *reader) address() (common.Address, error) {
	b, err := r.take(20)
	if err != nil {
		return common.Address{}, err
	}
	return common.BytesToAddress(b), nil
}

func (r *reader) tokenID() (immutables.TokenID, error) {
	b, err := r.take(20)
	if err != nil {
		return immutables.TokenID{}, err
	}
	return immutables.TokenIDFromAddress(common.BytesToAddress(b)), nil
}

// timelocks reads the 32-byte packed timelock word: 4 bytes of
// deployed_at padding (left unset pre-deployment) followed by the seven
// 4-byte stage offsets.
func (r *reader) timelocks() (timelock.Timelocks, error) {
	b, err := r.take(32)
	if err != nil {
		return timelock.Timelocks{}, err
	}
	offs := make([]uint32, 7)
	for i := range offs {
		offs[i] = binary.BigEndian.Uint32(b[4+i*4 : 8+i*4])
	}
	return timelock.New(offs[0], offs[1], offs[2], offs[3], offs[4], offs[5], offs[6])
}

// DecodeAuctionPoints decodes the length-prefixed auction_points tail into a
// Curve: a 2-byte point count, each point a (4-byte delay-from-order-creation
// seconds, 4-byte price-in-basis-points) pair; the first point's delay is
// auction_start's offset from the order's creation, the last is
// auction_end's. A single point describes a flat (non-decaying) price.
func DecodeAuctionPoints(b []byte, orderCreatedAt int64) (auction.Curve, error) {
	r := &reader{buf: b}
	count, err := r.u16()
	if err != nil {
		return auction.Curve{}, fmt.Errorf("codec: auction point count: %w", err)
	}
	if count == 0 {
		return auction.Curve{}, fmt.Errorf("codec: auction curve needs at least one point")
	}

	type point struct {
		delay uint32
		price uint32
	}
	points := make([]point, count)
	for i := range points {
		delayB, err := r.take(4)
		if err != nil {
			return auction.Curve{}, fmt.Errorf("codec: auction point %d delay: %w", i, err)
		}
		priceB, err := r.take(4)
		if err != nil {
			return auction.Curve{}, fmt.Errorf("codec: auction point %d price: %w", i, err)
		}
		points[i] = point{binary.BigEndian.Uint32(delayB), binary.BigEndian.Uint32(priceB)}
	}

	first, last := points[0], points[len(points)-1]
	return auction.Curve{
		Start:      orderCreatedAt + int64(first.delay),
		End:        orderCreatedAt + int64(last.delay),
		StartPrice: uint64(first.price),
		EndPrice:   uint64(last.price),
	}, nil
}

// Decode parses the full extraData tail. orderCreatedAt anchors the
// auction curve's relative delays to absolute unix-second timestamps.
func Decode(b []byte, orderCreatedAt int64) (ExtraData, error) {
	r := &reader{buf: b}
	var ed ExtraData
	var err error

	if ed.OrderHash, err = r.hash(); err != nil {
		return ExtraData{}, err
	}
	if ed.Hashlock, err = r.hash(); err != nil {
		return ExtraData{}, err
	}
	if ed.Maker, err = r.address(); err != nil {
		return ExtraData{}, err
	}
	if ed.TokenID, err = r.tokenID(); err != nil {
		return ExtraData{}, err
	}
	if ed.Amount, err = r.u64(); err != nil {
		return ExtraData{}, err
	}
	if ed.SafetyDeposit, err = r.u64(); err != nil {
		return ExtraData{}, err
	}
	if ed.Timelocks, err = r.timelocks(); err != nil {
		return ExtraData{}, err
	}

	if ed.Dst.ChainID, err = r.u16(); err != nil {
		return ExtraData{}, err
	}
	if ed.Dst.TokenID, err = r.tokenID(); err != nil {
		return ExtraData{}, err
	}
	if ed.Dst.Amount, err = r.u64(); err != nil {
		return ExtraData{}, err
	}
	if ed.Dst.SafetyDeposit, err = r.u64(); err != nil {
		return ExtraData{}, err
	}

	if ed.PartsCount, err = r.u16(); err != nil {
		return ExtraData{}, err
	}
	if ed.PartsCount > 0 {
		if ed.MerkleRoot, err = r.hash(); err != nil {
			return ExtraData{}, err
		}
	}

	auctionLen, err := r.u16()
	if err != nil {
		return ExtraData{}, fmt.Errorf("codec: auction_points length: %w", err)
	}
	auctionBytes, err := r.take(int(auctionLen))
	if err != nil {
		return ExtraData{}, fmt.Errorf("codec: auction_points body: %w", err)
	}
	if ed.Auction, err = DecodeAuctionPoints(auctionBytes, orderCreatedAt); err != nil {
		return ExtraData{}, err
	}

	return ed, nil
}
