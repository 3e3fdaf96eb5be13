// Copyright 2025 Certen Protocol

package codec

import (
	"encoding/binary"

	"github.com/certen/escrow-core/pkg/timelock"
)

// AuctionPoint is one (delay, price) knot in the encoded auction curve,
// delay given as seconds from the order's creation.
type AuctionPoint struct {
	Delay uint32
	Price uint32
}

// EncodeAuctionPoints is the inverse of DecodeAuctionPoints, used by tests
// and by whatever constructs the extension on the maker's side.
func EncodeAuctionPoints(points []AuctionPoint) []byte {
	out := make([]byte, 2, 2+8*len(points))
	binary.BigEndian.PutUint16(out, uint16(len(points)))
	for _, p := range points {
		var buf [8]byte
		binary.BigEndian.PutUint32(buf[0:4], p.Delay)
		binary.BigEndian.PutUint32(buf[4:8], p.Price)
		out = append(out, buf[:]...)
	}
	return out
}

// EncodeFull appends the length-prefixed auction_points tail to Encode's
// output, producing a byte stream Decode can fully round-trip.
func EncodeFull(ed ExtraData, points []AuctionPoint) []byte {
	out := Encode(ed)
	body := EncodeAuctionPoints(points)
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(body)))
	out = append(out, lenBuf[:]...)
	out = append(out, body...)
	return out
}

// Encode is the inverse of Decode, excluding the auction_points tail (see
// EncodeFull).
func Encode(ed ExtraData) []byte {
	var out []byte
	out = append(out, ed.OrderHash[:]...)
	out = append(out, ed.Hashlock[:]...)
	out = append(out, ed.Maker[:]...)
	out = append(out, ed.TokenID[12:]...)

	var amountBuf, depositBuf [8]byte
	binary.BigEndian.PutUint64(amountBuf[:], ed.Amount)
	binary.BigEndian.PutUint64(depositBuf[:], ed.SafetyDeposit)
	out = append(out, amountBuf[:]...)
	out = append(out, depositBuf[:]...)

	out = append(out, encodeTimelocks(ed.Timelocks)...)

	var chainIDBuf [2]byte
	binary.BigEndian.PutUint16(chainIDBuf[:], ed.Dst.ChainID)
	out = append(out, chainIDBuf[:]...)
	out = append(out, ed.Dst.TokenID[12:]...)

	var dstAmountBuf, dstDepositBuf [8]byte
	binary.BigEndian.PutUint64(dstAmountBuf[:], ed.Dst.Amount)
	binary.BigEndian.PutUint64(dstDepositBuf[:], ed.Dst.SafetyDeposit)
	out = append(out, dstAmountBuf[:]...)
	out = append(out, dstDepositBuf[:]...)

	var partsBuf [2]byte
	binary.BigEndian.PutUint16(partsBuf[:], ed.PartsCount)
	out = append(out, partsBuf[:]...)
	if ed.PartsCount > 0 {
		out = append(out, ed.MerkleRoot[:]...)
	}

	return out
}

func encodeTimelocks(t timelock.Timelocks) []byte {
	buf := make([]byte, 32)
	for i, s := range []timelock.Stage{
		timelock.SrcWithdrawal, timelock.SrcPublicWithdrawal, timelock.SrcCancellation, timelock.SrcPublicCancellation,
		timelock.DstWithdrawal, timelock.DstPublicWithdrawal, timelock.DstCancellation,
	} {
		binary.BigEndian.PutUint32(buf[4+i*4:8+i*4], t.Offset(s))
	}
	return buf
}
