// Copyright 2025 Certen Protocol
//
// Package immutables defines the frozen EscrowImmutables parameter tuple,
// its canonical hash (the escrow identity), and deterministic escrow
// address derivation.
package immutables

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"

	"github.com/certen/escrow-core/pkg/timelock"
)

// TokenID is an opaque fungible-asset identifier. On an EVM host this is the
// token contract address; other hosts may encode a different scheme, as
// long as it round-trips through these 32 bytes.
type TokenID [32]byte

// TokenIDFromAddress packs an EVM token contract address into a TokenID.
func TokenIDFromAddress(addr common.Address) TokenID {
	var id TokenID
	copy(id[12:], addr[:])
	return id
}

// ChainRole distinguishes the source escrow (holds the maker's tokens) from
// the destination escrow (holds the taker's tokens).
type ChainRole uint8

const (
	Src ChainRole = iota
	Dst
)

// EscrowImmutables is the frozen parameter tuple identifying one escrow.
// It never mutates after creation; callers re-supply it on every operation
// and the escrow re-verifies its hash (see Escrow.authenticate).
type EscrowImmutables struct {
	OrderHash     common.Hash
	Hashlock      common.Hash
	Maker         common.Address
	Taker         common.Address
	TokenID       TokenID
	Amount        uint64
	SafetyDeposit uint64
	Timelocks     timelock.Timelocks
}

// Hash returns the canonical SHA3-256 digest of the immutables tuple — the
// escrow identity. Encoding is fixed-width and field-order dependent so
// that it agrees exactly with what Factory derives addresses from.
func (im EscrowImmutables) Hash() common.Hash {
	h := sha3.New256()
	h.Write(im.OrderHash[:])
	h.Write(im.Hashlock[:])
	h.Write(im.Maker[:])
	h.Write(im.Taker[:])
	h.Write(im.TokenID[:])

	var amountBuf, depositBuf [8]byte
	binary.BigEndian.PutUint64(amountBuf[:], im.Amount)
	binary.BigEndian.PutUint64(depositBuf[:], im.SafetyDeposit)
	h.Write(amountBuf[:])
	h.Write(depositBuf[:])

	var deployedBuf [8]byte
	binary.BigEndian.PutUint64(deployedBuf[:], uint64(im.Timelocks.Deployed))
	h.Write(deployedBuf[:])
	for s := timelock.SrcWithdrawal; s <= timelock.DstCancellation; s++ {
		var offBuf [4]byte
		binary.BigEndian.PutUint32(offBuf[:], im.Timelocks.Offset(s))
		h.Write(offBuf[:])
	}

	var out common.Hash
	h.Sum(out[:0])
	return out
}

// HashSecret returns SHA3-256(secret), the value compared against Hashlock.
func HashSecret(secret [32]byte) common.Hash {
	h := sha3.Sum256(secret[:])
	return common.Hash(h)
}

// DeriveAddress computes the deterministic escrow address for a given
// factory, immutables hash, and chain role. It is pure and side-effect
// free so a resolver can pre-compute the destination address and pre-fund
// the safety deposit before the escrow exists. Domain-separating the
// role byte keeps a source and destination escrow for the same immutables
// hash (which should never happen, but costs nothing to rule out) from
// colliding.
func DeriveAddress(factoryID common.Address, immutablesHash common.Hash, role ChainRole) common.Address {
	h := sha3.New256()
	h.Write([]byte("escrow-address-v1"))
	h.Write(factoryID[:])
	h.Write(immutablesHash[:])
	h.Write([]byte{byte(role)})
	var digest common.Hash
	h.Sum(digest[:0])
	return common.BytesToAddress(digest[12:])
}
