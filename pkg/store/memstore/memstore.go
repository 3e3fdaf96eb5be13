// Copyright 2025 Certen Protocol
//
// Package memstore is an in-memory store.EscrowStore used by tests and the
// reference cmd/escrowd demo.
package memstore

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/certen/escrow-core/pkg/store"
)

// Store is a mutex-protected in-memory EscrowStore.
type Store struct {
	mu      sync.Mutex
	escrows map[common.Address]store.EscrowRecord
	fills   map[common.Hash]store.FillRecord
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		escrows: make(map[common.Address]store.EscrowRecord),
		fills:   make(map[common.Hash]store.FillRecord),
	}
}

var _ store.EscrowStore = (*Store)(nil)

func (s *Store) SaveEscrow(_ context.Context, rec store.EscrowRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.escrows[rec.Address] = rec
	return nil
}

func (s *Store) GetEscrow(_ context.Context, address common.Address) (store.EscrowRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.escrows[address]
	if !ok {
		return store.EscrowRecord{}, store.ErrNotFound
	}
	return rec, nil
}

func (s *Store) SaveFill(_ context.Context, rec store.FillRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fills[rec.OrderHash] = rec
	return nil
}

func (s *Store) GetFill(_ context.Context, orderHash common.Hash) (store.FillRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.fills[orderHash]
	if !ok {
		return store.FillRecord{}, store.ErrNotFound
	}
	return rec, nil
}
