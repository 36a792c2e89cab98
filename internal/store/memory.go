package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/gagliardetto/solana-go"
)

// MemoryStore is a process-local PoolStore. Records are kept encoded so that
// compare-and-swap has the same byte-level semantics as RedisStore.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[solana.PublicKey][]byte
}

var _ PoolStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[solana.PublicKey][]byte)}
}

func (s *MemoryStore) Create(ctx context.Context, rec pool.Record) error {
	data, err := pool.EncodeRecord(rec)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[rec.Address]; ok {
		return ErrPoolExists
	}
	s.records[rec.Address] = data
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, address solana.PublicKey) (*pool.Record, error) {
	s.mu.RLock()
	data, ok := s.records[address]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return pool.DecodeRecord(data)
}

func (s *MemoryStore) List(ctx context.Context) ([]*pool.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*pool.Record, 0, len(s.records))
	for _, data := range s.records {
		rec, err := pool.DecodeRecord(data)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sortRecords(out)
	return out, nil
}

func (s *MemoryStore) CompareAndSwap(ctx context.Context, expected, next pool.Record) error {
	if !expected.Address.Equals(next.Address) {
		return fmt.Errorf("compare and swap: address changed from %s to %s", expected.Address, next.Address)
	}
	want, err := pool.EncodeRecord(expected)
	if err != nil {
		return err
	}
	data, err := pool.EncodeRecord(next)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.records[next.Address]
	if !ok {
		return ErrNotFound
	}
	if !bytes.Equal(cur, want) {
		return ErrConflict
	}
	s.records[next.Address] = data
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, address solana.PublicKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[address]; !ok {
		return ErrNotFound
	}
	delete(s.records, address)
	return nil
}

func sortRecords(recs []*pool.Record) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].Address.String() < recs[j].Address.String()
	})
}
