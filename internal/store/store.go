package store

import (
	"context"
	"errors"

	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/gagliardetto/solana-go"
)

var (
	ErrNotFound   = errors.New("pool not found")
	ErrPoolExists = errors.New("pool already exists")
	ErrConflict   = errors.New("pool record changed concurrently")
)

// PoolStore persists pool records keyed by pool address.
type PoolStore interface {
	// Create stores a new record and fails with ErrPoolExists if the address is taken.
	Create(ctx context.Context, rec pool.Record) error

	Get(ctx context.Context, address solana.PublicKey) (*pool.Record, error)

	List(ctx context.Context) ([]*pool.Record, error)

	// CompareAndSwap replaces expected with next. It fails with ErrConflict
	// if the stored record is no longer expected.
	CompareAndSwap(ctx context.Context, expected, next pool.Record) error

	// Delete removes the record at address, or fails with ErrNotFound.
	Delete(ctx context.Context, address solana.PublicKey) error
}
