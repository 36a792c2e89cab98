// ============================================================================
// models/event.go
// ============================================================================
package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind names the pool transition an event records.
type EventKind string

const (
	EventPoolCreated      EventKind = "pool_created"
	EventLiquidityAdded   EventKind = "liquidity_added"
	EventSwap             EventKind = "swap"
	EventLiquidityRemoved EventKind = "liquidity_removed"
)

// PoolEvent is emitted after a pool transition has committed.
type PoolEvent struct {
	ID        string    `json:"id"`
	Kind      EventKind `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	Pool      string    `json:"pool"`
	Owner     string    `json:"owner,omitempty"`
	AssetA    string    `json:"asset_a"`
	AssetB    string    `json:"asset_b"`
	SymbolA   string    `json:"symbol_a,omitempty"` // set for well-known mints
	SymbolB   string    `json:"symbol_b,omitempty"`
	Direction string    `json:"direction,omitempty"` // "a_to_b" or "b_to_a" for swaps
	AmountA   uint64    `json:"amount_a"`
	AmountB   uint64    `json:"amount_b"`
	AmountIn  uint64    `json:"amount_in"`
	AmountOut uint64    `json:"amount_out"`
	Shares    uint64    `json:"shares"`
	ReserveA  uint64    `json:"reserve_a"`
	ReserveB  uint64    `json:"reserve_b"`
	FeeBps    uint64    `json:"fee_bps"`
}

// NewPoolEvent stamps a fresh event with an ID and the current UTC time.
func NewPoolEvent(kind EventKind) *PoolEvent {
	return &PoolEvent{
		ID:        uuid.NewString(),
		Kind:      kind,
		Timestamp: time.Now().UTC(),
	}
}
