package server

import (
	"github.com/aman-zulfiqar/minidex/internal/pool"
)

// ErrorResponse represents a standardized error response format
type ErrorResponse struct {
	Error   string `json:"error"`             // Human-readable error message
	Code    int    `json:"code"`              // HTTP status code
	Details any    `json:"details,omitempty"` // Additional error details
}

// HealthResponse represents the health check response
type HealthResponse struct {
	OK        bool   `json:"ok"`
	ProgramID string `json:"program_id"`
}

// CreatePoolRequest opens a pool for an ordered asset pair
type CreatePoolRequest struct {
	AssetA string  `json:"asset_a"`
	AssetB string  `json:"asset_b"`
	FeeBps *uint64 `json:"fee_bps,omitempty"` // Defaults to the server fee when omitted
}

// AddLiquidityRequest deposits both assets in exchange for shares
type AddLiquidityRequest struct {
	Owner     string `json:"owner"`
	AmountA   uint64 `json:"amount_a"`
	AmountB   uint64 `json:"amount_b"`
	MinShares uint64 `json:"min_shares"`
}

// SwapRequest trades amount_in of one asset for the other
type SwapRequest struct {
	Owner        string `json:"owner"`
	AmountIn     uint64 `json:"amount_in"`
	MinAmountOut uint64 `json:"min_amount_out"`
	Direction    string `json:"direction"` // a_to_b (default) or b_to_a
}

// RemoveLiquidityRequest burns shares for a pro-rata cut of both reserves
type RemoveLiquidityRequest struct {
	Owner      string `json:"owner"`
	Shares     uint64 `json:"shares"`
	MinAmountA uint64 `json:"min_amount_a"`
	MinAmountB uint64 `json:"min_amount_b"`
}

// FundRequest credits a development account
type FundRequest struct {
	Owner  string `json:"owner"`
	Asset  string `json:"asset"`
	Amount uint64 `json:"amount"`
}

// BalanceResponse reports one account balance
type BalanceResponse struct {
	Owner   string `json:"owner"`
	Asset   string `json:"asset"`
	Balance uint64 `json:"balance"`
}

// PoolsResponse lists pool records
type PoolsResponse struct {
	Items []*pool.Record `json:"items"`
}
