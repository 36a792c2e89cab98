package service

import (
	"fmt"

	"github.com/aman-zulfiqar/minidex/internal/amm"
	"github.com/aman-zulfiqar/minidex/internal/pool"
	"github.com/gagliardetto/solana-go"
)

// Limits are operator risk settings applied on top of pool rules.
// Zero values disable the corresponding check.
type Limits struct {
	// Max price impact of a swap in bps (e.g., 500 = 5%)
	MaxPriceImpactBps uint64

	// Max slippage tolerance accepted on quotes in bps
	MaxSlippageBps uint64

	// Assets allowed in new pools (empty = allow all)
	AllowedAssets []solana.PublicKey
}

// DefaultLimits returns permissive settings: only slippage is capped.
func DefaultLimits() Limits {
	return Limits{
		MaxSlippageBps: 5000,
	}
}

func (l Limits) checkAssets(assetA, assetB solana.PublicKey) error {
	if len(l.AllowedAssets) == 0 {
		return nil
	}
	if !l.allowed(assetA) || !l.allowed(assetB) {
		return fmt.Errorf("%w: asset not whitelisted: %s or %s", ErrRiskRejected, assetA, assetB)
	}
	return nil
}

func (l Limits) allowed(asset solana.PublicKey) bool {
	for _, a := range l.AllowedAssets {
		if a.Equals(asset) {
			return true
		}
	}
	return false
}

func (l Limits) checkSlippage(slippageBps uint64) error {
	if slippageBps > amm.BpsDenominator {
		return fmt.Errorf("%w: slippage %d bps out of range", ErrRiskRejected, slippageBps)
	}
	if l.MaxSlippageBps > 0 && slippageBps > l.MaxSlippageBps {
		return fmt.Errorf("%w: slippage %d bps exceeds max %d bps", ErrRiskRejected, slippageBps, l.MaxSlippageBps)
	}
	return nil
}

func (l Limits) checkImpact(rec pool.Record, req pool.SwapRequest) error {
	if l.MaxPriceImpactBps == 0 {
		return nil
	}
	reserveIn, reserveOut := rec.Reserves(req.Direction)
	q, err := amm.NewQuote(req.AmountIn, reserveIn, reserveOut, rec.FeeBps, 0)
	if err != nil {
		return err
	}
	if err := amm.ValidatePriceImpact(q.PriceImpact, l.MaxPriceImpactBps); err != nil {
		return fmt.Errorf("%w: %v", ErrRiskRejected, err)
	}
	return nil
}
