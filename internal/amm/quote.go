package amm

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// pricePrecision is the number of decimal places kept in quoted prices.
const pricePrecision = 18

// Quote describes the outcome of a swap without executing it.
type Quote struct {
	AmountIn       uint64          `json:"amount_in"`
	AmountOut      uint64          `json:"amount_out"`
	MinAmountOut   uint64          `json:"min_amount_out"`
	FeeBps         uint64          `json:"fee_bps"`
	FeeAmount      uint64          `json:"fee_amount"`
	SlippageBps    uint64          `json:"slippage_bps"`
	SpotPrice      decimal.Decimal `json:"spot_price"`
	ExecutionPrice decimal.Decimal `json:"execution_price"`
	PriceImpact    decimal.Decimal `json:"price_impact"`
}

// NewQuote prices amountIn against the given reserves and derives the minimum
// acceptable output for a slippage tolerance of slippageBps.
func NewQuote(amountIn, reserveIn, reserveOut, feeBps, slippageBps uint64) (*Quote, error) {
	amountOut, err := ComputeSwapOutput(amountIn, reserveIn, reserveOut, feeBps)
	if err != nil {
		return nil, err
	}

	fee, err := W(amountIn).MulDiv(W(feeBps), W(BpsDenominator))
	if err != nil {
		return nil, err
	}
	feeAmount, err := fee.Uint64()
	if err != nil {
		return nil, err
	}

	spot := ratio(reserveOut, reserveIn)
	exec := ratio(amountOut, amountIn)

	return &Quote{
		AmountIn:       amountIn,
		AmountOut:      amountOut,
		MinAmountOut:   ApplySlippage(amountOut, slippageBps),
		FeeBps:         feeBps,
		FeeAmount:      feeAmount,
		SlippageBps:    slippageBps,
		SpotPrice:      spot,
		ExecutionPrice: exec,
		PriceImpact:    PriceImpact(spot, exec),
	}, nil
}

// ApplySlippage returns the minimum output accepted under a tolerance of
// slippageBps basis points.
func ApplySlippage(amountOut, slippageBps uint64) uint64 {
	if slippageBps >= BpsDenominator {
		return 0
	}
	// amountOut * (10000 - slippage) / 10000 always fits back into 64 bits.
	minOut, _ := W(amountOut).MulDiv(W(BpsDenominator-slippageBps), W(BpsDenominator))
	out, _ := minOut.Uint64()
	return out
}

// PriceImpact is 1 - execution/spot, floored at zero.
func PriceImpact(spot, execution decimal.Decimal) decimal.Decimal {
	if spot.IsZero() {
		return decimal.Zero
	}
	impact := decimal.NewFromInt(1).Sub(execution.DivRound(spot, pricePrecision))
	return decimal.Max(decimal.Zero, impact)
}

// ValidatePriceImpact fails when impact exceeds maxImpactBps.
func ValidatePriceImpact(impact decimal.Decimal, maxImpactBps uint64) error {
	limit := decimal.New(int64(maxImpactBps), -4)
	if impact.GreaterThan(limit) {
		return fmt.Errorf("price impact %s%% exceeds max %s%%",
			impact.Shift(2).StringFixed(4), limit.Shift(2).StringFixed(4))
	}
	return nil
}

func ratio(num, den uint64) decimal.Decimal {
	if den == 0 {
		return decimal.Zero
	}
	n := decimal.NewFromBigInt(new(big.Int).SetUint64(num), 0)
	d := decimal.NewFromBigInt(new(big.Int).SetUint64(den), 0)
	return n.DivRound(d, pricePrecision)
}
