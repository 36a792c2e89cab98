package amm

// BpsDenominator is 100% expressed in basis points.
const BpsDenominator = 10_000

// ComputeSwapOutput prices amountIn against a constant-product pool.
//
// The fee is taken from the input leg before the exchange ratio is applied:
//
//	out = floor(amountIn*(10000-fee)*reserveOut / (reserveIn*10000 + amountIn*(10000-fee)))
//
// Division floors, so the pool always rounds in its own favour. A zero result
// is returned as-is; callers decide whether it is acceptable.
func ComputeSwapOutput(amountIn, reserveIn, reserveOut, feeBps uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrInvalidCalculation
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, ErrInsufficientLiquidity
	}
	if feeBps > BpsDenominator {
		return 0, ErrInvalidCalculation
	}

	feeMultiplier, err := W(BpsDenominator).Sub(W(feeBps))
	if err != nil {
		return 0, err
	}

	amountInWithFee, err := W(amountIn).Mul(feeMultiplier)
	if err != nil {
		return 0, err
	}

	numerator, err := amountInWithFee.Mul(W(reserveOut))
	if err != nil {
		return 0, err
	}

	scaledReserveIn, err := W(reserveIn).Mul(W(BpsDenominator))
	if err != nil {
		return 0, err
	}
	denominator, err := scaledReserveIn.Add(amountInWithFee)
	if err != nil {
		return 0, err
	}

	amountOut, err := numerator.Div(denominator)
	if err != nil {
		return 0, err
	}
	return amountOut.Uint64()
}
