package amm

// ComputeSharesForDeposit returns the number of pool shares minted for a
// deposit of (amountA, amountB).
//
// The first deposit into an empty pool mints floor(sqrt(amountA*amountB)).
// Later deposits mint the smaller of the two ratio-preserving amounts, so an
// off-ratio deposit is capped by its more constraining leg. The surplus of the
// other leg stays in the pool.
func ComputeSharesForDeposit(amountA, amountB, reserveA, reserveB, shareSupply uint64) (uint64, error) {
	if shareSupply == 0 {
		product, err := W(amountA).Mul(W(amountB))
		if err != nil {
			return 0, err
		}
		return product.Sqrt().Uint64()
	}

	supply := W(shareSupply)
	sharesA, err := W(amountA).MulDiv(supply, W(reserveA))
	if err != nil {
		return 0, err
	}
	sharesB, err := W(amountB).MulDiv(supply, W(reserveB))
	if err != nil {
		return 0, err
	}
	return MinWide(sharesA, sharesB).Uint64()
}

// ComputeWithdrawAmounts returns the reserves paid out for redeeming
// shareAmount shares. Both legs round down; the remainder stays with the
// remaining holders.
func ComputeWithdrawAmounts(shareAmount, reserveA, reserveB, shareSupply uint64) (uint64, uint64, error) {
	if shareAmount == 0 {
		return 0, 0, ErrInvalidCalculation
	}
	if shareSupply == 0 {
		return 0, 0, ErrInsufficientLiquidity
	}

	supply := W(shareSupply)
	amountA, err := W(reserveA).MulDiv(W(shareAmount), supply)
	if err != nil {
		return 0, 0, err
	}
	amountB, err := W(reserveB).MulDiv(W(shareAmount), supply)
	if err != nil {
		return 0, 0, err
	}

	outA, err := amountA.Uint64()
	if err != nil {
		return 0, 0, err
	}
	outB, err := amountB.Uint64()
	if err != nil {
		return 0, 0, err
	}
	return outA, outB, nil
}
