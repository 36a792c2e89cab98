package amm

import "errors"

// Pool operation failures. Every one of them is terminal for the request that
// produced it and leaves pool state untouched.
var (
	ErrSlippageExceeded      = errors.New("slippage tolerance exceeded")
	ErrInvalidCalculation    = errors.New("invalid calculation")
	ErrInsufficientLiquidity = errors.New("insufficient liquidity in pool")
	ErrMathOverflow          = errors.New("math overflow")
	ErrInvalidTokenMints     = errors.New("invalid token mints: must be different")
)

// codeBase is where numbered error codes start. Clients that already decode
// pool program errors rely on these values.
const codeBase = 6000

var codes = []error{
	ErrSlippageExceeded,
	ErrInvalidCalculation,
	ErrInsufficientLiquidity,
	ErrMathOverflow,
	ErrInvalidTokenMints,
}

// Code returns the numeric code of a pool error, or false when err does not
// wrap one of the sentinels above.
func Code(err error) (int, bool) {
	for i, e := range codes {
		if errors.Is(err, e) {
			return codeBase + i, true
		}
	}
	return 0, false
}

// IsPoolError reports whether err wraps one of the pool operation failures.
func IsPoolError(err error) bool {
	_, ok := Code(err)
	return ok
}
