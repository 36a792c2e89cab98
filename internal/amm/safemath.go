package amm

import (
	"math/bits"

	"github.com/holiman/uint256"
)

// WideBits is the width of every intermediate result. Two 64-bit operands
// always fit in a product of this width; anything larger is an overflow.
const WideBits = 128

// Wide is a checked unsigned integer of at most WideBits bits. The zero value
// is 0. Operations never wrap: a result that does not fit fails with
// ErrMathOverflow and the operands are left as they were.
type Wide struct {
	v uint256.Int
}

// W widens a 64-bit quantity.
func W(x uint64) Wide {
	var w Wide
	w.v.SetUint64(x)
	return w
}

func (a Wide) fits() bool {
	return a.v.BitLen() <= WideBits
}

// Add returns a+b.
func (a Wide) Add(b Wide) (Wide, error) {
	var out Wide
	if _, overflow := out.v.AddOverflow(&a.v, &b.v); overflow || !out.fits() {
		return Wide{}, ErrMathOverflow
	}
	return out, nil
}

// Sub returns a-b. Going below zero is reported as ErrMathOverflow.
func (a Wide) Sub(b Wide) (Wide, error) {
	var out Wide
	if _, underflow := out.v.SubOverflow(&a.v, &b.v); underflow {
		return Wide{}, ErrMathOverflow
	}
	return out, nil
}

// Mul returns a*b.
func (a Wide) Mul(b Wide) (Wide, error) {
	var out Wide
	if _, overflow := out.v.MulOverflow(&a.v, &b.v); overflow || !out.fits() {
		return Wide{}, ErrMathOverflow
	}
	return out, nil
}

// Div returns floor(a/b).
func (a Wide) Div(b Wide) (Wide, error) {
	if b.v.IsZero() {
		return Wide{}, ErrInvalidCalculation
	}
	var out Wide
	out.v.Div(&a.v, &b.v)
	return out, nil
}

// MulDiv returns floor(a*b/c) with the product held at full width.
func (a Wide) MulDiv(b, c Wide) (Wide, error) {
	p, err := a.Mul(b)
	if err != nil {
		return Wide{}, err
	}
	return p.Div(c)
}

// Sqrt returns floor(sqrt(a)), computed entirely in the integer domain.
func (a Wide) Sqrt() Wide {
	var out Wide
	out.v.Sqrt(&a.v)
	return out
}

// Uint64 narrows a back to 64 bits. A value that does not fit is
// ErrInvalidCalculation; it is never truncated.
func (a Wide) Uint64() (uint64, error) {
	if !a.v.IsUint64() {
		return 0, ErrInvalidCalculation
	}
	return a.v.Uint64(), nil
}

func (a Wide) Cmp(b Wide) int { return a.v.Cmp(&b.v) }

// MinWide returns the smaller of a and b.
func MinWide(a, b Wide) Wide {
	if a.Cmp(b) <= 0 {
		return a
	}
	return b
}

// CheckedAdd returns a+b or ErrMathOverflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrMathOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrMathOverflow when b > a.
func CheckedSub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, ErrMathOverflow
	}
	return diff, nil
}
