package internal

import (
	"math/bits"

	cerr "github.com/saeidalz13/battleship-escrow/internal/error"
)

// CheckedAdd returns a+b or ErrOverflow when the sum does not fit in 64 bits.
func CheckedAdd(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, cerr.ErrOverflow
	}
	return sum, nil
}

// CheckedMulDiv computes a*b/d with a 128-bit intermediate product.
func CheckedMulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, cerr.ErrOverflow
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= d {
		return 0, cerr.ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, d)
	return quo, nil
}
