// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package math

import (
	"errors"

	"github.com/holiman/uint256"
)

var (
	ErrOverflow     = errors.New("overflow")
	ErrUnderflow    = errors.New("underflow")
	ErrDivideByZero = errors.New("divide by zero")
)

// Add returns:
// 1) a + b
// 2) If there is overflow, an error
func Add(a, b uint64) (uint64, error) {
	if a > ^uint64(0)-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// Sub returns:
// 1) a - b
// 2) If there is underflow, an error
func Sub(a, b uint64) (uint64, error) {
	if a < b {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// MulDiv returns floor(a * b / d) computed in 256 bits, so the intermediate
// product never wraps.
func MulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, ErrDivideByZero
	}
	product := new(uint256.Int).Mul(uint256.NewInt(a), uint256.NewInt(b))
	quotient := product.Div(product, uint256.NewInt(d))
	if !quotient.IsUint64() {
		return 0, ErrOverflow
	}
	return quotient.Uint64(), nil
}

// Percent returns floor(part * 100 / whole). A zero whole yields zero.
func Percent(part, whole uint64) uint64 {
	if whole == 0 {
		return 0
	}
	// part*100/whole only exceeds uint64 when part > whole*~1.8e17, which
	// cannot happen for a share of a supply.
	p, err := MulDiv(part, 100, whole)
	if err != nil {
		return ^uint64(0)
	}
	return p
}

// AtLeastPercent reports whether amount >= percent% of total, without
// rounding amount down first.
func AtLeastPercent(amount, total, percent uint64) bool {
	lhs := new(uint256.Int).Mul(uint256.NewInt(amount), uint256.NewInt(100))
	rhs := new(uint256.Int).Mul(uint256.NewInt(total), uint256.NewInt(percent))
	return lhs.Cmp(rhs) >= 0
}
