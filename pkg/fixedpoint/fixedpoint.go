// pkg/fixedpoint/fixedpoint.go
// Package fixedpoint multiplies and divides 256-bit token amounts by decimal
// fractions. Fractions are converted to exact integer ratios so rounding
// happens once, in the direction the caller asks for.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

var (
	ErrOverflow       = errors.New("arithmetic overflow")
	ErrUnderflow      = errors.New("arithmetic underflow")
	ErrNegative       = errors.New("negative fraction")
	ErrDivisionByZero = errors.New("division by zero")
)

// One is the decimal fraction 1.0.
var One = decimal.NewFromInt(1)

// ratio returns num and den with num/den == d exactly.
func ratio(d decimal.Decimal) (*big.Int, *big.Int, error) {
	if d.IsNegative() {
		return nil, nil, ErrNegative
	}

	num := d.Coefficient()
	den := big.NewInt(1)

	exp := d.Exponent()
	if exp >= 0 {
		num.Mul(num, pow10(exp))
	} else {
		den = pow10(-exp)
	}
	return num, den, nil
}

func pow10(n int32) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func fromBig(b *big.Int) (*uint256.Int, error) {
	if b.Sign() < 0 {
		return nil, ErrUnderflow
	}
	v, overflow := uint256.FromBig(b)
	if overflow {
		return nil, ErrOverflow
	}
	return v, nil
}

// quo divides x by y rounding toward zero, or away from zero when ceil is set.
func quo(x, y *big.Int, ceil bool) *big.Int {
	q, r := new(big.Int).QuoRem(x, y, new(big.Int))
	if ceil && r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}

// MulFloor returns floor(a * f).
func MulFloor(a *uint256.Int, f decimal.Decimal) (*uint256.Int, error) {
	return mul(a, f, false)
}

// MulCeil returns ceil(a * f).
func MulCeil(a *uint256.Int, f decimal.Decimal) (*uint256.Int, error) {
	return mul(a, f, true)
}

func mul(a *uint256.Int, f decimal.Decimal, ceil bool) (*uint256.Int, error) {
	num, den, err := ratio(f)
	if err != nil {
		return nil, err
	}
	x := new(big.Int).Mul(a.ToBig(), num)
	return fromBig(quo(x, den, ceil))
}

// DivFloor returns floor(a / f).
func DivFloor(a *uint256.Int, f decimal.Decimal) (*uint256.Int, error) {
	num, den, err := ratio(f)
	if err != nil {
		return nil, err
	}
	if num.Sign() == 0 {
		return nil, ErrDivisionByZero
	}
	x := new(big.Int).Mul(a.ToBig(), den)
	return fromBig(quo(x, num, false))
}

// Add returns a + b or ErrOverflow.
func Add(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Sub returns a - b or ErrUnderflow.
func Sub(a, b *uint256.Int) (*uint256.Int, error) {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		return nil, ErrUnderflow
	}
	return z, nil
}

// Mul returns a * b or ErrOverflow.
func Mul(a, b *uint256.Int) (*uint256.Int, error) {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		return nil, ErrOverflow
	}
	return z, nil
}

// Div returns floor(a / b).
func Div(a, b *uint256.Int) (*uint256.Int, error) {
	if b.IsZero() {
		return nil, ErrDivisionByZero
	}
	return new(uint256.Int).Div(a, b), nil
}

// ValidateFraction checks 0 <= f < 1.
func ValidateFraction(name string, f decimal.Decimal) error {
	if f.IsNegative() {
		return fmt.Errorf("%s must not be negative, got %s", name, f)
	}
	if f.GreaterThanOrEqual(One) {
		return fmt.Errorf("%s must be below 1, got %s", name, f)
	}
	return nil
}
