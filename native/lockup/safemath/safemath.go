// Package safemath provides checked arithmetic over uint64 amounts. Every
// amount computation in the lockup engine routes through it so that overflow,
// underflow and division by zero surface as errors instead of wrapped values.
package safemath

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"
)

// ErrOverflow is the sentinel wrapped by every failed operation.
var ErrOverflow = errors.New("safemath: overflow")

func overflowAt() error {
	if _, file, line, ok := runtime.Caller(2); ok {
		return fmt.Errorf("%w at %s:%d", ErrOverflow, file, line)
	}
	return ErrOverflow
}

// Add returns a+b or ErrOverflow when the sum does not fit in uint64.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, overflowAt()
	}
	return sum, nil
}

// Sub returns a-b or ErrOverflow when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, overflowAt()
	}
	return diff, nil
}

// Mul returns a*b or ErrOverflow when the product does not fit in uint64.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, overflowAt()
	}
	return lo, nil
}

// Div returns a/b truncated toward zero, or ErrOverflow when b is zero.
func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, overflowAt()
	}
	return a / b, nil
}
