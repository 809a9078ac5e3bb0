package types

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	coreerrors "crosshub/core/errors"
)

// BpsDenominator is the basis point scale.
const BpsDenominator = 10_000

// Zero returns a fresh zero amount.
func Zero() *uint256.Int { return new(uint256.Int) }

// CloneAmount copies v, treating nil as zero.
func CloneAmount(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(v)
}

// IsZero reports whether v is nil or zero.
func IsZero(v *uint256.Int) bool { return v == nil || v.IsZero() }

// CheckedAdd returns a+b or ErrOverflow.
func CheckedAdd(a, b *uint256.Int) (*uint256.Int, error) {
	sum, overflow := new(uint256.Int).AddOverflow(CloneAmount(a), CloneAmount(b))
	if overflow {
		return nil, coreerrors.ErrOverflow
	}
	return sum, nil
}

// CheckedSub returns a-b or ErrUnderflow.
func CheckedSub(a, b *uint256.Int) (*uint256.Int, error) {
	diff, underflow := new(uint256.Int).SubOverflow(CloneAmount(a), CloneAmount(b))
	if underflow {
		return nil, coreerrors.ErrUnderflow
	}
	return diff, nil
}

// MinAmount returns the smaller of a and b.
func MinAmount(a, b *uint256.Int) *uint256.Int {
	if a.Lt(b) {
		return CloneAmount(a)
	}
	return CloneAmount(b)
}

// MulBpsCeil returns ceil(amount * bps / 10000).
func MulBpsCeil(amount *uint256.Int, bps uint64) (*uint256.Int, error) {
	product, overflow := new(uint256.Int).MulOverflow(CloneAmount(amount), uint256.NewInt(bps))
	if overflow {
		return nil, coreerrors.ErrOverflow
	}
	denom := uint256.NewInt(BpsDenominator)
	quo, rem := new(uint256.Int).DivMod(product, denom, new(uint256.Int))
	if !rem.IsZero() {
		quo.AddUint64(quo, 1)
	}
	return quo, nil
}

// ParseAmount parses a base-10 amount.
func ParseAmount(raw string) (*uint256.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount required")
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	return v, nil
}
