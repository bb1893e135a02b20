package ledger

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
)

// Amount 是账本中的余额，取值范围 [0, 2^128-1]。
// 中间计算使用 256 位宽度。
type Amount = uint256.Int

var maxAmount = func() Amount {
	var m Amount
	m.Lsh(uint256.NewInt(1), 128)
	m.SubUint64(&m, 1)
	return m
}()

// MaxAmount returns the largest representable balance.
func MaxAmount() Amount {
	return maxAmount
}

func NewAmount(v uint64) Amount {
	return *uint256.NewInt(v)
}

// ParseAmount parses a base-10 integer string.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty amount", ErrInvalidArgument)
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: amount %q: %v", ErrInvalidArgument, s, err)
	}
	if v.BitLen() > 128 {
		return Amount{}, fmt.Errorf("%w: amount %s exceeds 128 bits", ErrOverflow, s)
	}
	return *v, nil
}

// MustAmount is ParseAmount for constants; it panics on bad input.
func MustAmount(s string) Amount {
	v, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return v
}

func addAmounts(a, b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.AddOverflow(&a, &b); overflow || z.BitLen() > 128 {
		return Amount{}, fmt.Errorf("%w: %s + %s", ErrOverflow, a.Dec(), b.Dec())
	}
	return z, nil
}

func subAmounts(a, b Amount) (Amount, error) {
	if b.Gt(&a) {
		return Amount{}, fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, a.Dec(), b.Dec())
	}
	var z Amount
	z.Sub(&a, &b)
	return z, nil
}

// mulDiv computes floor(x*y/d) with a 512-bit intermediate product.
// d must be non-zero.
func mulDiv(x, y, d Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.MulDivOverflow(&x, &y, &d); overflow || z.BitLen() > 128 {
		return Amount{}, fmt.Errorf("%w: %s * %s / %s", ErrOverflow, x.Dec(), y.Dec(), d.Dec())
	}
	return z, nil
}

func minAmount(a, b Amount) Amount {
	if a.Lt(&b) {
		return a
	}
	return b
}
