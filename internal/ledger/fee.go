package ledger

import (
	"fmt"

	"github.com/holiman/uint256"
)

// FeeFraction 手续费比例 numerator/denominator
type FeeFraction struct {
	Numerator   uint32 `json:"numerator" yaml:"numerator"`
	Denominator uint32 `json:"denominator" yaml:"denominator"`
}

func (f FeeFraction) Validate() error {
	if f.Denominator == 0 {
		return fmt.Errorf("%w: fee denominator is zero", ErrInvalidArgument)
	}
	if f.Numerator > f.Denominator {
		return fmt.Errorf("%w: fee %d/%d exceeds 1", ErrInvalidArgument, f.Numerator, f.Denominator)
	}
	return nil
}

// Apply returns floor(amount * numerator / denominator). The product is
// computed at 256 bits, so any 128-bit amount is safe.
func (f FeeFraction) Apply(amount Amount) Amount {
	if f.Denominator == 0 || f.Numerator == 0 {
		return Amount{}
	}
	var z Amount
	z.Mul(uint256.NewInt(uint64(f.Numerator)), &amount)
	z.Div(&z, uint256.NewInt(uint64(f.Denominator)))
	return z
}

func (f FeeFraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}
