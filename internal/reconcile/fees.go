package reconcile

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var bpsDenominator = decimal.NewFromInt(10000)

// MaxFeeBps caps the platform fee at 10%.
const MaxFeeBps = 1000

// SplitAmount computes the platform fee and net receiver amount for an
// invoice amount and a basis-point fee. fee = floor(amount * bps / 10000),
// net = amount - fee, so net + fee == amount holds exactly.
func SplitAmount(amount decimal.Decimal, feeBps int64) (net, fee decimal.Decimal, err error) {
	if feeBps < 0 || feeBps > MaxFeeBps {
		return decimal.Zero, decimal.Zero, fmt.Errorf("fee %d bps out of range [0, %d]", feeBps, MaxFeeBps)
	}
	if amount.IsNegative() {
		return decimal.Zero, decimal.Zero, fmt.Errorf("negative amount %s", amount)
	}
	fee = amount.Mul(decimal.NewFromInt(feeBps)).Div(bpsDenominator).Floor()
	net = amount.Sub(fee)
	return net, fee, nil
}
