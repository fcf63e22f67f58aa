package ton

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

// NanoPerTON is the base-unit scale.
const NanoPerTON = 1_000_000_000

var ErrNegativeAmount = errors.New("amount must not be negative")

// ToNano converts a TON amount into nanotons. Digits below one nanoton are dropped.
func ToNano(amount decimal.Decimal) (*big.Int, error) {
	if amount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	return amount.Shift(9).Truncate(0).BigInt(), nil
}

// NanoFromFloat converts a float TON amount, going through its shortest
// decimal representation so 2.5 yields exactly 2500000000.
func NanoFromFloat(amount float64) (*big.Int, error) {
	return ToNano(decimal.NewFromFloat(amount))
}
