package types

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToSmallestUnit converts a human-denominated amount ("0.5") into the token's
// integer base unit using exact decimal arithmetic. Amounts that do not land
// on a whole base unit are rejected.
func ToSmallestUnit(amount string, decimals int32) (*big.Int, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	shifted := dec.Shift(decimals)
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %s has more than %d decimals", amount, decimals)
	}

	return shifted.BigInt(), nil
}

// ParseAmount parses a decimal string holding an integer smallest-unit amount.
func ParseAmount(s string) (*big.Int, error) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid integer amount %q", s)
	}
	if n.Sign() < 0 {
		return nil, fmt.Errorf("amount cannot be negative")
	}
	return n, nil
}
