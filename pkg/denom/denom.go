// Package denom converts between display currencies (XION, USDC) and the
// micro-unit base denominations the ledger stores (uxion, uusdc).
package denom

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Exponent is the number of decimal places between display and base units.
const Exponent = 6

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrPrecision       = errors.New("amount has more than 6 decimal places")
)

var factor = decimal.New(1, Exponent)

// Currency pairs a display ticker with its base denomination.
type Currency struct {
	Display string
	Base    string
}

var (
	XION = Currency{Display: "XION", Base: "uxion"}
	USDC = Currency{Display: "USDC", Base: "uusdc"}
)

var byDisplay = map[string]Currency{
	XION.Display: XION,
	USDC.Display: USDC,
}

// Lookup resolves a display ticker (case-insensitive).
func Lookup(display string) (Currency, error) {
	c, ok := byDisplay[strings.ToUpper(strings.TrimSpace(display))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, display)
	}
	return c, nil
}

// DisplayName maps a base denom onto its ticker. IBC vouchers that carry
// USDC are shown as USDC; anything unknown is returned unchanged.
func DisplayName(base string) string {
	lower := strings.ToLower(base)
	switch {
	case lower == XION.Base:
		return XION.Display
	case lower == USDC.Base:
		return USDC.Display
	case strings.HasPrefix(lower, "ibc/") && strings.Contains(lower, "usdc"):
		return USDC.Display
	}
	return base
}

// ToBase converts a display amount into an integral base-unit amount.
func ToBase(amount decimal.Decimal, display string) (decimal.Decimal, string, error) {
	c, err := Lookup(display)
	if err != nil {
		return decimal.Zero, "", err
	}
	if !amount.Equal(amount.Truncate(Exponent)) {
		return decimal.Zero, "", ErrPrecision
	}
	return amount.Mul(factor), c.Base, nil
}

// ToDisplay converts a raw base-unit amount string into display units.
// Unknown denoms are returned unscaled.
func ToDisplay(raw string, base string) (decimal.Decimal, string, error) {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, "", fmt.Errorf("parse amount %q: %w", raw, err)
	}
	name := DisplayName(base)
	if name == base {
		return v, base, nil
	}
	return v.Div(factor), name, nil
}
