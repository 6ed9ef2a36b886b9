package services

import (
	"errors"

	"github.com/shopspring/decimal"
)

// NanotonsPerTON is the minor-unit scale: every stored and on-wire amount
// is an integer number of 1e-9 TON.
const NanotonsPerTON = 1_000_000_000

// ErrInvalidAmount is returned when a user-supplied amount cannot be
// expressed as a positive whole number of nanotons, or falls below the
// configured withdrawal minimum.
var ErrInvalidAmount = errors.New("invalid amount")

var nanoScale = decimal.NewFromInt(NanotonsPerTON)

// ParseTON converts a user-facing decimal TON amount into nanotons.
// Fractions below one nanoton and non-positive values are rejected.
func ParseTON(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidAmount
	}

	nano := d.Mul(nanoScale)
	if !nano.IsInteger() || !nano.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if !nano.BigInt().IsInt64() {
		return 0, ErrInvalidAmount
	}
	return nano.IntPart(), nil
}

// FormatTON renders nanotons as a decimal TON string for user-facing
// messages.
func FormatTON(nanotons int64) string {
	return decimal.NewFromInt(nanotons).Div(nanoScale).String()
}
