package utils

import "math"

// RoundCurrency rounds an amount to 2 decimal places using round-half-even
// (banker's rounding). The policy is fixed here so every rate application in
// the ledger rounds identically; a mixed policy would make per-user balances
// drift from the commission sum they are reconciled against.
func RoundCurrency(amount float64) float64 {
	return math.RoundToEven(amount*100) / 100
}

// CommissionAmount applies a percentage rate to a base amount and rounds to
// currency precision.
func CommissionAmount(base, ratePercent float64) float64 {
	return RoundCurrency(base * ratePercent / 100)
}
