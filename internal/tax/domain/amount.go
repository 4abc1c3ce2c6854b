package domain

import (
	"math"

	"github.com/shopspring/decimal"
)

// ComputeTTC returns amountHT * (1 + taxRate). Non-finite or negative
// inputs count as 0, so the result is always a finite, non-negative amount.
func ComputeTTC(amountHT, taxRate float64) float64 {
	ht := decimal.NewFromFloat(sanitize(amountHT))
	rate := decimal.NewFromFloat(sanitize(taxRate))
	ttc, _ := ht.Mul(decimal.NewFromInt(1).Add(rate)).Float64()
	return ttc
}

// TaxAmount returns amount * taxRate with the same coercion as ComputeTTC.
func TaxAmount(amount, taxRate float64) float64 {
	out, _ := decimal.NewFromFloat(sanitize(amount)).Mul(decimal.NewFromFloat(sanitize(taxRate))).Float64()
	return out
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
