package domain

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
)

// PaymentClaimRow is one line of the payment-claim table. Subtotal rows
// close a group and only carry a description and an amount.
type PaymentClaimRow struct {
	Description string   `json:"description"`
	ClaimNumber *int     `json:"claimNumber,omitempty"`
	Amount      float64  `json:"amount"`
	TaxRate     *float64 `json:"taxRate,omitempty"`
	TaxAmount   *float64 `json:"taxAmount,omitempty"`
	TotalToDate *float64 `json:"totalToDate,omitempty"`
	Province    string   `json:"taxProvince,omitempty"`
	Subtotal    bool     `json:"subtotal"`
}

// Totals sums the non-subtotal rows.
type Totals struct {
	Amount    float64
	TaxAmount float64
	Total     float64
}

// ParseRows decodes the stored blob. Empty input is an empty list.
func ParseRows(raw *string) ([]PaymentClaimRow, error) {
	if raw == nil || *raw == "" {
		return []PaymentClaimRow{}, nil
	}
	var rows []PaymentClaimRow
	if err := json.Unmarshal([]byte(*raw), &rows); err != nil {
		return []PaymentClaimRow{}, err
	}
	if rows == nil {
		rows = []PaymentClaimRow{}
	}
	return rows, nil
}

// EncodeRows is the inverse of ParseRows.
func EncodeRows(rows []PaymentClaimRow) (string, error) {
	if rows == nil {
		rows = []PaymentClaimRow{}
	}
	out, err := json.Marshal(rows)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compute fills TaxAmount and TotalToDate from Amount and TaxRate.
// Subtotal rows are left as they are.
func (r *PaymentClaimRow) Compute() {
	if r.Subtotal {
		return
	}
	rate := 0.0
	if r.TaxRate != nil {
		rate = *r.TaxRate
	}
	tax := round2(taxdomain.TaxAmount(r.Amount, rate))
	total := round2(decimal.NewFromFloat(r.Amount).Add(decimal.NewFromFloat(tax)).InexactFloat64())
	r.TaxAmount = &tax
	r.TotalToDate = &total
}

// NextClaimNumber returns max(claimNumber) + 1, or 1 for an empty table.
func NextClaimNumber(rows []PaymentClaimRow) int {
	highest := 0
	for _, r := range rows {
		if r.ClaimNumber != nil && *r.ClaimNumber > highest {
			highest = *r.ClaimNumber
		}
	}
	return highest + 1
}

func SumRows(rows []PaymentClaimRow) Totals {
	amount, tax := decimal.Zero, decimal.Zero
	for _, r := range rows {
		if r.Subtotal {
			continue
		}
		amount = amount.Add(decimal.NewFromFloat(r.Amount))
		if r.TaxAmount != nil {
			tax = tax.Add(decimal.NewFromFloat(*r.TaxAmount))
		}
	}
	return Totals{
		Amount:    amount.Round(2).InexactFloat64(),
		TaxAmount: tax.Round(2).InexactFloat64(),
		Total:     amount.Add(tax).Round(2).InexactFloat64(),
	}
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
