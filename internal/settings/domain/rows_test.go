package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestComputeRow(t *testing.T) {
	row := PaymentClaimRow{Description: "Milestone 1 Claim 7 C-230", ClaimNumber: ptr(7), Amount: 439863.6, TaxRate: ptr(0.15)}
	row.Compute()

	require.NotNil(t, row.TaxAmount)
	require.NotNil(t, row.TotalToDate)
	assert.Equal(t, 65979.54, *row.TaxAmount)
	assert.Equal(t, 505843.14, *row.TotalToDate)
}

func TestComputeSkipsSubtotal(t *testing.T) {
	row := PaymentClaimRow{Description: "Total milestone #1", Amount: 1759454.42, Subtotal: true}
	row.Compute()
	assert.Nil(t, row.TaxAmount)
	assert.Nil(t, row.TotalToDate)
}

func TestNextClaimNumber(t *testing.T) {
	assert.Equal(t, 1, NextClaimNumber(nil))
	rows := []PaymentClaimRow{
		{ClaimNumber: ptr(38)},
		{ClaimNumber: ptr(40)},
		{Subtotal: true},
		{ClaimNumber: ptr(39)},
	}
	assert.Equal(t, 41, NextClaimNumber(rows))
}

func TestParseRows(t *testing.T) {
	rows, err := ParseRows(nil)
	require.NoError(t, err)
	assert.Empty(t, rows)

	bad := "{not json"
	rows, err = ParseRows(&bad)
	assert.Error(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)

	raw := `[{"description":"DCR-016-ENG","claimNumber":38,"amount":18900,"taxRate":0.05},{"description":"Total DCR Claim 38","subtotal":true,"amount":18900}]`
	rows, err = ParseRows(&raw)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 38, *rows[0].ClaimNumber)
	assert.True(t, rows[1].Subtotal)

	encoded, err := EncodeRows(rows)
	require.NoError(t, err)
	again, err := ParseRows(&encoded)
	require.NoError(t, err)
	assert.Equal(t, rows, again)
}

func TestSumRowsIgnoresSubtotals(t *testing.T) {
	rows := []PaymentClaimRow{
		{Amount: 2660, TaxAmount: ptr(133.0)},
		{Amount: 18900, TaxAmount: ptr(945.0)},
		{Amount: 21560, Subtotal: true},
	}
	got := SumRows(rows)
	assert.Equal(t, Totals{Amount: 21560, TaxAmount: 1078, Total: 22638}, got)
}

func TestNormalizeDelayUnit(t *testing.T) {
	for in, want := range map[string]string{"month": DelayUnitMonths, " Weeks ": DelayUnitWeeks, "DAY": DelayUnitDays} {
		got, err := NormalizeDelayUnit(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := NormalizeDelayUnit("years")
	assert.ErrorIs(t, err, ErrInvalidDelayUnit)
}
