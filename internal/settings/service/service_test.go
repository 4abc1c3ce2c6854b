package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/rfacto/internal/clock"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"github.com/smallbiznis/rfacto/internal/settings/repository"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	taxrepository "github.com/smallbiznis/rfacto/internal/tax/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSettingsTest(t *testing.T, taxes ...taxdomain.TaxRate) (*Service, *gorm.DB) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := conn.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := conn.AutoMigrate(&taxdomain.TaxRate{}, &settingsdomain.Settings{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for i := range taxes {
		if err := conn.Create(&taxes[i]).Error; err != nil {
			t.Fatalf("seed tax: %v", err)
		}
	}

	svc := NewService(serviceParams{
		DB:    conn,
		Log:   zap.NewNop(),
		Clock: clock.NewFakeClock(time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.NewRepository(conn),
		Taxes: taxrepository.NewRepository(conn),
	}).(*Service)
	return svc, conn
}

func decodeUpdate(t *testing.T, body string) settingsdomain.UpdateRequest {
	t.Helper()
	var req settingsdomain.UpdateRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return req
}

func TestEnsureDefaultsToFirstTaxProvince(t *testing.T) {
	svc, _ := setupSettingsTest(t,
		taxdomain.TaxRate{Province: "QC", Rate: 0.14975},
		taxdomain.TaxRate{Province: "AB", Rate: 0.05},
	)
	ctx := context.Background()

	got, err := svc.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, settingsdomain.SingletonID, got.ID)
	assert.Equal(t, 0.0, got.ContractHT)
	for _, p := range []*string{got.DefaultProvMs, got.DefaultProvDcr, got.DefaultProvReserve} {
		require.NotNil(t, p)
		assert.Equal(t, "QC", *p)
	}
	assert.Equal(t, settingsdomain.DelayUnitMonths, got.DelayPayeUnit)
	assert.Equal(t, 1, got.DelayPaye)

	again, err := svc.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, got.ID, again.ID)
}

func TestEnsureWithoutTaxes(t *testing.T) {
	svc, _ := setupSettingsTest(t)
	got, err := svc.Ensure(context.Background())
	require.NoError(t, err)
	assert.Nil(t, got.DefaultProvMs)
}

func TestUpdateIsPartial(t *testing.T) {
	svc, _ := setupSettingsTest(t, taxdomain.TaxRate{Province: "AB", Rate: 0.05})
	ctx := context.Background()

	_, err := svc.Update(ctx, decodeUpdate(t, `{"contractHT": 1000, "contractNumber": "W8482-01", "delayPaye": 3, "delayPayeUnit": "week"}`))
	require.NoError(t, err)

	got, err := svc.Update(ctx, decodeUpdate(t, `{"contractTTC": "abc", "defaultProvDcr": "", "processingTaxProv1": "ns1"}`))
	require.NoError(t, err)

	assert.Equal(t, 1000.0, got.ContractHT)
	assert.Equal(t, 0.0, got.ContractTTC)
	require.NotNil(t, got.ContractNumber)
	assert.Equal(t, "W8482-01", *got.ContractNumber)
	assert.Nil(t, got.DefaultProvDcr)
	require.NotNil(t, got.DefaultProvMs)
	assert.Equal(t, "AB", *got.DefaultProvMs)
	require.NotNil(t, got.ProcessingTaxProv1)
	assert.Equal(t, "NS1", *got.ProcessingTaxProv1)
	assert.Equal(t, 3, got.DelayPaye)
	assert.Equal(t, settingsdomain.DelayUnitWeeks, got.DelayPayeUnit)
	assert.Equal(t, 1, got.DelayFacture)
}

func TestUpdateRejectsUnknownDelayUnit(t *testing.T) {
	svc, _ := setupSettingsTest(t)
	_, err := svc.Update(context.Background(), decodeUpdate(t, `{"delayFactureUnit": "years"}`))
	assert.ErrorIs(t, err, settingsdomain.ErrInvalidDelayUnit)
}

func TestUpdateColumnNames(t *testing.T) {
	svc, _ := setupSettingsTest(t)
	got, err := svc.Update(context.Background(), decodeUpdate(t, `{"columnNames": {"step": "Étape", "amountHT": "Montant HT"}}`))
	require.NoError(t, err)
	assert.Equal(t, "Étape", got.ColumnNames["step"])
}

func TestPaymentClaimRowsComputedOnWrite(t *testing.T) {
	svc, _ := setupSettingsTest(t)
	ctx := context.Background()

	_, err := svc.Update(ctx, decodeUpdate(t, `{"paymentClaimRows": [
		{"description": "Milestone 3 Payment #3 C-230", "claimNumber": 3, "amount": 131656.25, "taxRate": 0.15},
		{"description": "Total milestone #3", "subtotal": true, "amount": 131656.25}
	]}`))
	require.NoError(t, err)

	rows, err := svc.PaymentClaimRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].TaxAmount)
	assert.Equal(t, 19748.44, *rows[0].TaxAmount)
	assert.Equal(t, 151404.69, *rows[0].TotalToDate)
	assert.Nil(t, rows[1].TaxAmount)
	assert.Equal(t, 4, settingsdomain.NextClaimNumber(rows))
}

func TestPaymentClaimRowsInvalidBlob(t *testing.T) {
	svc, conn := setupSettingsTest(t)
	ctx := context.Background()
	_, err := svc.Ensure(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Model(&settingsdomain.Settings{}).Where("id = ?", 1).Update("payment_claim_rows_json", "[{broken").Error)

	rows, err := svc.PaymentClaimRows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAppendPaymentClaimRows(t *testing.T) {
	svc, _ := setupSettingsTest(t)
	ctx := context.Background()
	num := 1
	rate := 0.05

	n, err := svc.AppendPaymentClaimRows(ctx, []settingsdomain.PaymentClaimRow{{Description: "Claim 1", ClaimNumber: &num, Amount: 100, TaxRate: &rate}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = svc.AppendPaymentClaimRows(ctx, []settingsdomain.PaymentClaimRow{{Description: "Total claim 1", Amount: 100, Subtotal: true}})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := svc.PaymentClaimRows(ctx)
	require.NoError(t, err)
	assert.Equal(t, 105.0, *rows[0].TotalToDate)
	assert.True(t, rows[1].Subtotal)
}
