// Package importer loads payment-claim spreadsheets into the settings table.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	activitydomain "github.com/smallbiznis/rfacto/internal/activity/domain"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	"github.com/smallbiznis/rfacto/pkg/optional"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrEmptyFile = errors.New("no_rows")

type Params struct {
	fx.In

	Log      *zap.Logger
	Settings settingsdomain.Service
	AuditSvc activitydomain.Service `optional:"true"`
}

type PaymentClaims struct {
	log      *zap.Logger
	settings settingsdomain.Service
	auditSvc activitydomain.Service
}

func NewPaymentClaims(p Params) *PaymentClaims {
	return &PaymentClaims{
		log:      p.Log.Named("importer.payment_claims"),
		settings: p.Settings,
		auditSvc: p.AuditSvc,
	}
}

type Result struct {
	Parsed    int `json:"parsed"`
	Subtotals int `json:"subtotals"`
	Total     int `json:"total"`
}

// Import parses r and appends the rows to the stored table, or replaces the
// table when replace is set.
func (i *PaymentClaims) Import(ctx context.Context, r io.Reader, replace bool) (Result, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return Result{}, err
	}
	parsed := ParsePaymentClaims(string(raw))
	if len(parsed) == 0 {
		return Result{}, ErrEmptyFile
	}
	rows, added := WithSubtotals(parsed)

	result := Result{Parsed: len(parsed), Subtotals: added}
	if replace {
		if _, err := i.settings.Update(ctx, settingsdomain.UpdateRequest{PaymentClaimRows: optional.Set(rows)}); err != nil {
			return Result{}, err
		}
		result.Total = len(rows)
	} else {
		if result.Total, err = i.settings.AppendPaymentClaimRows(ctx, rows); err != nil {
			return Result{}, err
		}
	}

	i.log.Info("payment claims imported",
		zap.Int("parsed", result.Parsed),
		zap.Int("subtotals_added", result.Subtotals),
		zap.Int("total_rows", result.Total),
		zap.Bool("replace", replace),
	)
	if i.auditSvc != nil {
		meta := map[string]any{"parsed": result.Parsed, "total": result.Total, "replace": replace}
		if err := i.auditSvc.Record(ctx, activitydomain.ActionPaymentClaimsLoad, "settings", "1", meta); err != nil {
			i.log.Warn("failed to record import activity", zap.Error(err))
		}
	}
	return result, nil
}

// WithSubtotals closes every run of rows sharing a claim number with a
// subtotal row, unless the input already closes it. It returns the new rows
// and the number of subtotals inserted.
func WithSubtotals(rows []settingsdomain.PaymentClaimRow) ([]settingsdomain.PaymentClaimRow, int) {
	out := make([]settingsdomain.PaymentClaimRow, 0, len(rows)+4)
	added := 0

	var (
		group *int
		sum   decimal.Decimal
		open  bool
	)
	closeGroup := func() {
		if !open {
			return
		}
		desc := "Total"
		if group != nil {
			desc = fmt.Sprintf("Total claim %d", *group)
		}
		out = append(out, settingsdomain.PaymentClaimRow{
			Description: desc,
			Amount:      sum.Round(2).InexactFloat64(),
			Subtotal:    true,
		})
		added++
		open = false
	}

	for _, row := range rows {
		if row.Subtotal {
			open = false
			out = append(out, row)
			continue
		}
		if open && !sameNumber(group, row.ClaimNumber) {
			closeGroup()
		}
		if !open {
			group, sum, open = row.ClaimNumber, decimal.Zero, true
		}
		sum = sum.Add(decimal.NewFromFloat(row.Amount))
		out = append(out, row)
	}
	closeGroup()
	return out, added
}

func sameNumber(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
