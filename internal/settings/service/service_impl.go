package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/rfacto/internal/clock"
	settingsdomain "github.com/smallbiznis/rfacto/internal/settings/domain"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/pkg/optional"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type serviceParams struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Repo  settingsdomain.Repository
	Taxes taxdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	repo  settingsdomain.Repository
	taxes taxdomain.Repository
}

func NewService(p serviceParams) settingsdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("settings.service"),
		clock: p.Clock,
		repo:  p.Repo,
		taxes: p.Taxes,
	}
}

func (s *Service) Ensure(ctx context.Context) (*settingsdomain.Settings, error) {
	return s.ensure(ctx, s.repo, s.taxes)
}

func (s *Service) ensure(ctx context.Context, repo settingsdomain.Repository, taxes taxdomain.Repository) (*settingsdomain.Settings, error) {
	current, err := repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if current != nil {
		return current, nil
	}

	var defaultProvince *string
	first, err := taxes.First(ctx)
	if err != nil {
		return nil, err
	}
	if first != nil {
		province := first.Province
		defaultProvince = &province
	}

	if err := repo.Create(ctx, settingsdomain.NewSettings(defaultProvince, s.clock.Now().UTC())); err != nil {
		return nil, err
	}
	s.log.Info("settings created", zap.Stringp("default_province", defaultProvince))
	return repo.Get(ctx)
}

func (s *Service) Update(ctx context.Context, req settingsdomain.UpdateRequest) (*settingsdomain.Settings, error) {
	var out *settingsdomain.Settings
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := s.ensure(ctx, repo, s.taxes.WithTx(tx))
		if err != nil {
			return err
		}
		if err := applyUpdate(current, req); err != nil {
			return err
		}
		current.UpdatedAt = s.clock.Now().UTC()
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		out = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentClaimRows returns the stored payment-claim table. A corrupt blob
// is reported as an empty table.
func (s *Service) PaymentClaimRows(ctx context.Context) ([]settingsdomain.PaymentClaimRow, error) {
	current, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := settingsdomain.ParseRows(current.PaymentClaimRowsRaw)
	if err != nil {
		s.log.Warn("invalid payment claim rows", zap.Error(err))
	}
	return rows, nil
}

// AppendPaymentClaimRows adds rows at the end of the table and returns its
// new length.
func (s *Service) AppendPaymentClaimRows(ctx context.Context, rows []settingsdomain.PaymentClaimRow) (int, error) {
	existing, err := s.PaymentClaimRows(ctx)
	if err != nil {
		return 0, err
	}
	merged := append(existing, rows...)
	if _, err := s.Update(ctx, settingsdomain.UpdateRequest{PaymentClaimRows: optional.Set(merged)}); err != nil {
		return 0, err
	}
	s.log.Info("payment claim rows appended", zap.Int("added", len(rows)), zap.Int("total", len(merged)))
	return len(merged), nil
}

func applyUpdate(cur *settingsdomain.Settings, req settingsdomain.UpdateRequest) error {
	if req.ContractHT.IsSet() {
		cur.ContractHT = float64(req.ContractHT.Or(0))
	}
	if req.ContractTTC.IsSet() {
		cur.ContractTTC = float64(req.ContractTTC.Or(0))
	}
	if req.ContractNumber.IsSet() {
		cur.ContractNumber = textPtr(req.ContractNumber)
	}

	provinces := []struct {
		in  optional.Value[string]
		dst **string
	}{
		{req.DefaultProvMs, &cur.DefaultProvMs},
		{req.DefaultProvDcr, &cur.DefaultProvDcr},
		{req.DefaultProvReserve, &cur.DefaultProvReserve},
		{req.ProcessingTaxProv1, &cur.ProcessingTaxProv1},
		{req.ProcessingTaxProv2, &cur.ProcessingTaxProv2},
		{req.ProcessingTaxProv3, &cur.ProcessingTaxProv3},
	}
	for _, p := range provinces {
		if p.in.IsSet() {
			*p.dst = provincePtr(p.in)
		}
	}

	delays := []struct {
		n    optional.Value[int]
		unit optional.Value[string]
		dstN *int
		dstU *string
	}{
		{req.DelayAFacturer, req.DelayAFacturerUnit, &cur.DelayAFacturer, &cur.DelayAFacturerUnit},
		{req.DelayFacture, req.DelayFactureUnit, &cur.DelayFacture, &cur.DelayFactureUnit},
		{req.DelayPaye, req.DelayPayeUnit, &cur.DelayPaye, &cur.DelayPayeUnit},
	}
	for _, d := range delays {
		if d.n.IsSet() {
			n := d.n.Or(settingsdomain.DefaultDelay)
			if n < 0 {
				return settingsdomain.ErrInvalidDelay
			}
			*d.dstN = n
		}
		if d.unit.IsSet() {
			raw := d.unit.Or("")
			if strings.TrimSpace(raw) == "" {
				*d.dstU = settingsdomain.DefaultDelayUnit
				continue
			}
			unit, err := settingsdomain.NormalizeDelayUnit(raw)
			if err != nil {
				return err
			}
			*d.dstU = unit
		}
	}

	if req.PaymentClaimRows.IsSet() {
		rows := req.PaymentClaimRows.Or(nil)
		for i := range rows {
			rows[i].Compute()
		}
		encoded, err := settingsdomain.EncodeRows(rows)
		if err != nil {
			return settingsdomain.ErrInvalidRows
		}
		cur.PaymentClaimRowsRaw = &encoded
	}
	if req.ColumnNames.IsSet() {
		cur.ColumnNames = datatypes.JSONMap(req.ColumnNames.Or(map[string]any{}))
	}
	return nil
}

func textPtr(v optional.Value[string]) *string {
	s := strings.TrimSpace(v.Or(""))
	if s == "" {
		return nil
	}
	return &s
}

func provincePtr(v optional.Value[string]) *string {
	s := taxdomain.NormalizeProvince(v.Or(""))
	if s == "" {
		return nil
	}
	return &s
}
