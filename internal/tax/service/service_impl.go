package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/smallbiznis/rfacto/internal/cache"
	"github.com/smallbiznis/rfacto/internal/clock"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"github.com/smallbiznis/rfacto/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type serviceParams struct {
	fx.In

	Log   *zap.Logger
	Clock clock.Clock
	Repo  taxdomain.Repository
	Cache cache.TaxRateCache `optional:"true"`
}

type Service struct {
	log   *zap.Logger
	clock clock.Clock
	repo  taxdomain.Repository
	cache cache.TaxRateCache
}

func NewService(p serviceParams) taxdomain.Service {
	return &Service{
		log:   p.Log.Named("tax.service"),
		clock: p.Clock,
		repo:  p.Repo,
		cache: p.Cache,
	}
}

func (s *Service) List(ctx context.Context) ([]taxdomain.Response, error) {
	items, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	resp := make([]taxdomain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req taxdomain.CreateRequest) (*taxdomain.Response, error) {
	now := s.clock.Now().UTC()
	record := &taxdomain.TaxRate{
		Province:  taxdomain.NormalizeProvince(req.Province),
		Rate:      float64(req.Rate),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, taxdomain.ErrDuplicateProvince
		}
		return nil, err
	}
	s.invalidate()

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Update(ctx context.Context, req taxdomain.UpdateRequest) (*taxdomain.Response, error) {
	id, err := parseID(req.ID)
	if err != nil {
		return nil, err
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, taxdomain.ErrNotFound
	}

	if req.Province.IsSet() {
		record.Province = taxdomain.NormalizeProvince(req.Province.Or(""))
	}
	if req.Rate.IsSet() {
		record.Rate = float64(req.Rate.Or(0))
	}
	record.UpdatedAt = s.clock.Now().UTC()
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, record); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, taxdomain.ErrDuplicateProvince
		}
		return nil, err
	}
	s.invalidate()

	resp := toResponse(record)
	return &resp, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	parsed, err := parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, parsed)
	if err != nil {
		return err
	}
	if !deleted {
		return taxdomain.ErrNotFound
	}
	s.invalidate()
	return nil
}

// Seed upserts the default Canadian rates and returns how many were written.
func (s *Service) Seed(ctx context.Context) (int, error) {
	now := s.clock.Now().UTC()
	for i, def := range taxdomain.DefaultRates {
		record := def
		record.CreatedAt = now
		record.UpdatedAt = now
		if err := s.repo.Upsert(ctx, &record); err != nil {
			return i, err
		}
	}
	s.invalidate()
	s.log.Info("tax rates seeded", zap.Int("count", len(taxdomain.DefaultRates)))
	return len(taxdomain.DefaultRates), nil
}

func (s *Service) invalidate() {
	if s.cache != nil {
		s.cache.Invalidate()
	}
}

func parseID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, taxdomain.ErrInvalidID
	}
	return id, nil
}

func toResponse(t *taxdomain.TaxRate) taxdomain.Response {
	return taxdomain.Response{
		ID:        t.ID,
		Province:  t.Province,
		Rate:      t.Rate,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

