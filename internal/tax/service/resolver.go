package service

import (
	"context"

	"github.com/smallbiznis/rfacto/internal/cache"
	taxdomain "github.com/smallbiznis/rfacto/internal/tax/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type resolverParam struct {
	fx.In

	Log        *zap.Logger
	Repository taxdomain.Repository
	Cache      cache.TaxRateCache `optional:"true"`
}

type resolver struct {
	log   *zap.Logger
	repo  taxdomain.Repository
	cache cache.TaxRateCache
}

func NewResolver(p resolverParam) taxdomain.Resolver {
	return &resolver{
		log:   p.Log.Named("tax.resolver"),
		repo:  p.Repository,
		cache: p.Cache,
	}
}

func (r *resolver) ResolveRate(ctx context.Context, province string, fallback float64) float64 {
	province = taxdomain.NormalizeProvince(province)
	if province == "" {
		return fallback
	}

	if r.cache != nil {
		if rate, found, ok := r.cache.Get(province); ok {
			if !found {
				return fallback
			}
			return rate
		}
	}

	def, err := r.repo.FindByProvince(ctx, province)
	if err != nil {
		// a failed lookup must not block the save
		r.log.Warn("tax rate lookup failed, using fallback",
			zap.String("province", province),
			zap.Float64("fallback", fallback),
			zap.Error(err),
		)
		return fallback
	}
	if r.cache != nil {
		if def == nil {
			r.cache.Set(province, 0, false)
		} else {
			r.cache.Set(province, def.Rate, true)
		}
	}
	if def == nil {
		return fallback
	}
	return def.Rate
}
