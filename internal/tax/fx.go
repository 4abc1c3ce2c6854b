package tax

import (
	"github.com/smallbiznis/rfacto/internal/cache"
	"github.com/smallbiznis/rfacto/internal/tax/repository"
	"github.com/smallbiznis/rfacto/internal/tax/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tax.service",
	fx.Provide(cache.NewTaxRateCache),
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewResolver),
	fx.Provide(service.NewService),
)
