package claim

import (
	"github.com/smallbiznis/rfacto/internal/claim/repository"
	"github.com/smallbiznis/rfacto/internal/claim/service"
	"go.uber.org/fx"
)

var Module = fx.Module("claim.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(repository.NewDetacher),
	fx.Provide(service.NewLookup),
	fx.Provide(service.NewService),
)
