package teammember

import (
	"github.com/smallbiznis/rfacto/internal/teammember/repository"
	"github.com/smallbiznis/rfacto/internal/teammember/service"
	"go.uber.org/fx"
)

var Module = fx.Module("teammember.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
