package settings

import (
	"github.com/smallbiznis/rfacto/internal/settings/repository"
	"github.com/smallbiznis/rfacto/internal/settings/service"
	"go.uber.org/fx"
)

var Module = fx.Module("settings.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
