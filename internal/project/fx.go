package project

import (
	"github.com/smallbiznis/rfacto/internal/project/repository"
	"github.com/smallbiznis/rfacto/internal/project/service"
	"go.uber.org/fx"
)

var Module = fx.Module("project.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
)
