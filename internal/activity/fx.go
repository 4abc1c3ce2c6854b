package activity

import (
	"github.com/smallbiznis/rfacto/internal/activity/repository"
	"github.com/smallbiznis/rfacto/internal/activity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("activity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
