package claimfile

import (
	"github.com/smallbiznis/rfacto/internal/claimfile/repository"
	"github.com/smallbiznis/rfacto/internal/claimfile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("claimfile.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(service.NewService),
	fx.Provide(service.NewAttachments),
)
