package auth

import (
	"github.com/smallbiznis/rfacto/internal/auth/service"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(service.NewVerifier),
	fx.Provide(service.NewService),
)
