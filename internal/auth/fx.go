package auth

import (
	"github.com/njaeplume/plume/internal/auth/service"
	"github.com/njaeplume/plume/internal/auth/session"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(service.New),
	fx.Provide(session.NewManager),
)
