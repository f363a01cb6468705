package identity

import (
	"github.com/njaeplume/plume/internal/identity/repository"
	"github.com/njaeplume/plume/internal/identity/service"
	"go.uber.org/fx"
)

var Module = fx.Module("identity.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
