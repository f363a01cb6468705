package catalog

import (
	"github.com/njaeplume/plume/internal/catalog/repository"
	"github.com/njaeplume/plume/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
