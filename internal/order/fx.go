package order

import (
	"github.com/njaeplume/plume/internal/order/repository"
	"github.com/njaeplume/plume/internal/order/service"
	"go.uber.org/fx"
)

var Module = fx.Module("order.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
