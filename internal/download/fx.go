package download

import (
	"github.com/njaeplume/plume/internal/download/service"
	"go.uber.org/fx"
)

var Module = fx.Module("download.service",
	fx.Provide(service.New),
)
