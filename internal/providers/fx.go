package providers

import (
	"github.com/njaeplume/plume/internal/providers/email"
	"github.com/njaeplume/plume/internal/providers/storage"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	storage.Module,
)
