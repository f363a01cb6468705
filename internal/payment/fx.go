package payment

import (
	"github.com/njaeplume/plume/internal/payment/adapters"
	"github.com/njaeplume/plume/internal/payment/adapters/stripe"
	paymentdomain "github.com/njaeplume/plume/internal/payment/domain"
	"github.com/njaeplume/plume/internal/payment/repository"
	paymentservice "github.com/njaeplume/plume/internal/payment/service"
	"github.com/njaeplume/plume/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(stripe.NewAdapter),
	fx.Provide(func(adapter *stripe.Adapter) *adapters.Registry {
		return adapters.NewRegistry(adapter)
	}),
	fx.Provide(
		fx.Annotate(stripe.NewSessionClient, fx.As(new(paymentdomain.SessionCreator))),
	),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
