package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/njaeplume/plume/internal/auth"
	"github.com/njaeplume/plume/internal/authorization"
	"github.com/njaeplume/plume/internal/catalog"
	"github.com/njaeplume/plume/internal/checkout"
	"github.com/njaeplume/plume/internal/clock"
	"github.com/njaeplume/plume/internal/config"
	"github.com/njaeplume/plume/internal/download"
	"github.com/njaeplume/plume/internal/identity"
	"github.com/njaeplume/plume/internal/migration"
	"github.com/njaeplume/plume/internal/notification"
	"github.com/njaeplume/plume/internal/observability"
	"github.com/njaeplume/plume/internal/order"
	"github.com/njaeplume/plume/internal/payment"
	"github.com/njaeplume/plume/internal/providers"
	"github.com/njaeplume/plume/internal/ratelimit"
	"github.com/njaeplume/plume/internal/server"
	"github.com/njaeplume/plume/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		auth.Module,
		authorization.Module,
		providers.Module,
		ratelimit.Module,

		catalog.Module,
		identity.Module,
		order.Module,
		payment.Module,
		notification.Module,
		download.Module,
		checkout.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
