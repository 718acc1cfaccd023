package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/apikey"
	"github.com/smallbiznis/ledgerline/internal/authn"
	"github.com/smallbiznis/ledgerline/internal/authtx"
	"github.com/smallbiznis/ledgerline/internal/cache"
	"github.com/smallbiznis/ledgerline/internal/clock"
	"github.com/smallbiznis/ledgerline/internal/config"
	"github.com/smallbiznis/ledgerline/internal/customer"
	"github.com/smallbiznis/ledgerline/internal/event"
	"github.com/smallbiznis/ledgerline/internal/ledger"
	"github.com/smallbiznis/ledgerline/internal/logger"
	"github.com/smallbiznis/ledgerline/internal/migration"
	"github.com/smallbiznis/ledgerline/internal/observability/metrics"
	"github.com/smallbiznis/ledgerline/internal/organization"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel"
	"github.com/smallbiznis/ledgerline/internal/user"
	"github.com/smallbiznis/ledgerline/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		metrics.Module,
		cache.Module,

		organization.Module,
		user.Module,
		customer.Module,
		apikey.Module,
		authn.Module,
		event.Module,
		ledger.Module,
		pricingmodel.Module,
		authtx.Module,

		migration.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
