package config

import (
	"go.uber.org/fx"

	"github.com/smallbiznis/ledgerline/pkg/db"
)

// Module wires application configuration.
var Module = fx.Module("config",
	fx.Provide(
		Load,
		func(cfg Config) db.Config { return cfg.DB },
	),
)
