package apikey

import (
	"github.com/smallbiznis/ledgerline/internal/apikey/service"
	"go.uber.org/fx"
)

var Module = fx.Module("apikey",
	fx.Provide(service.New),
)
