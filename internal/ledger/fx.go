package ledger

import (
	"github.com/smallbiznis/ledgerline/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger",
	fx.Provide(service.New),
)
