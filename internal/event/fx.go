package event

import (
	"github.com/smallbiznis/ledgerline/internal/event/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("event",
	fx.Provide(repository.New),
)
