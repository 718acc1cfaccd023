package organization

import (
	"github.com/smallbiznis/ledgerline/internal/organization/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("organization",
	fx.Provide(repository.New),
)
