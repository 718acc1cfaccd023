package pricingmodel

import (
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/repository"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricingmodel",
	fx.Provide(
		repository.New,
		service.New,
	),
)
