package authn

import (
	apikeydomain "github.com/smallbiznis/ledgerline/internal/apikey/domain"
	"github.com/smallbiznis/ledgerline/internal/authn/domain"
	"github.com/smallbiznis/ledgerline/internal/authn/service"
	"github.com/smallbiznis/ledgerline/internal/config"
	customerdomain "github.com/smallbiznis/ledgerline/internal/customer/domain"
	orgdomain "github.com/smallbiznis/ledgerline/internal/organization/domain"
	userdomain "github.com/smallbiznis/ledgerline/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("authn",
	fx.Provide(func(
		log *zap.Logger,
		verifier apikeydomain.Verifier,
		users userdomain.Repository,
		orgs orgdomain.Repository,
		customers customerdomain.Repository,
		cfg config.Config,
	) domain.Resolver {
		return service.New(log, verifier, users, orgs, customers, func() bool { return cfg.IsTestEnv })
	}),
)
