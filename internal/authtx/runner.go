package authtx

import (
	"errors"

	authndomain "github.com/smallbiznis/ledgerline/internal/authn/domain"
	"github.com/smallbiznis/ledgerline/internal/cache"
	eventdomain "github.com/smallbiznis/ledgerline/internal/event/domain"
	ledgerdomain "github.com/smallbiznis/ledgerline/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/ledgerline/internal/observability/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Runner owns the collaborators every authenticated transaction needs.
// It holds no per-request state; concurrent calls share it freely.
type Runner struct {
	db          *gorm.DB
	log         *zap.Logger
	resolver    authndomain.Resolver
	events      eventdomain.Repository
	ledger      ledgerdomain.Processor
	invalidator cache.Invalidator
	metrics     *obsmetrics.Metrics
	tracer      trace.Tracer
}

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	Resolver    authndomain.Resolver
	Events      eventdomain.Repository
	Ledger      ledgerdomain.Processor
	Invalidator cache.Invalidator `optional:"true"`
	Metrics     *obsmetrics.Metrics
}

func NewRunner(p Params) *Runner {
	invalidator := p.Invalidator
	if invalidator == nil {
		invalidator = cache.Noop{}
	}
	return &Runner{
		db:          p.DB,
		log:         p.Log.Named("authtx.runner"),
		resolver:    p.Resolver,
		events:      p.Events,
		ledger:      p.Ledger,
		invalidator: invalidator,
		metrics:     p.Metrics,
		tracer:      otel.Tracer("ledgerline/authtx"),
	}
}

// Options adjust validation for one call.
type Options struct {
	// RequireUser makes resolution fail when the principal carries no
	// acting user, for operations that record actor identity.
	RequireUser bool
}

var (
	ErrEmptyOrganization = errors.New("principal has no organization")
	ErrMissingUser       = errors.New("principal has no acting user")
)

// Module wires the runner.
var Module = fx.Module("authtx",
	fx.Provide(NewRunner),
)
