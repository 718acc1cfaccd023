package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/clock"
	"github.com/smallbiznis/ledgerline/internal/migration"
	obsmetrics "github.com/smallbiznis/ledgerline/internal/observability/metrics"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/repository"
	"github.com/smallbiznis/ledgerline/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
)

type fixture struct {
	db    *gorm.DB
	svc   domain.Service
	clock *clock.FakeClock
	node  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	gdb, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, migration.Run(gdb))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := New(zaptest.NewLogger(t), repository.New(gdb), clk, node, obsmetrics.NewNop())
	return &fixture{db: gdb, svc: svc, clock: clk, node: node}
}

func desc(s string) *string { return &s }

func basicDesired() domain.DesiredStructure {
	return domain.DesiredStructure{
		Name: "Starter Plan",
		Features: []domain.DesiredFeature{
			{Slug: "sso", Name: "Single Sign-On", Description: desc("SAML and OIDC")},
			{Slug: "audit-log", Name: "Audit Log"},
		},
		Products: []domain.DesiredProduct{
			{
				Slug:         "pro",
				Name:         "Pro",
				Default:      true,
				FeatureSlugs: []string{"sso", "audit-log"},
				Prices: []domain.DesiredPrice{
					{Slug: "pro-monthly", Name: "Pro Monthly", UnitPrice: 2900, Currency: "usd", IntervalUnit: domain.IntervalUnitMonth, IntervalCount: 1},
				},
			},
		},
		Meters: []domain.DesiredMeter{
			{
				Slug: "api-calls",
				Name: "API Calls",
				Prices: []domain.DesiredPrice{
					{UnitPrice: 10, Currency: "usd", IntervalUnit: domain.IntervalUnitMonth, UsageEventsPerUnit: 1000},
				},
			},
		},
		Resources: []domain.DesiredResource{{Slug: "workspace", Name: "Workspace"}},
	}
}

func TestSetupCreatesFullStructure(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	structure, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	assert.Equal(t, orgID, structure.Model.OrgID)
	assert.Equal(t, "starter-plan", structure.Model.Slug)
	assert.False(t, structure.Model.Livemode)

	assert.Len(t, structure.Features, 2)
	assert.Len(t, structure.Products, 1)
	assert.Len(t, structure.Meters, 1)
	assert.Len(t, structure.Resources, 1)
	assert.Len(t, structure.ProductFeatures, 2)

	// One flat product price plus one usage price with a synthetic slug.
	require.Len(t, structure.Prices, 2)
	var usage *domain.Price
	for i := range structure.Prices {
		if structure.Prices[i].Type == domain.PriceTypeUsage {
			usage = &structure.Prices[i]
		}
	}
	require.NotNil(t, usage)
	assert.True(t, strings.HasPrefix(usage.Slug, "usage-"))
	require.NotNil(t, usage.UsageMeterID)
	assert.Equal(t, structure.Meters[0].ID, *usage.UsageMeterID)
}

func TestSetupSynthesizesDefaultProduct(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	desired := basicDesired()
	desired.Products[0].Default = false

	structure, err := f.svc.Setup(context.Background(), f.db, orgID, false, desired)
	require.NoError(t, err)

	require.Len(t, structure.Products, 2)
	defaults := 0
	for _, p := range structure.Products {
		if p.Default {
			defaults++
		}
	}
	assert.Equal(t, 1, defaults)
}

func TestSetupRejectsInvalidSlug(t *testing.T) {
	f := newFixture(t)

	desired := basicDesired()
	desired.Features[0].Slug = "Not A Slug!"

	_, err := f.svc.Setup(context.Background(), f.db, f.node.Generate(), false, desired)
	require.ErrorIs(t, err, domain.ErrInvalidSlug)
}

func TestSetupRejectsDuplicateModelSlug(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	_, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	_, err = f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.ErrorIs(t, err, domain.ErrInvalidSlug)
}

func TestSetupRejectsMultipleDefaults(t *testing.T) {
	f := newFixture(t)

	desired := basicDesired()
	desired.Products = append(desired.Products, domain.DesiredProduct{Slug: "other", Name: "Other", Default: true})

	_, err := f.svc.Setup(context.Background(), f.db, f.node.Generate(), false, desired)
	require.ErrorIs(t, err, domain.ErrMultipleDefaults)
}

func TestReconcileUpdatesInPlaceAndExpiresRemoved(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	initial, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	var auditLogID snowflake.ID
	for _, feat := range initial.Features {
		if feat.Slug == "audit-log" {
			auditLogID = feat.ID
		}
	}
	require.NotZero(t, auditLogID)

	f.clock.Advance(time.Hour)

	next := basicDesired()
	next.Features = []domain.DesiredFeature{{Slug: "audit-log", Name: "Audit Trail"}}
	next.Products[0].FeatureSlugs = []string{"audit-log"}

	updated, err := f.svc.Reconcile(context.Background(), f.db, orgID, initial.Model.ID, next)
	require.NoError(t, err)

	byName := map[string]domain.Feature{}
	for _, feat := range updated.Features {
		byName[feat.Slug] = feat
	}
	require.Len(t, byName, 2)

	// The shared slug kept its row and picked up the new name.
	assert.Equal(t, auditLogID, byName["audit-log"].ID)
	assert.Equal(t, "Audit Trail", byName["audit-log"].Name)
	assert.Nil(t, byName["audit-log"].ExpiredAt)

	// The removed slug was expired, not deleted.
	require.NotNil(t, byName["sso"].ExpiredAt)

	// The sso grant was expired with its feature.
	activeGrants := 0
	for _, pf := range updated.ProductFeatures {
		if pf.ExpiredAt == nil {
			activeGrants++
		}
	}
	assert.Equal(t, 1, activeGrants)
}

func TestReconcileAddsEntitiesToExistingStructure(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	initial, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	f.clock.Advance(time.Hour)

	// Fresh rows land in the same write batch as the surviving ones.
	next := basicDesired()
	next.Features = append(next.Features, domain.DesiredFeature{Slug: "priority-support", Name: "Priority Support"})
	next.Products[0].FeatureSlugs = append(next.Products[0].FeatureSlugs, "priority-support")
	next.Products[0].Prices = append(next.Products[0].Prices, domain.DesiredPrice{
		Slug: "pro-yearly", Name: "Pro Yearly", UnitPrice: 29000, Currency: "usd", IntervalUnit: domain.IntervalUnitYear, IntervalCount: 1,
	})

	updated, err := f.svc.Reconcile(context.Background(), f.db, orgID, initial.Model.ID, next)
	require.NoError(t, err)

	bySlug := map[string]domain.Feature{}
	for _, feat := range updated.Features {
		bySlug[feat.Slug] = feat
	}
	require.Len(t, bySlug, 3)
	require.Contains(t, bySlug, "priority-support")
	assert.True(t, bySlug["priority-support"].CreatedAt.Equal(f.clock.Now()))
	assert.Nil(t, bySlug["priority-support"].ExpiredAt)

	// Surviving rows kept their identity next to the fresh ones.
	for _, feat := range initial.Features {
		assert.Equal(t, feat.ID, bySlug[feat.Slug].ID)
	}

	require.Len(t, updated.Prices, 3)
	assert.Len(t, updated.ProductFeatures, 3)
}

func TestReconcileExpiresPricesOfRemovedProduct(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	withBasic := basicDesired()
	withBasic.Products = append(withBasic.Products, domain.DesiredProduct{
		Slug: "basic",
		Name: "Basic",
		Prices: []domain.DesiredPrice{
			{Slug: "basic-monthly", Name: "Basic Monthly", UnitPrice: 900, Currency: "usd", IntervalUnit: domain.IntervalUnitMonth, IntervalCount: 1},
		},
	})
	initial, err := f.svc.Setup(context.Background(), f.db, orgID, false, withBasic)
	require.NoError(t, err)
	require.Len(t, initial.Prices, 3)

	f.clock.Advance(time.Hour)

	updated, err := f.svc.Reconcile(context.Background(), f.db, orgID, initial.Model.ID, basicDesired())
	require.NoError(t, err)

	byProductSlug := map[string]domain.Product{}
	for _, p := range updated.Products {
		byProductSlug[p.Slug] = p
	}
	require.NotNil(t, byProductSlug["basic"].ExpiredAt)

	// No active price may dangle under an expired product.
	for _, price := range updated.Prices {
		if price.Slug == "basic-monthly" {
			require.NotNil(t, price.ExpiredAt)
		} else {
			assert.Nil(t, price.ExpiredAt)
		}
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	initial, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	again, err := f.svc.Reconcile(context.Background(), f.db, orgID, initial.Model.ID, basicDesired())
	require.NoError(t, err)

	require.Len(t, again.Features, len(initial.Features))
	require.Len(t, again.Prices, len(initial.Prices))
	for i := range initial.Features {
		assert.Equal(t, initial.Features[i].ID, again.Features[i].ID)
		assert.Nil(t, again.Features[i].ExpiredAt)
	}
}

func TestReconcileOtherOrgModelLooksAbsent(t *testing.T) {
	f := newFixture(t)

	owner := f.node.Generate()
	structure, err := f.svc.Setup(context.Background(), f.db, owner, false, basicDesired())
	require.NoError(t, err)

	intruder := f.node.Generate()
	_, err = f.svc.Reconcile(context.Background(), f.db, intruder, structure.Model.ID, basicDesired())
	require.ErrorIs(t, err, domain.ErrPricingModelNotFound)
}

func TestPromoteToLiveCreatesLiveModel(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	source, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	live, err := f.svc.PromoteToLive(context.Background(), f.db, orgID, source.Model.ID)
	require.NoError(t, err)

	assert.True(t, live.Model.Livemode)
	assert.NotEqual(t, source.Model.ID, live.Model.ID)

	sourceSlugs := map[string]struct{}{}
	for _, feat := range source.Features {
		sourceSlugs[feat.Slug] = struct{}{}
	}
	liveSlugs := map[string]struct{}{}
	for _, feat := range live.Features {
		require.Nil(t, feat.ExpiredAt)
		// Live rows carry fresh identities under the live model.
		assert.Equal(t, live.Model.ID, feat.PricingModelID)
		liveSlugs[feat.Slug] = struct{}{}
	}
	assert.Equal(t, sourceSlugs, liveSlugs)
}

func TestPromoteToLivePreservesLiveNameAndMeters(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	liveDesired := basicDesired()
	liveDesired.Name = "Production Catalog"
	liveDesired.Meters = append(liveDesired.Meters, domain.DesiredMeter{Slug: "legacy-egress", Name: "Legacy Egress"})

	liveBefore, err := f.svc.Setup(context.Background(), f.db, orgID, true, liveDesired)
	require.NoError(t, err)

	source, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	liveAfter, err := f.svc.PromoteToLive(context.Background(), f.db, orgID, source.Model.ID)
	require.NoError(t, err)

	assert.Equal(t, liveBefore.Model.ID, liveAfter.Model.ID)
	assert.Equal(t, "Production Catalog", liveAfter.Model.Name)

	// The live meter the source never declared survives promotion.
	var legacy *domain.UsageMeter
	for i := range liveAfter.Meters {
		if liveAfter.Meters[i].Slug == "legacy-egress" {
			legacy = &liveAfter.Meters[i]
		}
	}
	require.NotNil(t, legacy)
	assert.Nil(t, legacy.ExpiredAt)
}

func TestPromoteToLiveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	source, err := f.svc.Setup(context.Background(), f.db, orgID, false, basicDesired())
	require.NoError(t, err)

	first, err := f.svc.PromoteToLive(context.Background(), f.db, orgID, source.Model.ID)
	require.NoError(t, err)

	second, err := f.svc.PromoteToLive(context.Background(), f.db, orgID, source.Model.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Model.ID, second.Model.ID)
	require.Len(t, second.Features, len(first.Features))
	for i := range first.Features {
		assert.Equal(t, first.Features[i].ID, second.Features[i].ID)
	}
}

func TestPromoteLiveModelIsNoop(t *testing.T) {
	f := newFixture(t)
	orgID := f.node.Generate()

	live, err := f.svc.Setup(context.Background(), f.db, orgID, true, basicDesired())
	require.NoError(t, err)

	result, err := f.svc.PromoteToLive(context.Background(), f.db, orgID, live.Model.ID)
	require.NoError(t, err)
	assert.Equal(t, live.Model.ID, result.Model.ID)
}
