package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/ledgerline/internal/clock"
	obsmetrics "github.com/smallbiznis/ledgerline/internal/observability/metrics"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/reconcile"
	"github.com/smallbiznis/ledgerline/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service applies desired pricing-model structures: diff inside the
// caller's transaction, then upsert the resulting rows. Rows are never
// deleted; removal is a soft expiry.
type Service struct {
	log     *zap.Logger
	repo    domain.Repository
	clock   clock.Clock
	genID   *snowflake.Node
	metrics *obsmetrics.Metrics
}

func New(log *zap.Logger, repo domain.Repository, clk clock.Clock, node *snowflake.Node, m *obsmetrics.Metrics) domain.Service {
	return &Service{
		log:     log.Named("pricingmodel.service"),
		repo:    repo,
		clock:   clk,
		genID:   node,
		metrics: m,
	}
}

func (s *Service) Setup(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, livemode bool, desired domain.DesiredStructure) (*domain.Structure, error) {
	if err := validateDesired(desired); err != nil {
		return nil, err
	}

	modelSlug := slug.Make(desired.Name)
	if modelSlug == "" {
		return nil, fmt.Errorf("%w: pricing model name %q", domain.ErrInvalidSlug, desired.Name)
	}

	repo := s.repo.WithTx(tx)
	model := &domain.PricingModel{
		ID:       s.genID.Generate(),
		OrgID:    orgID,
		Slug:     modelSlug,
		Name:     desired.Name,
		Livemode: livemode,
	}
	if err := repo.CreateModel(ctx, model); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: pricing model slug %q already in use", domain.ErrInvalidSlug, modelSlug)
		}
		return nil, err
	}

	existing := domain.Structure{Model: *model}
	plan, err := reconcile.Structure(desired, existing, reconcile.StructurePolicy{}, s.clock.Now(), s.generate)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, repo, plan); err != nil {
		return nil, err
	}

	s.log.Info("pricing model created",
		zap.String("org_id", orgID.String()),
		zap.String("pricing_model_id", model.ID.String()),
		zap.Bool("livemode", livemode),
	)
	return repo.LoadStructure(ctx, model.ID)
}

func (s *Service) Reconcile(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, modelID snowflake.ID, desired domain.DesiredStructure) (*domain.Structure, error) {
	if err := validateDesired(desired); err != nil {
		return nil, err
	}

	repo := s.repo.WithTx(tx)
	model, err := s.ownedModel(ctx, repo, orgID, modelID)
	if err != nil {
		return nil, err
	}

	existing, err := repo.LoadStructure(ctx, model.ID)
	if err != nil {
		return nil, err
	}

	if desired.Name != "" && desired.Name != model.Name {
		model.Name = desired.Name
		model.UpdatedAt = s.clock.Now()
		if err := repo.SaveModel(ctx, model); err != nil {
			return nil, err
		}
		existing.Model = *model
	}

	plan, err := reconcile.Structure(desired, *existing, reconcile.StructurePolicy{}, s.clock.Now(), s.generate)
	if err != nil {
		return nil, err
	}
	if plan.IsNoop() {
		return existing, nil
	}
	if err := s.apply(ctx, repo, plan); err != nil {
		return nil, err
	}

	s.log.Info("pricing model reconciled",
		zap.String("org_id", orgID.String()),
		zap.String("pricing_model_id", model.ID.String()),
	)
	return repo.LoadStructure(ctx, model.ID)
}

// PromoteToLive projects a test-mode model onto the organization's
// live structure. The live model keeps its own identity and name; live
// usage meters the source never declared survive untouched.
func (s *Service) PromoteToLive(ctx context.Context, tx *gorm.DB, orgID snowflake.ID, sourceModelID snowflake.ID) (*domain.Structure, error) {
	repo := s.repo.WithTx(tx)
	source, err := s.ownedModel(ctx, repo, orgID, sourceModelID)
	if err != nil {
		return nil, err
	}
	if source.Livemode {
		return repo.LoadStructure(ctx, source.ID)
	}

	sourceStructure, err := repo.LoadStructure(ctx, source.ID)
	if err != nil {
		return nil, err
	}
	desired := desiredFromStructure(sourceStructure)

	live, err := repo.FindLiveModel(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if live == nil {
		live = &domain.PricingModel{
			ID:       s.genID.Generate(),
			OrgID:    orgID,
			Slug:     source.Slug,
			Name:     source.Name,
			Livemode: true,
		}
		if err := repo.CreateModel(ctx, live); err != nil {
			return nil, err
		}
	} else {
		desired.Name = live.Name
	}

	liveStructure, err := repo.LoadStructure(ctx, live.ID)
	if err != nil {
		return nil, err
	}

	policy := reconcile.StructurePolicy{Meters: reconcile.Policy{PreserveUnreferenced: true}}
	plan, err := reconcile.Structure(desired, *liveStructure, policy, s.clock.Now(), s.generate)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, repo, plan); err != nil {
		return nil, err
	}

	s.log.Info("pricing model promoted",
		zap.String("org_id", orgID.String()),
		zap.String("source_pricing_model_id", source.ID.String()),
		zap.String("live_pricing_model_id", live.ID.String()),
	)
	return repo.LoadStructure(ctx, live.ID)
}

func (s *Service) generate() snowflake.ID {
	return s.genID.Generate()
}

func (s *Service) ownedModel(ctx context.Context, repo domain.Repository, orgID, modelID snowflake.ID) (*domain.PricingModel, error) {
	model, err := repo.FindModel(ctx, modelID)
	if err != nil {
		return nil, err
	}
	// Models of other organizations stay indistinguishable from absent ones.
	if model == nil || model.OrgID != orgID {
		return nil, domain.ErrPricingModelNotFound
	}
	return model, nil
}

func (s *Service) apply(ctx context.Context, repo domain.Repository, plan reconcile.StructurePlan) error {
	s.record("feature", plan.Features)
	s.record("product", plan.Products)
	s.record("price", plan.Prices)
	s.record("usage_meter", plan.Meters)
	s.record("resource", plan.Resources)
	s.record("product_feature", plan.Associations)

	if err := repo.SaveFeatures(ctx, rows(plan.Features)); err != nil {
		return err
	}
	if err := repo.SaveProducts(ctx, rows(plan.Products)); err != nil {
		return err
	}
	if err := repo.SaveMeters(ctx, rows(plan.Meters)); err != nil {
		return err
	}
	if err := repo.SavePrices(ctx, rows(plan.Prices)); err != nil {
		return err
	}
	if err := repo.SaveResources(ctx, rows(plan.Resources)); err != nil {
		return err
	}
	return repo.SaveProductFeatures(ctx, rows(plan.Associations))
}

func (s *Service) record(kind string, counts interface{ Counts() (int, int, int) }) {
	added, updated, expired := counts.Counts()
	s.metrics.RecordReconciliation(kind, "add", added)
	s.metrics.RecordReconciliation(kind, "update", updated)
	s.metrics.RecordReconciliation(kind, "expire", expired)
}

func rows[T any](plan reconcile.Plan[T]) []T {
	out := make([]T, 0, len(plan.ToAdd)+len(plan.ToUpdate)+len(plan.ToExpire))
	out = append(out, plan.ToAdd...)
	out = append(out, plan.ToUpdate...)
	out = append(out, plan.ToExpire...)
	return out
}

// validateDesired rejects malformed slugs before any row is written.
// Usage prices may omit their slug; they receive a synthetic one.
func validateDesired(desired domain.DesiredStructure) error {
	check := func(kind, s string) error {
		if s == "" || !slug.IsSlug(s) {
			return fmt.Errorf("%w: %s %q", domain.ErrInvalidSlug, kind, s)
		}
		return nil
	}
	for _, f := range desired.Features {
		if err := check("feature", f.Slug); err != nil {
			return err
		}
	}
	for _, p := range desired.Products {
		if err := check("product", p.Slug); err != nil {
			return err
		}
		for _, price := range p.Prices {
			if err := check("price", price.Slug); err != nil {
				return err
			}
		}
		for _, fs := range p.FeatureSlugs {
			if err := check("feature reference", fs); err != nil {
				return err
			}
		}
	}
	for _, m := range desired.Meters {
		if err := check("usage meter", m.Slug); err != nil {
			return err
		}
		for _, price := range m.Prices {
			if strings.TrimSpace(price.Slug) == "" {
				continue
			}
			if err := check("usage price", price.Slug); err != nil {
				return err
			}
		}
	}
	for _, r := range desired.Resources {
		if err := check("resource", r.Slug); err != nil {
			return err
		}
	}
	return nil
}

// desiredFromStructure converts the active rows of a stored structure
// into the desired form, preserving stored slugs so promotion diffs
// stay stable across runs.
func desiredFromStructure(structure *domain.Structure) domain.DesiredStructure {
	desired := domain.DesiredStructure{Name: structure.Model.Name}

	featureSlugByID := make(map[snowflake.ID]string)
	for _, f := range structure.Features {
		if f.ExpiredAt != nil {
			continue
		}
		featureSlugByID[f.ID] = f.Slug
		desired.Features = append(desired.Features, domain.DesiredFeature{
			Slug:        f.Slug,
			Name:        f.Name,
			Description: f.Description,
		})
	}

	grants := make(map[snowflake.ID][]string)
	for _, pf := range structure.ProductFeatures {
		if pf.ExpiredAt != nil {
			continue
		}
		if featureSlug, ok := featureSlugByID[pf.FeatureID]; ok {
			grants[pf.ProductID] = append(grants[pf.ProductID], featureSlug)
		}
	}

	pricesByProduct := make(map[snowflake.ID][]domain.DesiredPrice)
	pricesByMeter := make(map[snowflake.ID][]domain.DesiredPrice)
	for _, p := range structure.Prices {
		if p.ExpiredAt != nil {
			continue
		}
		dp := domain.DesiredPrice{
			Slug:               p.Slug,
			Name:               p.Name,
			Type:               p.Type,
			UnitPrice:          p.UnitPrice,
			Currency:           p.Currency,
			IntervalUnit:       p.IntervalUnit,
			IntervalCount:      p.IntervalCount,
			UsageEventsPerUnit: p.UsageEventsPerUnit,
		}
		switch {
		case p.ProductID != nil:
			pricesByProduct[*p.ProductID] = append(pricesByProduct[*p.ProductID], dp)
		case p.UsageMeterID != nil:
			pricesByMeter[*p.UsageMeterID] = append(pricesByMeter[*p.UsageMeterID], dp)
		}
	}

	for _, p := range structure.Products {
		if p.ExpiredAt != nil {
			continue
		}
		desired.Products = append(desired.Products, domain.DesiredProduct{
			Slug:         p.Slug,
			Name:         p.Name,
			Description:  p.Description,
			Default:      p.Default,
			Prices:       pricesByProduct[p.ID],
			FeatureSlugs: grants[p.ID],
		})
	}

	for _, m := range structure.Meters {
		if m.ExpiredAt != nil {
			continue
		}
		desired.Meters = append(desired.Meters, domain.DesiredMeter{
			Slug:        m.Slug,
			Name:        m.Name,
			Aggregation: m.Aggregation,
			Prices:      pricesByMeter[m.ID],
		})
	}

	for _, r := range structure.Resources {
		if r.ExpiredAt != nil {
			continue
		}
		desired.Resources = append(desired.Resources, domain.DesiredResource{
			Slug: r.Slug,
			Name: r.Name,
		})
	}

	return desired
}
