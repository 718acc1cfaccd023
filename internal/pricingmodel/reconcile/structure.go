package reconcile

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
)

// StructurePlan is the combined diff across all entity kinds of one
// pricing model.
type StructurePlan struct {
	Features     Plan[domain.Feature]
	Products     Plan[domain.Product]
	Prices       Plan[domain.Price]
	Meters       Plan[domain.UsageMeter]
	Resources    Plan[domain.Resource]
	Associations Plan[domain.ProductFeature]
}

// IsNoop reports whether applying the plan would change nothing.
func (p StructurePlan) IsNoop() bool {
	return p.Features.IsNoop() && p.Products.IsNoop() && p.Prices.IsNoop() &&
		p.Meters.IsNoop() && p.Resources.IsNoop() && p.Associations.IsNoop()
}

// StructurePolicy selects expiry behavior per entity kind.
type StructurePolicy struct {
	Meters Policy
}

// Structure computes the full diff of desired against existing. It
// validates the default-product constraint, assigns synthetic slugs to
// anonymous usage prices, and resolves product-feature associations
// against both stored and to-be-created rows. No database access
// happens here.
func Structure(desired domain.DesiredStructure, existing domain.Structure, policy StructurePolicy, now time.Time, genID func() snowflake.ID) (StructurePlan, error) {
	products, err := EnsureDefaultProduct(desired.Name, desired.Products)
	if err != nil {
		return StructurePlan{}, err
	}

	modelID := existing.Model.ID
	var plan StructurePlan

	plan.Features = BySlug(desired.Features, existing.Features, Policy{}, Hooks[domain.DesiredFeature, domain.Feature]{
		DesiredSlug: func(d domain.DesiredFeature) string { return d.Slug },
		RowSlug:     func(f domain.Feature) string { return f.Slug },
		Create: func(d domain.DesiredFeature) domain.Feature {
			return domain.Feature{
				ID:             genID(),
				PricingModelID: modelID,
				Slug:           d.Slug,
				Name:           d.Name,
				Description:    d.Description,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
		},
		Merge: func(d domain.DesiredFeature, f domain.Feature) domain.Feature {
			f.Name = d.Name
			f.Description = d.Description
			f.ExpiredAt = nil
			f.UpdatedAt = now
			return f
		},
		Expire:    expireRow(now, func(f *domain.Feature) **time.Time { return &f.ExpiredAt }, func(f *domain.Feature) *time.Time { return &f.UpdatedAt }),
		IsExpired: func(f domain.Feature) bool { return f.ExpiredAt != nil },
	})

	plan.Products = BySlug(products, existing.Products, Policy{}, Hooks[domain.DesiredProduct, domain.Product]{
		DesiredSlug: func(d domain.DesiredProduct) string { return d.Slug },
		RowSlug:     func(p domain.Product) string { return p.Slug },
		Create: func(d domain.DesiredProduct) domain.Product {
			return domain.Product{
				ID:             genID(),
				PricingModelID: modelID,
				Slug:           d.Slug,
				Name:           d.Name,
				Description:    d.Description,
				Default:        d.Default,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
		},
		Merge: func(d domain.DesiredProduct, p domain.Product) domain.Product {
			p.Name = d.Name
			p.Description = d.Description
			p.Default = d.Default
			p.ExpiredAt = nil
			p.UpdatedAt = now
			return p
		},
		Expire:    expireRow(now, func(p *domain.Product) **time.Time { return &p.ExpiredAt }, func(p *domain.Product) *time.Time { return &p.UpdatedAt }),
		IsExpired: func(p domain.Product) bool { return p.ExpiredAt != nil },
	})

	plan.Meters = BySlug(desired.Meters, existing.Meters, policy.Meters, Hooks[domain.DesiredMeter, domain.UsageMeter]{
		DesiredSlug: func(d domain.DesiredMeter) string { return d.Slug },
		RowSlug:     func(m domain.UsageMeter) string { return m.Slug },
		Create: func(d domain.DesiredMeter) domain.UsageMeter {
			aggregation := d.Aggregation
			if aggregation == "" {
				aggregation = "sum"
			}
			return domain.UsageMeter{
				ID:             genID(),
				PricingModelID: modelID,
				Slug:           d.Slug,
				Name:           d.Name,
				Aggregation:    aggregation,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
		},
		Merge: func(d domain.DesiredMeter, m domain.UsageMeter) domain.UsageMeter {
			m.Name = d.Name
			if d.Aggregation != "" {
				m.Aggregation = d.Aggregation
			}
			m.ExpiredAt = nil
			m.UpdatedAt = now
			return m
		},
		Expire:    expireRow(now, func(m *domain.UsageMeter) **time.Time { return &m.ExpiredAt }, func(m *domain.UsageMeter) *time.Time { return &m.UpdatedAt }),
		IsExpired: func(m domain.UsageMeter) bool { return m.ExpiredAt != nil },
	})

	plan.Resources = BySlug(desired.Resources, existing.Resources, Policy{}, Hooks[domain.DesiredResource, domain.Resource]{
		DesiredSlug: func(d domain.DesiredResource) string { return d.Slug },
		RowSlug:     func(r domain.Resource) string { return r.Slug },
		Create: func(d domain.DesiredResource) domain.Resource {
			return domain.Resource{
				ID:             genID(),
				PricingModelID: modelID,
				Slug:           d.Slug,
				Name:           d.Name,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
		},
		Merge: func(d domain.DesiredResource, r domain.Resource) domain.Resource {
			r.Name = d.Name
			r.ExpiredAt = nil
			r.UpdatedAt = now
			return r
		},
		Expire:    expireRow(now, func(r *domain.Resource) **time.Time { return &r.ExpiredAt }, func(r *domain.Resource) *time.Time { return &r.UpdatedAt }),
		IsExpired: func(r domain.Resource) bool { return r.ExpiredAt != nil },
	})

	productIDs := slugIndexProducts(plan.Products, existing.Products)
	meterIDs := slugIndexMeters(plan.Meters, existing.Meters)
	featureIDs := slugIndexFeatures(plan.Features, existing.Features)

	expiredProducts := make(map[snowflake.ID]struct{}, len(plan.Products.ToExpire))
	for _, p := range plan.Products.ToExpire {
		expiredProducts[p.ID] = struct{}{}
	}
	expiredMeters := make(map[snowflake.ID]struct{}, len(plan.Meters.ToExpire))
	for _, m := range plan.Meters.ToExpire {
		expiredMeters[m.ID] = struct{}{}
	}

	plan.Prices = diffPrices(products, desired.Meters, existing, productIDs, meterIDs, expiredProducts, expiredMeters, now, genID)

	var wanted []AssociationKey
	for _, product := range products {
		productID, ok := productIDs[product.Slug]
		if !ok {
			continue
		}
		for _, featureSlug := range product.FeatureSlugs {
			featureID, ok := featureIDs[featureSlug]
			if !ok {
				continue
			}
			wanted = append(wanted, AssociationKey{ProductID: productID, FeatureID: featureID})
		}
	}
	plan.Associations = ProductFeatures(wanted, existing.ProductFeatures, now, genID)

	return plan, nil
}

// diffPrices diffs prices per parent. Usage prices without a slug get
// their synthetic one before matching so slug-matching is total.
// Active prices of an expired parent expire with it; meters kept by a
// PreserveUnreferenced policy never reach expiredMeters, so their
// prices stay live alongside them.
func diffPrices(products []domain.DesiredProduct, meters []domain.DesiredMeter, existing domain.Structure, productIDs map[string]snowflake.ID, meterIDs map[string]snowflake.ID, expiredProducts map[snowflake.ID]struct{}, expiredMeters map[snowflake.ID]struct{}, now time.Time, genID func() snowflake.ID) Plan[domain.Price] {
	var merged Plan[domain.Price]

	appendPlan := func(p Plan[domain.Price]) {
		merged.ToAdd = append(merged.ToAdd, p.ToAdd...)
		merged.ToUpdate = append(merged.ToUpdate, p.ToUpdate...)
		merged.ToExpire = append(merged.ToExpire, p.ToExpire...)
	}

	modelID := existing.Model.ID
	hooks := func(productID, meterID *snowflake.ID, priceType domain.PriceType) Hooks[domain.DesiredPrice, domain.Price] {
		return Hooks[domain.DesiredPrice, domain.Price]{
			DesiredSlug: func(d domain.DesiredPrice) string { return d.Slug },
			RowSlug:     func(p domain.Price) string { return p.Slug },
			Create: func(d domain.DesiredPrice) domain.Price {
				intervalCount := d.IntervalCount
				if intervalCount == 0 {
					intervalCount = 1
				}
				eventsPerUnit := d.UsageEventsPerUnit
				if eventsPerUnit == 0 {
					eventsPerUnit = 1
				}
				return domain.Price{
					ID:                 genID(),
					PricingModelID:     modelID,
					ProductID:          productID,
					UsageMeterID:       meterID,
					Slug:               d.Slug,
					Name:               d.Name,
					Type:               priceType,
					UnitPrice:          d.UnitPrice,
					Currency:           d.Currency,
					IntervalUnit:       d.IntervalUnit,
					IntervalCount:      intervalCount,
					UsageEventsPerUnit: eventsPerUnit,
					CreatedAt:          now,
					UpdatedAt:          now,
				}
			},
			Merge: func(d domain.DesiredPrice, p domain.Price) domain.Price {
				p.Name = d.Name
				p.UnitPrice = d.UnitPrice
				p.Currency = d.Currency
				p.IntervalUnit = d.IntervalUnit
				if d.IntervalCount != 0 {
					p.IntervalCount = d.IntervalCount
				}
				if d.UsageEventsPerUnit != 0 {
					p.UsageEventsPerUnit = d.UsageEventsPerUnit
				}
				p.ExpiredAt = nil
				p.UpdatedAt = now
				return p
			},
			Expire:    expireRow(now, func(p *domain.Price) **time.Time { return &p.ExpiredAt }, func(p *domain.Price) *time.Time { return &p.UpdatedAt }),
			IsExpired: func(p domain.Price) bool { return p.ExpiredAt != nil },
		}
	}

	for _, product := range products {
		productID, ok := productIDs[product.Slug]
		if !ok {
			continue
		}
		id := productID
		rows := pricesOfProduct(existing.Prices, productID)
		appendPlan(BySlug(product.Prices, rows, Policy{}, hooks(&id, nil, domain.PriceTypeFlat)))
	}

	for _, meter := range meters {
		meterID, ok := meterIDs[meter.Slug]
		if !ok {
			continue
		}
		id := meterID
		prices := make([]domain.DesiredPrice, 0, len(meter.Prices))
		for _, price := range meter.Prices {
			if strings.TrimSpace(price.Slug) == "" {
				price.Slug = SyntheticUsagePriceSlug(meter.Slug, price)
			}
			price.Type = domain.PriceTypeUsage
			prices = append(prices, price)
		}
		rows := pricesOfMeter(existing.Prices, meterID)
		appendPlan(BySlug(prices, rows, Policy{}, hooks(nil, &id, domain.PriceTypeUsage)))
	}

	expire := expireRow(now, func(p *domain.Price) **time.Time { return &p.ExpiredAt }, func(p *domain.Price) *time.Time { return &p.UpdatedAt })
	for _, price := range existing.Prices {
		if price.ExpiredAt != nil {
			continue
		}
		switch {
		case price.ProductID != nil:
			if _, ok := expiredProducts[*price.ProductID]; ok {
				merged.ToExpire = append(merged.ToExpire, expire(price))
			}
		case price.UsageMeterID != nil:
			if _, ok := expiredMeters[*price.UsageMeterID]; ok {
				merged.ToExpire = append(merged.ToExpire, expire(price))
			}
		}
	}

	return merged
}

func pricesOfProduct(prices []domain.Price, productID snowflake.ID) []domain.Price {
	var out []domain.Price
	for _, p := range prices {
		if p.ProductID != nil && *p.ProductID == productID {
			out = append(out, p)
		}
	}
	return out
}

func pricesOfMeter(prices []domain.Price, meterID snowflake.ID) []domain.Price {
	var out []domain.Price
	for _, p := range prices {
		if p.UsageMeterID != nil && *p.UsageMeterID == meterID {
			out = append(out, p)
		}
	}
	return out
}

func slugIndexProducts(plan Plan[domain.Product], existing []domain.Product) map[string]snowflake.ID {
	index := make(map[string]snowflake.ID)
	for _, p := range existing {
		index[p.Slug] = p.ID
	}
	for _, p := range plan.ToAdd {
		index[p.Slug] = p.ID
	}
	for _, p := range plan.ToUpdate {
		index[p.Slug] = p.ID
	}
	return index
}

func slugIndexMeters(plan Plan[domain.UsageMeter], existing []domain.UsageMeter) map[string]snowflake.ID {
	index := make(map[string]snowflake.ID)
	for _, m := range existing {
		index[m.Slug] = m.ID
	}
	for _, m := range plan.ToAdd {
		index[m.Slug] = m.ID
	}
	for _, m := range plan.ToUpdate {
		index[m.Slug] = m.ID
	}
	return index
}

func slugIndexFeatures(plan Plan[domain.Feature], existing []domain.Feature) map[string]snowflake.ID {
	index := make(map[string]snowflake.ID)
	for _, f := range existing {
		index[f.Slug] = f.ID
	}
	for _, f := range plan.ToAdd {
		index[f.Slug] = f.ID
	}
	for _, f := range plan.ToUpdate {
		index[f.Slug] = f.ID
	}
	return index
}

// expireRow builds an Expire hook that stamps the expiry and update
// times on a copy of the row.
func expireRow[T any](now time.Time, expiredAt func(*T) **time.Time, updatedAt func(*T) *time.Time) func(T) T {
	return func(row T) T {
		ts := now
		*expiredAt(&row) = &ts
		*updatedAt(&row) = now
		return row
	}
}
