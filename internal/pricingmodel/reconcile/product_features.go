package reconcile

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
)

// AssociationKey identifies a product-feature grant. Association rows
// are keyed by this pair, not by slug or insertion order.
type AssociationKey struct {
	ProductID snowflake.ID
	FeatureID snowflake.ID
}

// ProductFeatures diffs the desired grant set against existing
// association rows:
//   - desired and absent: a new row is added
//   - desired and present but expired: the row is unexpired in place
//     and reported in ToAdd, not duplicated
//   - desired and present and active: untouched
//   - not desired and active: expired
//   - not desired and already expired: untouched (idempotent no-op)
func ProductFeatures(desired []AssociationKey, existing []domain.ProductFeature, now time.Time, genID func() snowflake.ID) Plan[domain.ProductFeature] {
	var plan Plan[domain.ProductFeature]

	byKey := make(map[AssociationKey]domain.ProductFeature, len(existing))
	for _, row := range existing {
		byKey[AssociationKey{ProductID: row.ProductID, FeatureID: row.FeatureID}] = row
	}

	wanted := make(map[AssociationKey]struct{}, len(desired))
	for _, key := range desired {
		wanted[key] = struct{}{}

		row, ok := byKey[key]
		if !ok {
			plan.ToAdd = append(plan.ToAdd, domain.ProductFeature{
				ID:        genID(),
				ProductID: key.ProductID,
				FeatureID: key.FeatureID,
				CreatedAt: now,
				UpdatedAt: now,
			})
			continue
		}
		if row.ExpiredAt != nil {
			row.ExpiredAt = nil
			row.UpdatedAt = now
			plan.ToAdd = append(plan.ToAdd, row)
		}
	}

	for _, row := range existing {
		key := AssociationKey{ProductID: row.ProductID, FeatureID: row.FeatureID}
		if _, ok := wanted[key]; ok {
			continue
		}
		if row.ExpiredAt != nil {
			continue
		}
		expiredAt := now
		row.ExpiredAt = &expiredAt
		row.UpdatedAt = now
		plan.ToExpire = append(plan.ToExpire, row)
	}

	return plan
}
