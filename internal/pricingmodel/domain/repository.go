package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository persists pricing models and their child rows. Save
// methods upsert by primary key so one call covers adds, updates and
// soft expiries alike.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindModel(ctx context.Context, modelID snowflake.ID) (*PricingModel, error)
	FindLiveModel(ctx context.Context, orgID snowflake.ID) (*PricingModel, error)
	CreateModel(ctx context.Context, model *PricingModel) error
	SaveModel(ctx context.Context, model *PricingModel) error

	LoadStructure(ctx context.Context, modelID snowflake.ID) (*Structure, error)

	SaveFeatures(ctx context.Context, rows []Feature) error
	SaveProducts(ctx context.Context, rows []Product) error
	SavePrices(ctx context.Context, rows []Price) error
	SaveMeters(ctx context.Context, rows []UsageMeter) error
	SaveResources(ctx context.Context, rows []Resource) error
	SaveProductFeatures(ctx context.Context, rows []ProductFeature) error
}
