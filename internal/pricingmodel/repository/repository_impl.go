package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/ledgerline/internal/pricingmodel/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) FindModel(ctx context.Context, modelID snowflake.ID) (*domain.PricingModel, error) {
	var model domain.PricingModel
	err := r.db.WithContext(ctx).
		Where("id = ?", modelID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &model, nil
}

// FindLiveModel returns the organization's live pricing model. When
// more than one exists the oldest wins, matching promotion order.
func (r *repository) FindLiveModel(ctx context.Context, orgID snowflake.ID) (*domain.PricingModel, error) {
	var model domain.PricingModel
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND livemode = ?", orgID, true).
		Order("created_at ASC, id ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &model, nil
}

func (r *repository) CreateModel(ctx context.Context, model *domain.PricingModel) error {
	return r.db.WithContext(ctx).Create(model).Error
}

func (r *repository) SaveModel(ctx context.Context, model *domain.PricingModel) error {
	return r.db.WithContext(ctx).Save(model).Error
}

func (r *repository) LoadStructure(ctx context.Context, modelID snowflake.ID) (*domain.Structure, error) {
	db := r.db.WithContext(ctx)

	var model domain.PricingModel
	if err := db.Where("id = ?", modelID).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrPricingModelNotFound
		}
		return nil, err
	}

	structure := domain.Structure{Model: model}

	if err := db.Where("pricing_model_id = ?", modelID).Order("id ASC").Find(&structure.Features).Error; err != nil {
		return nil, err
	}
	if err := db.Where("pricing_model_id = ?", modelID).Order("id ASC").Find(&structure.Products).Error; err != nil {
		return nil, err
	}
	if err := db.Where("pricing_model_id = ?", modelID).Order("id ASC").Find(&structure.Prices).Error; err != nil {
		return nil, err
	}
	if err := db.Where("pricing_model_id = ?", modelID).Order("id ASC").Find(&structure.Meters).Error; err != nil {
		return nil, err
	}
	if err := db.Where("pricing_model_id = ?", modelID).Order("id ASC").Find(&structure.Resources).Error; err != nil {
		return nil, err
	}
	err := db.
		Where("product_id IN (?)", db.Session(&gorm.Session{NewDB: true}).Model(&domain.Product{}).Select("id").Where("pricing_model_id = ?", modelID)).
		Order("id ASC").
		Find(&structure.ProductFeatures).Error
	if err != nil {
		return nil, err
	}

	return &structure, nil
}

func (r *repository) SaveFeatures(ctx context.Context, rows []domain.Feature) error {
	return upsert(r.db.WithContext(ctx), rows)
}

func (r *repository) SaveProducts(ctx context.Context, rows []domain.Product) error {
	return upsert(r.db.WithContext(ctx), rows)
}

func (r *repository) SavePrices(ctx context.Context, rows []domain.Price) error {
	return upsert(r.db.WithContext(ctx), rows)
}

func (r *repository) SaveMeters(ctx context.Context, rows []domain.UsageMeter) error {
	return upsert(r.db.WithContext(ctx), rows)
}

func (r *repository) SaveResources(ctx context.Context, rows []domain.Resource) error {
	return upsert(r.db.WithContext(ctx), rows)
}

func (r *repository) SaveProductFeatures(ctx context.Context, rows []domain.ProductFeature) error {
	return upsert(r.db.WithContext(ctx), rows)
}

// upsert writes rows with pre-assigned primary keys, updating in place
// when the key already exists.
func upsert[T any](db *gorm.DB, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rows).Error
}
