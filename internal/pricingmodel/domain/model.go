// Package domain contains the pricing-model tree: features, products
// with prices, usage meters with prices, resources, and the
// product-feature association. Children are keyed by a slug unique
// within their pricing model; removal is always a soft expiry.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PricingModel is the root of one priced catalog, scoped to an
// organization and a livemode.
type PricingModel struct {
	ID    snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID snowflake.ID `gorm:"column:org_id;not null;index;uniqueIndex:ux_pricing_models_org_slug,priority:1" json:"org_id"`
	Slug  string       `gorm:"type:text;not null;uniqueIndex:ux_pricing_models_org_slug,priority:2" json:"slug"`
	Name  string       `gorm:"type:text;not null" json:"name"`
	// A test and a live catalog may share one slug within an organization.
	Livemode  bool      `gorm:"not null;uniqueIndex:ux_pricing_models_org_slug,priority:3" json:"livemode"`
	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (PricingModel) TableName() string { return "pricing_models" }

// Feature is a sellable capability attached to products.
type Feature struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PricingModelID snowflake.ID `gorm:"column:pricing_model_id;not null;index;uniqueIndex:ux_features_model_slug,priority:1" json:"pricing_model_id"`
	Slug           string       `gorm:"type:text;not null;uniqueIndex:ux_features_model_slug,priority:2" json:"slug"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Description    *string      `gorm:"type:text" json:"description,omitempty"`
	ExpiredAt      *time.Time   `gorm:"column:expired_at" json:"expired_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Feature) TableName() string { return "features" }

// Product groups prices. Exactly one product per pricing model carries
// Default = true.
type Product struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PricingModelID snowflake.ID `gorm:"column:pricing_model_id;not null;index;uniqueIndex:ux_products_model_slug,priority:1" json:"pricing_model_id"`
	Slug           string       `gorm:"type:text;not null;uniqueIndex:ux_products_model_slug,priority:2" json:"slug"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Description    *string      `gorm:"type:text" json:"description,omitempty"`
	Default        bool         `gorm:"column:is_default;not null" json:"default"`
	ExpiredAt      *time.Time   `gorm:"column:expired_at" json:"expired_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Product) TableName() string { return "products" }

// PriceType distinguishes flat product prices from usage prices.
type PriceType string

const (
	PriceTypeFlat  PriceType = "flat"
	PriceTypeUsage PriceType = "usage"
)

// IntervalUnit is the billing cadence unit.
type IntervalUnit string

const (
	IntervalUnitDay   IntervalUnit = "day"
	IntervalUnitWeek  IntervalUnit = "week"
	IntervalUnitMonth IntervalUnit = "month"
	IntervalUnitYear  IntervalUnit = "year"
)

// Price belongs to either a product or a usage meter, never both.
type Price struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	PricingModelID snowflake.ID  `gorm:"column:pricing_model_id;not null;index" json:"pricing_model_id"`
	ProductID      *snowflake.ID `gorm:"column:product_id;index" json:"product_id,omitempty"`
	UsageMeterID   *snowflake.ID `gorm:"column:usage_meter_id;index" json:"usage_meter_id,omitempty"`
	Slug           string        `gorm:"type:text;not null;index" json:"slug"`
	Name           string        `gorm:"type:text" json:"name"`
	Type           PriceType     `gorm:"column:price_type;type:text;not null" json:"type"`

	UnitPrice          int64        `gorm:"column:unit_price;not null" json:"unit_price"`
	Currency           string       `gorm:"type:text;not null" json:"currency"`
	IntervalUnit       IntervalUnit `gorm:"column:interval_unit;type:text;not null" json:"interval_unit"`
	IntervalCount      int          `gorm:"column:interval_count;not null" json:"interval_count"`
	UsageEventsPerUnit int64        `gorm:"column:usage_events_per_unit;not null" json:"usage_events_per_unit"`

	ExpiredAt *time.Time `gorm:"column:expired_at" json:"expired_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time  `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Price) TableName() string { return "prices" }

// UsageMeter measures billable usage.
type UsageMeter struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PricingModelID snowflake.ID `gorm:"column:pricing_model_id;not null;index;uniqueIndex:ux_usage_meters_model_slug,priority:1" json:"pricing_model_id"`
	Slug           string       `gorm:"type:text;not null;uniqueIndex:ux_usage_meters_model_slug,priority:2" json:"slug"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	Aggregation    string       `gorm:"type:text;not null" json:"aggregation"`
	ExpiredAt      *time.Time   `gorm:"column:expired_at" json:"expired_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (UsageMeter) TableName() string { return "usage_meters" }

// Resource is a provisionable entitlement tracked per pricing model.
type Resource struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	PricingModelID snowflake.ID `gorm:"column:pricing_model_id;not null;index;uniqueIndex:ux_resources_model_slug,priority:1" json:"pricing_model_id"`
	Slug           string       `gorm:"type:text;not null;uniqueIndex:ux_resources_model_slug,priority:2" json:"slug"`
	Name           string       `gorm:"type:text;not null" json:"name"`
	ExpiredAt      *time.Time   `gorm:"column:expired_at" json:"expired_at,omitempty"`
	CreatedAt      time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Resource) TableName() string { return "resources" }

// ProductFeature associates a feature with a product. Identity is the
// (product, feature) pair; a reappearing association is unexpired in
// place rather than re-created.
type ProductFeature struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	ProductID snowflake.ID `gorm:"column:product_id;not null;index;uniqueIndex:ux_product_features,priority:1" json:"product_id"`
	FeatureID snowflake.ID `gorm:"column:feature_id;not null;uniqueIndex:ux_product_features,priority:2" json:"feature_id"`
	ExpiredAt *time.Time   `gorm:"column:expired_at" json:"expired_at,omitempty"`
	CreatedAt time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (ProductFeature) TableName() string { return "product_features" }
